package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/texcache/internal/config"
	"github.com/John-Robertt/texcache/internal/populate"
)

var _ populate.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的填充进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout）
// - 事件驱动：populate 层只发事件，CLI 决定如何展示
// - keepalive：长时间无 entry 完成时（例如在退避重试中）也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 10 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) printHeader(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	fmt.Fprintf(p.w, "[%s] texcache populate\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  cache_dir: %s\n", eff.CacheDir)
	fmt.Fprintf(p.w, "  catalog: %s (%s)\n", truncate(eff.IndexURL, 120), eff.AssetType)
	fmt.Fprintf(p.w, "  category: %s\n", eff.Category)
	fmt.Fprintf(p.w, "  resolution: %s\n", eff.Resolution)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  backoff: %s max_attempts=%s\n", eff.InitialBackoff, formatAttempts(eff.MaxAttempts))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintln(p.w)
	p.lastPrinted = now
}

func (p *progressUI) OnStart(total, workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}
	p.total = total
	p.workers = workers
	fmt.Fprintf(p.w, "执行: workers=%d total=%d\n\n", workers, total)
	p.lastPrinted = time.Now()

	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnJobDone(idx, total int, name, path string, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	if err != nil {
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL: %s (%s)\n", idx, total, name, truncate(err.Error(), 160), formatShortDuration(dur))
	} else {
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s (%s)\n", idx, total, name, path, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 10 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（stdout 留给结果）。
	if isTerminal(os.Stderr) {
		return os.Stderr, true
	}
	if isTerminal(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func formatAttempts(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
