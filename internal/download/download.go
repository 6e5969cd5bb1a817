package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/texcache/internal/catalog"
	"github.com/John-Robertt/texcache/internal/domain"
	"github.com/John-Robertt/texcache/internal/infra/cache"
	"github.com/John-Robertt/texcache/internal/infra/fsx"
	"github.com/John-Robertt/texcache/internal/logging"
)

// DefaultInitialBackoff 是首次状态码失败后的等待时间，之后每次翻倍。
const DefaultInitialBackoff = 60 * time.Second

// Sleeper 等待 d 或直到 ctx 结束。测试可替换为不真正 sleep 的实现。
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 是默认 Sleeper。
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Downloader 把一个 catalog entry 下载到 cache root。
//
// 约束：
// - 幂等：bundle 已存在则直接返回路径，不发任何请求
// - 每个文件都先写临时文件，完整接收后 rename 发布（扫描方永远看不到半成品）
// - 非 2xx 状态码按 InitialBackoff 起步、每次翻倍重试；MaxAttempts=0 表示不设上限
// - 其他错误（连接失败、解析失败、I/O 错误）立即中止该 entry 并返回
type Downloader struct {
	Store    cache.Store
	Resolver catalog.Resolver
	HTTP     *http.Client

	InitialBackoff time.Duration
	MaxAttempts    int
	Sleep          Sleeper

	Logger *slog.Logger
}

// Fetch 下载 name 的 resolution 版本并返回 bundle 的最终路径。
func (d *Downloader) Fetch(ctx context.Context, name, resolution string) (string, error) {
	if p, ok, err := d.Store.FindBundle(name, resolution); err != nil {
		return "", err
	} else if ok {
		return p, nil
	}

	job, err := d.Resolver.Resolve(ctx, name, resolution)
	if err != nil {
		d.logger().Error("解析 entry 失败", "name", name, "resolution", resolution, "error", err)
		return "", err
	}

	p, n, err := d.fetchJob(ctx, job)
	if err != nil {
		d.logger().Error("下载 entry 失败", "job", job.ID, "name", name, "resolution", resolution, "error", err)
		return "", err
	}
	d.logger().Info("entry 已落盘",
		"job", job.ID, "name", name, "resolution", resolution,
		"files", len(job.Files)+1, "size", humanize.Bytes(uint64(n)), "path", p,
	)
	return p, nil
}

func (d *Downloader) fetchJob(ctx context.Context, job domain.DownloadJob) (string, int64, error) {
	if job.Dir == "" {
		return "", 0, errors.New("job.Dir 不能为空")
	}
	dir := d.Store.EntryDir(job.Dir)

	var total int64
	// 依赖文件先落盘，bundle 最后发布：bundle 可见即代表 entry 完整。
	for _, f := range job.Files {
		n, err := d.fetchFile(ctx, job, f, dir)
		if err != nil {
			return "", total, err
		}
		total += n
	}

	n, err := d.fetchFile(ctx, job, job.Bundle, dir)
	if err != nil {
		return "", total, err
	}
	total += n
	return filepath.Join(dir, job.Bundle.RelPath), total, nil
}

func (d *Downloader) fetchFile(ctx context.Context, job domain.DownloadJob, f domain.FileSpec, dir string) (int64, error) {
	dst := filepath.Join(dir, f.RelPath)
	backoff := d.initialBackoff()

	for attempt := 1; ; attempt++ {
		n, err := d.getOnce(ctx, f.URL, dst)
		if err == nil {
			return n, nil
		}

		var te *TransferError
		if !errors.As(err, &te) {
			return 0, err
		}
		if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
			return 0, &RetryExhaustedError{Attempts: attempt, Last: te}
		}

		d.logger().Warn("下载返回非 2xx，稍后重试",
			"job", job.ID, "url", f.URL, "status", te.StatusCode, "attempt", attempt, "backoff", backoff,
		)
		if err := d.sleep(ctx, backoff); err != nil {
			return 0, fmt.Errorf("等待重试被取消：%w", err)
		}
		backoff *= 2
	}
}

func (d *Downloader) getOnce(ctx context.Context, u, dst string) (int64, error) {
	if d.HTTP == nil {
		return 0, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return 0, &TransferError{URL: u, StatusCode: resp.StatusCode}
	}
	return fsx.WriteReaderAtomic(filepath.Dir(dst), filepath.Base(dst), resp.Body)
}

func (d *Downloader) initialBackoff() time.Duration {
	if d.InitialBackoff > 0 {
		return d.InitialBackoff
	}
	return DefaultInitialBackoff
}

func (d *Downloader) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return SleepContext(ctx, dur)
}

func (d *Downloader) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.Discard()
}
