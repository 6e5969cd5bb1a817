package populate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/texcache/internal/catalog"
	"github.com/John-Robertt/texcache/internal/infra/cache"
	"github.com/John-Robertt/texcache/internal/logging"
)

// Fetcher 下载单个 entry（见 download.Downloader）。
type Fetcher interface {
	Fetch(ctx context.Context, name, resolution string) (string, error)
}

// Failure 记录一个失败的 entry；失败只影响该 entry，不中止整轮填充。
type Failure struct {
	Name string
	Err  error
}

// Result 是一轮填充的汇总。
type Result struct {
	Total    int
	Fetched  []string // 成功的 bundle 路径（完成顺序）
	Failures []Failure
	Skipped  int // ctx 取消后未派发的 entry 数
	Duration time.Duration
}

const defaultLockRetry = 500 * time.Millisecond

// Populator 驱动 catalog + downloader 完成整份 catalog 的下载。
type Populator struct {
	Fetcher    Fetcher
	Resolution string

	// Workers 是并发下载的 worker 数，<1 时按 1 处理（串行）。
	Workers int

	// Rand 用于打乱 entry 顺序；nil 时使用全局随机源。
	Rand *rand.Rand

	Observer Observer
	Logger   *slog.Logger

	// 以下字段仅 Populate 使用。
	Lister    catalog.Lister
	Store     cache.Store
	AssetType string
	LockRetry time.Duration
}

// Populate 列出 category 下的 catalog（失败时回退到上次的快照），然后执行一轮 Run。
//
// 同一 cache root 上的多个进程通过文件锁串行化：后来者等待锁，之后的下载会因
// bundle 已存在而直接短路。
func (p *Populator) Populate(ctx context.Context, category string) (Result, error) {
	unlock, err := p.lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	names, err := p.listNames(ctx, category)
	if err != nil {
		return Result{}, err
	}
	return p.Run(ctx, names), nil
}

func (p *Populator) lock(ctx context.Context) (func(), error) {
	if p.Store.Root == "" || p.Store.ReadOnly {
		return func() {}, nil
	}

	if err := os.MkdirAll(p.Store.Root, 0o755); err != nil {
		return nil, err
	}
	// 每次新建 Flock（独立的文件描述符），同进程内的多个 Populator 之间同样互斥。
	fl := flock.New(p.Store.LockPath())
	retry := p.LockRetry
	if retry <= 0 {
		retry = defaultLockRetry
	}
	locked, err := fl.TryLockContext(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("获取 cache 锁 %q 失败：%w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("获取 cache 锁 %q 失败", fl.Path())
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.logger().Warn("释放 cache 锁失败", "path", fl.Path(), "error", err)
		}
	}, nil
}

func (p *Populator) listNames(ctx context.Context, category string) ([]string, error) {
	if p.Lister == nil {
		return nil, fmt.Errorf("catalog lister 不能为空")
	}
	names, err := p.Lister.List(ctx, category)
	if err == nil {
		if werr := p.Store.WriteCatalogSnapshot(p.AssetType, category, names); werr != nil {
			p.logger().Warn("写入 catalog 快照失败", "error", werr)
		}
		return names, nil
	}
	if !catalog.IsNetwork(err) {
		return nil, err
	}

	snap, ok, serr := p.Store.ReadCatalogSnapshot(p.AssetType, category)
	if serr != nil || !ok {
		return nil, err
	}
	p.logger().Warn("catalog 列表请求失败，使用上次的快照", "error", err, "entries", len(snap))
	return snap, nil
}

// Run 打乱 names 后经 worker pool 逐个 Fetch，直到全部结束（成功与失败都算结束）。
func (p *Populator) Run(ctx context.Context, names []string) Result {
	started := time.Now()

	shuffled := append([]string(nil), names...)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if p.Rand != nil {
		p.Rand.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	total := len(shuffled)
	res := Result{Total: total}
	if p.Observer != nil {
		p.Observer.OnStart(total, workers)
	}
	p.logger().Info("开始填充 cache", "entries", total, "workers", workers, "resolution", p.Resolution)

	type jobResult struct {
		name string
		path string
		err  error
		dur  time.Duration
	}

	jobs := make(chan string)
	results := make(chan jobResult, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				oneStarted := time.Now()
				path, err := p.Fetcher.Fetch(ctx, name, p.Resolution)
				results <- jobResult{name: name, path: path, err: err, dur: time.Since(oneStarted)}
			}
		}()
	}

	dispatched := make(chan int, 1)
	go func() {
		n := 0
	loop:
		for _, name := range shuffled {
			select {
			case <-ctx.Done():
				break loop
			case jobs <- name:
				n++
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
		dispatched <- n
	}()

	done := 0
	for r := range results {
		done++
		if r.err != nil {
			res.Failures = append(res.Failures, Failure{Name: r.name, Err: r.err})
		} else {
			res.Fetched = append(res.Fetched, r.path)
		}
		if p.Observer != nil {
			p.Observer.OnJobDone(done, total, r.name, r.path, r.err, r.dur)
		}
	}
	res.Skipped = total - <-dispatched
	res.Duration = time.Since(started)

	p.logger().Info("cache 填充结束",
		"fetched", len(res.Fetched), "failed", len(res.Failures), "skipped", res.Skipped, "elapsed", res.Duration,
	)
	return res
}

func (p *Populator) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Discard()
}
