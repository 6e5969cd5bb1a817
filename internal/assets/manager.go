package assets

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/texcache/internal/domain"
	"github.com/John-Robertt/texcache/internal/index"
	"github.com/John-Robertt/texcache/internal/logging"
	"github.com/John-Robertt/texcache/internal/populate"
)

const (
	defaultPollInterval   = 100 * time.Millisecond
	defaultNoticeInterval = 5 * time.Second
)

// Options 描述 Manager 的构造参数。
type Options struct {
	Root       string
	Resolution string
	// Category 不区分大小写，'/' 视为 '-'；空串等价于 "all"。
	Category string

	// Download=true 时在后台填充 cache；Debug=true 时填充在 New 内同步完成。
	Download bool
	Debug    bool

	// StrictIndex=true：任一 entry 目录名无法解析即让查询失败。
	StrictIndex bool

	// Populator 在 Download=true 时必填；Resolution 以 Options.Resolution 为准。
	Populator *populate.Populator

	HostLoader HostLoader
	Clock      Clock
	Notifier   Notifier
	Rand       *rand.Rand

	// PollInterval 是等待首个资源时的兜底重扫间隔（主要依赖下载完成信号唤醒）。
	PollInterval time.Duration
	// NoticeInterval 是等待提示的最小间隔。
	NoticeInterval time.Duration

	Logger *slog.Logger
}

// Manager 是 cache 的查询入口：Count / Get / Sample。
//
// 约束：
// - 下载进行中：每次查询都重新扫描 cache root
// - 下载结束后：复用结束时构建的快照，不再扫描
// - 锁只保护内存状态，扫描等 I/O 不在锁内进行
type Manager struct {
	root        string
	resolution  string
	category    string
	download    bool
	strict      bool
	loader      HostLoader
	clock       Clock
	notifier    Notifier
	poll        time.Duration
	logger      *slog.Logger
	noticeLimit *rateLimiter

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu          sync.Mutex
	downloading bool
	snap        index.Snapshot
	published   chan struct{} // 每次有 bundle 发布时 close 并替换
	popResult   populate.Result
	popErr      error

	done   chan struct{}
	cancel context.CancelFunc
}

// NormalizeCategory 把分类统一为小写并把 '/' 替换为 '-'。
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return domain.CategoryAll
	}
	return strings.ReplaceAll(c, "/", "-")
}

// New 创建 cache root（若不存在），按需启动后台填充，并做一次初始扫描。
func New(ctx context.Context, opts Options) (*Manager, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("cache root 不能为空")
	}
	if opts.Download && opts.Populator == nil {
		return nil, errors.New("download=true 时 populator 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	m := &Manager{
		root:        root,
		resolution:  opts.Resolution,
		category:    NormalizeCategory(opts.Category),
		download:    opts.Download,
		strict:      opts.StrictIndex,
		loader:      opts.HostLoader,
		clock:       opts.Clock,
		notifier:    opts.Notifier,
		rnd:         opts.Rand,
		poll:        opts.PollInterval,
		logger:      opts.Logger,
		downloading: opts.Download,
		published:   make(chan struct{}),
		done:        make(chan struct{}),
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.notifier == nil {
		m.notifier = logNotifier{logger: m.logger}
	}
	if m.rnd == nil {
		m.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.poll <= 0 {
		m.poll = defaultPollInterval
	}
	noticeEvery := opts.NoticeInterval
	if noticeEvery <= 0 {
		noticeEvery = defaultNoticeInterval
	}
	m.noticeLimit = &rateLimiter{clock: m.clock, interval: noticeEvery}

	if opts.Download {
		pctx, cancel := context.WithCancel(ctx)
		m.cancel = cancel

		pop := *opts.Populator
		pop.Resolution = m.resolution
		pop.Observer = populate.Observers{pop.Observer, publishObserver{m: m}}

		if opts.Debug {
			m.logger.Info("同步填充 cache（debug）", "root", root, "category", m.category)
			m.populate(pctx, &pop)
		} else {
			m.logger.Info("后台开始填充 cache", "root", root, "category", m.category)
			go m.populate(pctx, &pop)
		}
	} else {
		close(m.done)
	}

	if err := m.refresh(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) populate(ctx context.Context, pop *populate.Populator) {
	res, err := pop.Populate(ctx, m.category)
	if err != nil {
		m.logger.Error("cache 填充失败", "error", err)
	}

	snap, berr := index.Build(m.root, m.category, m.indexOptions())

	m.mu.Lock()
	m.popResult, m.popErr = res, err
	if berr == nil {
		m.snap = snap
	} else {
		m.logger.Error("填充结束后重建索引失败", "error", berr)
	}
	// 重建失败时保持 downloading=true，后续查询会继续扫描并把错误返回给调用方。
	m.downloading = berr != nil
	m.signalLocked()
	m.mu.Unlock()

	close(m.done)
	m.logger.Info("cache 填充线程已结束", "fetched", len(res.Fetched), "failed", len(res.Failures))
}

type publishObserver struct{ m *Manager }

func (publishObserver) OnStart(total, workers int) {}

func (o publishObserver) OnJobDone(idx, total int, name, path string, err error, dur time.Duration) {
	if err != nil {
		return
	}
	o.m.mu.Lock()
	o.m.signalLocked()
	o.m.mu.Unlock()
}

func (m *Manager) signalLocked() {
	close(m.published)
	m.published = make(chan struct{})
}

func (m *Manager) indexOptions() index.Options {
	return index.Options{Strict: m.strict, Logger: m.logger}
}

// refresh 无条件重扫并替换快照（仅在仍处于下载中或初始化时使用）。
func (m *Manager) refresh() error {
	snap, err := index.Build(m.root, m.category, m.indexOptions())
	if err != nil {
		return err
	}
	m.mu.Lock()
	// 填充已结束：以结束时构建的快照为准。
	if m.downloading || !m.download {
		m.snap = snap
	}
	m.mu.Unlock()
	return nil
}

// current 按“下载中重扫、否则复用快照”的规则返回记录。
func (m *Manager) current() ([]domain.AssetRecord, bool, error) {
	m.mu.Lock()
	downloading := m.downloading
	m.mu.Unlock()

	if downloading {
		if err := m.refresh(); err != nil {
			return nil, true, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Records, m.downloading, nil
}

// Count 返回过滤后的资源数量。
func (m *Manager) Count() (int, error) {
	recs, _, err := m.current()
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 && !m.download {
		return 0, m.configError("cache 为空且未启用下载")
	}
	return len(recs), nil
}

// Get 返回按路径排序后第 i 个资源。
func (m *Manager) Get(i int) (domain.AssetRecord, error) {
	recs, _, err := m.current()
	if err != nil {
		return domain.AssetRecord{}, err
	}
	if i < 0 || i >= len(recs) {
		return domain.AssetRecord{}, &IndexError{Index: i, Len: len(recs)}
	}
	return recs[i], nil
}

// Paths 返回未过滤的 bundle 路径（与 Count/Get 使用同一重扫规则）。
func (m *Manager) Paths() ([]string, error) {
	if _, _, err := m.current(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.snap.Paths...), nil
}

// Sample 随机返回一个资源。
//
// cache 为空时：
// - 未启用下载：立即返回 ConfigError
// - 下载中：等待直到出现第一个资源（被发布信号唤醒，兜底定期重扫），期间限频提示
// - 下载已结束仍为空：返回 ConfigError
func (m *Manager) Sample(ctx context.Context) (domain.AssetRecord, error) {
	recs, _, err := m.current()
	if err != nil {
		return domain.AssetRecord{}, err
	}
	if len(recs) > 0 {
		return m.pick(recs), nil
	}
	if !m.download {
		return domain.AssetRecord{}, m.configError("cache 为空且未启用下载（请开启 download）")
	}

	for {
		// 先取信号再扫描，避免错过扫描与等待之间的发布。
		m.mu.Lock()
		published := m.published
		m.mu.Unlock()

		recs, downloading, err := m.current()
		if err != nil {
			return domain.AssetRecord{}, err
		}
		if len(recs) > 0 {
			return m.pick(recs), nil
		}
		if !downloading {
			return domain.AssetRecord{}, m.configError("下载已结束，但没有匹配的资源")
		}

		if m.noticeLimit.Allow() {
			m.notifier.Notify("等待下载第一个资源文件……")
		}

		select {
		case <-ctx.Done():
			return domain.AssetRecord{}, ctx.Err()
		case <-published:
		case <-m.done:
		case <-m.clock.After(m.poll):
		}
	}
}

func (m *Manager) pick(recs []domain.AssetRecord) domain.AssetRecord {
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	return recs[m.rnd.Intn(len(recs))]
}

func (m *Manager) configError(reason string) error {
	return &ConfigError{Root: m.root, Category: m.category, Reason: reason}
}

// Downloading 报告后台填充是否仍在进行。
func (m *Manager) Downloading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloading
}

// Category 返回规范化后的分类过滤条件。
func (m *Manager) Category() string { return m.category }

// Wait 阻塞到后台填充结束（未启用下载时立即返回）。
func (m *Manager) Wait(ctx context.Context) (populate.Result, error) {
	select {
	case <-ctx.Done():
		return populate.Result{}, ctx.Err()
	case <-m.done:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popResult, m.popErr
}

// Close 取消后台填充并等待其退出。
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}
