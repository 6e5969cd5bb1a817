package assets

import (
	"log/slog"
	"sync"
	"time"
)

// Clock 抽象时间，测试可注入假时钟。
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Notifier 接收等待期间的进度提示。
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc 把函数适配为 Notifier。
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

type logNotifier struct{ logger *slog.Logger }

func (n logNotifier) Notify(msg string) { n.logger.Info(msg) }

// rateLimiter 保证两次提示至少间隔 interval；首次总是放行。
type rateLimiter struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	last     time.Time
}

func (r *rateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}
