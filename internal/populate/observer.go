package populate

import "time"

// Observer 把“填充进度”从 Populator 中解耦出来。
//
// 约束：
// - populate 包只发事件，不做任何输出
// - Run 只在单个汇总 goroutine 中依次回调，不会并发调用同一个 Observer
// - 回调期间汇总暂停，实现不应长时间阻塞
type Observer interface {
	// OnStart 在派发第一个任务前调用。
	OnStart(total, workers int)
	// OnJobDone 在某个 entry 结束（成功或失败）时调用；idx 从 1 开始。
	OnJobDone(idx, total int, name, path string, err error, dur time.Duration)
}

// Observers 把多个 Observer 合并为一个（nil 会被忽略）。
type Observers []Observer

func (obs Observers) OnStart(total, workers int) {
	for _, o := range obs {
		if o != nil {
			o.OnStart(total, workers)
		}
	}
}

func (obs Observers) OnJobDone(idx, total int, name, path string, err error, dur time.Duration) {
	for _, o := range obs {
		if o != nil {
			o.OnJobDone(idx, total, name, path, err, dur)
		}
	}
}
