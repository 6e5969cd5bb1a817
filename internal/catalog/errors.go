package catalog

import (
	"errors"
	"fmt"
)

// NetworkError 表示列表/解析页请求超时、连接失败或返回非 2xx。
// 本层不重试；上层把它视为单个 entry（或一次列表）失败。
type NetworkError struct {
	URL        string
	StatusCode int // 0 表示没有拿到响应
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("请求 %s 失败：HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("请求 %s 失败：%v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// ResolutionError 表示 entry 页面缺少元数据块、元数据格式错误，或不存在请求的分辨率。
// 对该 entry 是致命错误：跳过，不重试。
type ResolutionError struct {
	Name       string
	Resolution string
	Reason     string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("无法解析 %s（%s）：%s", e.Name, e.Resolution, e.Reason)
}

func IsResolution(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e)
}
