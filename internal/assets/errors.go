package assets

import (
	"errors"
	"fmt"
)

// ConfigError 表示当前配置下永远不会有可用资源：cache 为空（或过滤后为空）且不会再下载。
// 查询时同步返回，不等待。
type ConfigError struct {
	Root     string
	Category string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%q 中没有可用的资源文件（category=%s）：%s", e.Root, e.Category, e.Reason)
}

func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IndexError 表示 Get 的下标越界。
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("下标越界：%d（共 %d 个）", e.Index, e.Len)
}

// ErrNoHostLoader 表示未注入 HostLoader 却调用了 LoadIntoHost。
var ErrNoHostLoader = errors.New("assets: 未配置 host loader")
