// Package logging 构造全局使用的 slog.Logger。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options 描述 logger 的构造参数。
type Options struct {
	Level  string
	Format string
	// Output 为空时写 stderr。
	Output io.Writer
}

// New 按 Options 构造 slog logger。
// Format 支持 console（文本）与 json；空值视为 console。
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, hopts)
	case "console":
		handler = slog.NewTextHandler(out, hopts)
	default:
		return nil, fmt.Errorf("日志格式不支持：%q", opts.Format)
	}
	return slog.New(handler), nil
}

// Discard 返回丢弃所有输出的 logger。组件在未注入 logger 时使用它。
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel 把字符串级别映射到 slog.Level；无法识别时回退为 info。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
