package download

import (
	"errors"
	"fmt"
)

// TransferError 表示下载依赖文件/bundle 时返回了非 2xx。
// Downloader 会按指数退避重试该错误。
type TransferError struct {
	URL        string
	StatusCode int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("下载 %s 失败：HTTP %d", e.URL, e.StatusCode)
}

func IsTransfer(err error) bool {
	var e *TransferError
	return errors.As(err, &e)
}

// RetryExhaustedError 表示配置了 MaxAttempts 且重试次数已用尽。
type RetryExhaustedError struct {
	Attempts int
	Last     *TransferError
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("重试 %d 次后仍失败：%v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

func IsRetryExhausted(err error) bool {
	var e *RetryExhaustedError
	return errors.As(err, &e)
}
