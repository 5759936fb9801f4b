// Package errcode 定义缩略图通知里携带的错误码。
package errcode

import "errors"

// 0 表示成功；4xxx 为可继续或不可重试的业务错误；5xxx 为系统错误。
const (
	OK              = 0
	InvalidTemplate = 4000
	ResourceMissing = 4004
	SystemError     = 5000
	CaptureFailed   = 5001
)

// Error 给错误附加错误码。
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap 返回带错误码的错误，err 为 nil 时返回 nil。
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Of 取出错误链上的错误码；nil 为 OK，未标注的错误为 SystemError。
func Of(err error) int {
	if err == nil {
		return OK
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return SystemError
}
