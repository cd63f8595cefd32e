package extractor

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	KindValidation Kind = iota + 1 // 参数错误，不会发起网络请求
	KindRemoteFailure              // 远端返回 error 状态，原样透出 message
	KindTransport                  // 网络或解析失败，只透出通用文案
	KindRetryExhausted             // 超出重试策略
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRemoteFailure:
		return "remote_failure"
	case KindTransport:
		return "transport"
	case KindRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// Error is returned by Controller.Extract for every terminal failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 错误定义
var (
	ErrBusy           = errors.New("extraction already in progress")
	ErrRetryExhausted = errors.New("retry policy exhausted")
)

const transportFailureMessage = "failed to extract emails, check the network connection and retry"

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

func IsRemoteFailure(err error) bool {
	return KindOf(err) == KindRemoteFailure
}

func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}
