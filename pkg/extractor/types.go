package extractor

import (
	"context"
	"fmt"
)

// EmailType 邮箱类型（上游只支持固定的几种）
type EmailType string

const (
	Hotmail EmailType = "hotmail"
	Outlook EmailType = "outlook"
)

const (
	MinCount = 1
	MaxCount = 2000
)

// EmailTypes lists every type the inventory provider accepts.
var EmailTypes = []EmailType{Hotmail, Outlook}

// Valid reports whether t is one of EmailTypes.
func (t EmailType) Valid() bool {
	for _, v := range EmailTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseEmailType 解析用户输入的邮箱类型
func ParseEmailType(s string) (EmailType, error) {
	t := EmailType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid email type %q, must be one of %v", s, EmailTypes)
	}
	return t, nil
}

// Request 一次提取操作的参数，每次用户触发时新建，不持久化
type Request struct {
	APIKey     string
	EmailType  EmailType
	Count      int
	RetryCount int
}

// Validate checks the request before any network call is made.
func (r Request) Validate() error {
	if r.APIKey == "" {
		return validationError("api key is required")
	}
	if r.EmailType == "" {
		return validationError("email type is required")
	}
	if !r.EmailType.Valid() {
		return validationError(fmt.Sprintf("invalid email type %q", r.EmailType))
	}
	if r.Count < MinCount || r.Count > MaxCount {
		return validationError(fmt.Sprintf("count must be between %d and %d", MinCount, MaxCount))
	}
	if r.RetryCount < 0 {
		return validationError("retry count must not be negative")
	}
	return nil
}

// Status 远端响应里的 status 字段
type Status string

const (
	StatusSuccess Status = "success"
	StatusRetry   Status = "retry"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// ExtractResponse is the envelope returned by the extract_emails endpoint.
type ExtractResponse struct {
	Status     Status   `json:"status"`
	Emails     []string `json:"emails,omitempty"`
	Count      int      `json:"count,omitempty"`
	Retries    int      `json:"retries,omitempty"`
	RetryCount int      `json:"retry_count,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// BalanceResponse is the envelope returned by the check_balance endpoint.
type BalanceResponse struct {
	Status  Status  `json:"status"`
	Balance Balance `json:"balance"`
	Message string  `json:"message,omitempty"`
}

// Backend 是控制器依赖的远端接口
type Backend interface {
	ExtractEmails(ctx context.Context, apiKey string, count int, emailType EmailType, retryCount int) (*ExtractResponse, error)
	CheckBalance(ctx context.Context, apiKey string) (*BalanceResponse, error)
}

// Outcome is one of Success, Retry or Failure.
type Outcome interface {
	outcome()
}

// Success 终态：拿到了邮箱
type Success struct {
	Emails  []string
	Count   int
	Retries int
}

// Retry 库存暂时不足，需要退避后再试
type Retry struct {
	RetryCount int
	Message    string
}

// Failure 终态：远端返回了非 retry 的错误
type Failure struct {
	Message string
}

func (Success) outcome() {}
func (Retry) outcome()   {}
func (Failure) outcome() {}

// Interpret maps a remote response to an Outcome. current is the retry count
// that was sent with the request.
func Interpret(resp *ExtractResponse, current int) Outcome {
	if resp == nil {
		return Failure{Message: defaultFailureMessage}
	}

	switch resp.Status {
	case StatusSuccess:
		count := resp.Count
		if count == 0 {
			count = len(resp.Emails)
		}
		return Success{Emails: resp.Emails, Count: count, Retries: resp.Retries}
	case StatusRetry:
		next := resp.RetryCount
		if next <= 0 {
			next = current + 1
		}
		return Retry{RetryCount: next, Message: resp.Message}
	default:
		msg := resp.Message
		if msg == "" {
			msg = defaultFailureMessage
		}
		return Failure{Message: msg}
	}
}

// RetryMessage 进度提示文案，远端没给 message 时使用默认文案
func (r Retry) RetryMessage() string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("no email inventory yet, retried %d times, still trying...", r.RetryCount)
}

const defaultFailureMessage = "unknown error"
