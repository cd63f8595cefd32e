// Package extractor drives the email extraction endpoint until inventory is
// available, the remote reports a hard error, or the retry policy runs out.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/pkg/util"
)

// RetryPolicy 重试策略。MaxAttempts / MaxElapsed 为 0 表示不限制
type RetryPolicy struct {
	// 两次请求之间的固定退避
	Backoff time.Duration
	// 最多调用 extract_emails 的次数（含第一次）
	MaxAttempts int
	// 从第一次请求开始允许的总耗时
	MaxElapsed time.Duration
}

// Config 控制器配置
type Config struct {
	Policy RetryPolicy
	// 提取成功后刷新余额的超时
	BalanceTimeout time.Duration
}

// DefaultConfig 返回默认配置：1 秒退避，不限重试次数
func DefaultConfig() Config {
	return Config{
		Policy: RetryPolicy{
			Backoff: time.Second,
		},
		BalanceTimeout: 10 * time.Second,
	}
}

// ProgressFunc receives a notification for every retry the controller absorbs.
type ProgressFunc func(Retry)

// Controller runs one extraction at a time against a Backend.
type Controller struct {
	backend Backend
	config  Config
	logger  *zap.Logger

	busy      atomic.Bool
	balance   atomic.Int64
	refreshes sync.WaitGroup

	// 测试时替换
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewController 创建提取控制器
func NewController(backend Backend, config Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Policy.Backoff <= 0 {
		config.Policy.Backoff = time.Second
	}
	if config.BalanceTimeout <= 0 {
		config.BalanceTimeout = 10 * time.Second
	}
	return &Controller{
		backend: backend,
		config:  config,
		logger:  logger,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// Busy reports whether an extraction is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Balance returns the last balance observed after a successful extraction.
func (c *Controller) Balance() int64 {
	return c.balance.Load()
}

// Wait blocks until every pending balance refresh has finished.
func (c *Controller) Wait() {
	c.refreshes.Wait()
}

// Extract obtains req.Count emails, absorbing retry responses with a fixed
// backoff. progress may be nil.
func (c *Controller) Extract(ctx context.Context, req Request, progress ProgressFunc) (*Success, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	log := c.logger.With(
		zap.String("email_type", string(req.EmailType)),
		zap.Int("count", req.Count),
	)

	start := c.now()
	retryCount := req.RetryCount
	attempts := 0

	for {
		attempts++
		resp, err := c.backend.ExtractEmails(ctx, req.APIKey, req.Count, req.EmailType, retryCount)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			retryable, errType := util.IsRetryableError(err)
			log.Error("Extract emails call failed",
				zap.Int("retry_count", retryCount),
				zap.String("error_type", errType),
				zap.Bool("retryable", retryable),
				zap.Error(err),
			)
			return nil, &Error{Kind: KindTransport, Message: transportFailureMessage, Err: err}
		}

		switch out := Interpret(resp, retryCount).(type) {
		case Success:
			// 远端没回传 retries 时用本地计数
			if out.Retries == 0 {
				out.Retries = retryCount
			}
			log.Info("Emails extracted",
				zap.Int("extracted", out.Count),
				zap.Int("retries", out.Retries),
				zap.Int("attempts", attempts),
			)
			c.refreshBalance(ctx, req.APIKey)
			return &out, nil

		case Failure:
			log.Warn("Extraction rejected by remote",
				zap.Int("retry_count", retryCount),
				zap.String("message", out.Message),
			)
			return nil, &Error{Kind: KindRemoteFailure, Message: out.Message}

		case Retry:
			retryCount = out.RetryCount
			log.Info("No inventory yet, retrying",
				zap.Int("retry_count", retryCount),
				zap.String("message", out.Message),
			)
			if progress != nil {
				progress(out)
			}

			if err := c.checkPolicy(attempts, start); err != nil {
				log.Warn("Retry policy exhausted",
					zap.Int("attempts", attempts),
					zap.Duration("elapsed", c.now().Sub(start)),
				)
				return nil, err
			}

			if err := c.sleep(ctx, c.config.Policy.Backoff); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Controller) checkPolicy(attempts int, start time.Time) error {
	p := c.config.Policy
	if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
		return &Error{
			Kind:    KindRetryExhausted,
			Message: fmt.Sprintf("gave up after %d attempts", attempts),
			Err:     ErrRetryExhausted,
		}
	}
	if p.MaxElapsed > 0 && c.now().Sub(start)+p.Backoff > p.MaxElapsed {
		return &Error{
			Kind:    KindRetryExhausted,
			Message: fmt.Sprintf("gave up after %s", p.MaxElapsed),
			Err:     ErrRetryExhausted,
		}
	}
	return nil
}

// refreshBalance 异步刷新余额，失败只记日志，不影响提取结果
func (c *Controller) refreshBalance(ctx context.Context, apiKey string) {
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.BalanceTimeout)
		defer cancel()

		resp, err := c.backend.CheckBalance(ctx, apiKey)
		if err != nil {
			c.logger.Warn("Failed to refresh balance after extraction", zap.Error(err))
			return
		}
		if resp.Status != StatusSuccess {
			c.logger.Warn("Balance check returned non-success status",
				zap.String("status", string(resp.Status)),
				zap.String("message", resp.Message),
			)
			return
		}
		c.balance.Store(int64(resp.Balance))
	}()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCanceled reports whether err came from the caller's context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
