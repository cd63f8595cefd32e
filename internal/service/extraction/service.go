// Package extraction serves the extract/balance/inventory endpoints on top of
// the mailshop provider.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/internal/mailshop"
	"pikpakhelper/internal/model"
	"pikpakhelper/pkg/extractor"
	"pikpakhelper/pkg/logger"
	"pikpakhelper/pkg/metrics"
	"pikpakhelper/pkg/mq"
)

// Provider 上游库存商
type Provider interface {
	Inventory(ctx context.Context) (map[string]any, error)
	Balance(ctx context.Context, card string) (json.RawMessage, error)
	Extract(ctx context.Context, card string, count int, emailType string) ([]string, error)
}

// Locker 同一卡号的提取互斥
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool)
}

// Cache 库存缓存
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Options 可选依赖，零值表示不启用
type Options struct {
	Locker       Locker
	Cache        Cache
	Publisher    Publisher
	InventoryTTL time.Duration
}

type Service struct {
	provider     Provider
	locker       Locker
	cache        Cache
	publisher    Publisher
	inventoryTTL time.Duration
	logger       *zap.Logger
}

func NewService(provider Provider, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:     provider,
		locker:       opts.Locker,
		cache:        opts.Cache,
		publisher:    opts.Publisher,
		inventoryTTL: opts.InventoryTTL,
		logger:       logger,
	}
}

// ParseRequest validates raw query parameters the way the extract endpoint
// always has: card required, count an integer in [1,2000], type outlook or
// hotmail. retryCount defaults to 0.
func ParseRequest(card, count, emailType, retryCount string) (extractor.Request, error) {
	var req extractor.Request

	if card == "" {
		return req, errors.New("card parameter is required")
	}
	if count == "" {
		return req, errors.New("count parameter is required")
	}
	t, err := extractor.ParseEmailType(emailType)
	if err != nil {
		return req, fmt.Errorf("type parameter must be one of %v", extractor.EmailTypes)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return req, errors.New("count must be an integer")
	}

	retries := 0
	if retryCount != "" {
		if retries, err = strconv.Atoi(retryCount); err != nil || retries < 0 {
			return req, errors.New("retry_count must be a non-negative integer")
		}
	}

	req = extractor.Request{APIKey: card, EmailType: t, Count: n, RetryCount: retries}
	if err := req.Validate(); err != nil {
		var e *extractor.Error
		if errors.As(err, &e) {
			return req, errors.New(e.Message)
		}
		return req, err
	}
	return req, nil
}

// Extract performs one provider call and wraps the result in the status
// envelope. It never returns a Go error; failures are status "error".
func (s *Service) Extract(ctx context.Context, req extractor.Request) *extractor.ExtractResponse {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.String("card_hash", hashCard(req.APIKey)),
		zap.String("email_type", string(req.EmailType)),
		zap.Int("count", req.Count),
		zap.Int("retry_count", req.RetryCount),
	)

	if s.locker != nil {
		release, ok := s.locker.Acquire(ctx, "extract:lock:"+hashCard(req.APIKey))
		if !ok {
			metrics.IncrementExtraction("busy")
			return errorResponse("an extraction for this card is already in progress")
		}
		defer release()
	}

	emails, err := s.provider.Extract(ctx, req.APIKey, req.Count, string(req.EmailType))

	var pm *mailshop.ProviderMessageError
	switch {
	case errors.As(err, &pm):
		next := req.RetryCount + 1
		msg := fmt.Sprintf("no email inventory yet, retried %d times, still trying...", next)
		if pm.Message != "" {
			msg = fmt.Sprintf("%s (retried %d times)", pm.Message, next)
		}
		log.Info("Provider has no inventory", zap.String("provider_msg", pm.Message))
		metrics.IncrementExtraction("retry")
		return &extractor.ExtractResponse{Status: extractor.StatusRetry, RetryCount: next, Message: msg}

	case err != nil:
		log.Error("Extract emails failed", zap.Error(err))
		metrics.IncrementExtraction("error")
		var se *mailshop.StatusError
		if errors.As(err, &se) {
			return errorResponse(fmt.Sprintf("failed to extract emails: HTTP %d", se.StatusCode))
		}
		return errorResponse("failed to extract emails: " + err.Error())
	}

	metrics.IncrementExtraction("success")
	metrics.AddExtractedEmails(string(req.EmailType), len(emails))
	log.Info("Emails extracted", zap.Int("extracted", len(emails)))

	s.publish(ctx, mq.RoutingKeyEmailsExtracted, model.EmailsExtractedEvent{
		CardHash:    hashCard(req.APIKey),
		EmailType:   string(req.EmailType),
		Count:       len(emails),
		Retries:     req.RetryCount,
		ExtractedAt: time.Now(),
	})

	if emails == nil {
		emails = []string{}
	}
	return &extractor.ExtractResponse{
		Status:  extractor.StatusSuccess,
		Emails:  emails,
		Count:   len(emails),
		Retries: req.RetryCount,
	}
}

// Balance returns the provider's raw balance document.
func (s *Service) Balance(ctx context.Context, card string) (json.RawMessage, error) {
	if card == "" {
		return nil, errors.New("card parameter is required")
	}
	raw, err := s.provider.Balance(ctx, card)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Balance query failed", zap.Error(err))
		return nil, err
	}
	return raw, nil
}

const inventoryCacheKey = "inventory"

// Inventory returns provider stock, cached for InventoryTTL when a cache is
// configured.
func (s *Service) Inventory(ctx context.Context) (map[string]any, error) {
	if s.cache != nil && s.inventoryTTL > 0 {
		var cached map[string]any
		hit, err := s.cache.Get(ctx, inventoryCacheKey, &cached)
		if err != nil {
			s.logger.Warn("Inventory cache read failed", zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	inv, err := s.provider.Inventory(ctx)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Inventory query failed", zap.Error(err))
		return nil, err
	}

	if s.cache != nil && s.inventoryTTL > 0 {
		if err := s.cache.Set(ctx, inventoryCacheKey, inv, s.inventoryTTL); err != nil {
			s.logger.Warn("Inventory cache write failed", zap.Error(err))
		}
	}
	return inv, nil
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func errorResponse(msg string) *extractor.ExtractResponse {
	return &extractor.ExtractResponse{Status: extractor.StatusError, Message: msg}
}

// hashCard 卡号不落日志，只记前 12 位 hash
func hashCard(card string) string {
	sum := sha256.Sum256([]byte(card))
	return hex.EncodeToString(sum[:])[:12]
}
