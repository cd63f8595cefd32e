// Package activation forwards an account to the remote inject endpoint.
package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/internal/model"
	"pikpakhelper/pkg/logger"
	"pikpakhelper/pkg/metrics"
	"pikpakhelper/pkg/mq"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36 Edg/134.0.0.0"

var ErrMissingInput = errors.New("account data and key are required")

// UpstreamError 激活接口返回非 200
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("activation failed: HTTP %d", e.StatusCode)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Service struct {
	url        string
	referer    string
	httpClient *http.Client
	publisher  Publisher
	logger     *zap.Logger
}

func NewService(url, referer string, timeout time.Duration, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		url:        url,
		referer:    referer,
		httpClient: &http.Client{Timeout: timeout},
		publisher:  publisher,
		logger:     logger,
	}
}

// Activate posts {"info": account, "key": key} and returns the decoded reply.
func (s *Service) Activate(ctx context.Context, info json.RawMessage, key string) (any, error) {
	if len(info) == 0 || string(info) == "null" || key == "" {
		return nil, ErrMissingInput
	}

	body, err := json.Marshal(map[string]any{"info": info, "key": key})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", s.referer)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCallLatency("infoInject", "error", time.Since(start))
		return nil, fmt.Errorf("activation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamCallLatency("infoInject", "error", time.Since(start))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	metrics.RecordUpstreamCallLatency("infoInject", "success", time.Since(start))

	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("activation response is not JSON: %w", err)
	}

	email := accountEmail(info)
	logger.WithTrace(ctx, s.logger).Info("Account activated", zap.String("email", email))
	if s.publisher != nil {
		evt := model.AccountActivatedEvent{Email: email, ActivatedAt: time.Now()}
		if err := s.publisher.Publish(ctx, mq.RoutingKeyAccountActivated, evt); err != nil {
			s.logger.Warn("Failed to publish activation event", zap.Error(err))
		}
	}
	return result, nil
}

func accountEmail(info json.RawMessage) string {
	var v struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(info, &v)
	return v.Email
}
