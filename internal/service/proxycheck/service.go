// Package proxycheck probes whether an HTTP proxy can reach the outside world.
package proxycheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/pkg/logger"
	"pikpakhelper/pkg/metrics"
)

// DefaultProxyURL 未填写时使用本地代理
const DefaultProxyURL = "http://127.0.0.1:7890"

var ErrInvalidProxyURL = errors.New("invalid proxy url")

type Service struct {
	probeURL string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewService(probeURL string, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{probeURL: probeURL, timeout: timeout, logger: logger}
}

// Check GETs the probe URL through proxyURL. Any 2xx counts as reachable.
func (s *Service) Check(ctx context.Context, proxyURL string) error {
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidProxyURL
	}

	client := &http.Client{
		Timeout:   s.timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
		}
	}

	log := logger.WithTrace(ctx, s.logger).With(zap.String("proxy", u.Redacted()))
	if err != nil {
		metrics.RecordUpstreamCallLatency("proxy_probe", "error", time.Since(start))
		log.Info("Proxy check failed", zap.Error(err))
		return err
	}
	metrics.RecordUpstreamCallLatency("proxy_probe", "success", time.Since(start))
	log.Info("Proxy check succeeded", zap.Duration("duration", time.Since(start)))
	return nil
}
