// Package mailshop talks to the email inventory provider: stock (kucun),
// balance (yue) and extraction (huoqu).
package mailshop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/pkg/circuitbreaker"
	"pikpakhelper/pkg/metrics"
)

const (
	DefaultBaseURL = "https://zizhu.shanyouxiang.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
)

// ErrNoInventory 上游返回了 {"msg": ...}，一般是库存不足
var ErrNoInventory = errors.New("mailshop: no inventory")

// ProviderMessageError carries the provider's msg text.
type ProviderMessageError struct {
	Message string
}

func (e *ProviderMessageError) Error() string {
	return "mailshop: " + e.Message
}

func (e *ProviderMessageError) Is(target error) bool {
	return target == ErrNoInventory
}

// StatusError 上游返回非 200
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 500 {
		return fmt.Sprintf("mailshop %s: upstream 5xx: %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("mailshop %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// Config 客户端配置
type Config struct {
	BaseURL        string
	QueryTimeout   time.Duration // kucun / yue
	ExtractTimeout time.Duration // huoqu，数量大时上游比较慢
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		QueryTimeout:   10 * time.Second,
		ExtractTimeout: 30 * time.Second,
	}
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	queryTimeout   time.Duration
	extractTimeout time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = def.ExtractTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cbCfg := circuitbreaker.DefaultConfig()
	cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Mailshop circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{},
		queryTimeout:   cfg.QueryTimeout,
		extractTimeout: cfg.ExtractTimeout,
		breaker:        circuitbreaker.NewCircuitBreaker(cbCfg),
		logger:         logger,
	}
}

// Inventory returns the provider's stock table as-is.
func (c *Client) Inventory(ctx context.Context) (map[string]any, error) {
	body, err := c.get(ctx, "kucun", nil, c.queryTimeout)
	if err != nil {
		return nil, err
	}

	var inv map[string]any
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, fmt.Errorf("mailshop kucun: decode: %w", err)
	}
	return inv, nil
}

// Balance returns the raw balance JSON (a bare number or {"num": n}).
func (c *Client) Balance(ctx context.Context, card string) (json.RawMessage, error) {
	body, err := c.get(ctx, "yue", url.Values{"card": {card}}, c.queryTimeout)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("mailshop yue: invalid json body")
	}
	return json.RawMessage(body), nil
}

// Extract 提取邮箱。上游返回 JSON {"msg": ...} 时返回 *ProviderMessageError，
// 否则按行解析 "邮箱----密码..." 文本
func (c *Client) Extract(ctx context.Context, card string, count int, emailType string) ([]string, error) {
	params := url.Values{
		"card":     {card},
		"shuliang": {strconv.Itoa(count)},
		"leixing":  {emailType},
	}
	body, err := c.get(ctx, "huoqu", params, c.extractTimeout)
	if err != nil {
		return nil, err
	}

	if msg, ok := providerMessage(body); ok {
		return nil, &ProviderMessageError{Message: msg}
	}
	return ParseLines(string(body)), nil
}

// ParseLines splits a text body into trimmed non-empty lines.
func ParseLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func providerMessage(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", false
	}
	msg, ok := obj["msg"]
	if !ok {
		return "", false
	}
	switch v := msg.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(v), true
	default:
		return fmt.Sprint(v), true
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body []byte
	start := time.Now()
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(b)}
		}
		body = b
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
		c.logger.Warn("Mailshop call failed",
			zap.String("endpoint", endpoint),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
	metrics.RecordUpstreamCallLatency(endpoint, status, time.Since(start))

	if err != nil {
		return nil, err
	}
	return body, nil
}
