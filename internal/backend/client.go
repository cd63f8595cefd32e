// Package backend is the HTTP client the extraction controller uses to reach
// a running pikpakhelper server.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pikpakhelper/pkg/extractor"
	"pikpakhelper/pkg/metrics"
	"pikpakhelper/pkg/trace"
)

const DefaultTimeout = 40 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ extractor.Backend = (*Client)(nil)

// NewClient 的 timeout 要大于服务端提取超时（30s）
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractEmails calls GET /extract_emails once.
func (c *Client) ExtractEmails(ctx context.Context, apiKey string, count int, emailType extractor.EmailType, retryCount int) (*extractor.ExtractResponse, error) {
	params := url.Values{
		"card":        {apiKey},
		"shuliang":    {strconv.Itoa(count)},
		"leixing":     {string(emailType)},
		"retry_count": {strconv.Itoa(retryCount)},
	}

	var resp extractor.ExtractResponse
	if err := c.get(ctx, "/extract_emails", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckBalance calls GET /check_balance.
func (c *Client) CheckBalance(ctx context.Context, apiKey string) (*extractor.BalanceResponse, error) {
	var resp extractor.BalanceResponse
	if err := c.get(ctx, "/check_balance", url.Values{"card": {apiKey}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InventoryResponse is the envelope of GET /check_email_inventory.
type InventoryResponse struct {
	Status    extractor.Status `json:"status"`
	Inventory map[string]any   `json:"inventory"`
	Message   string           `json:"message,omitempty"`
}

// Inventory calls GET /check_email_inventory.
func (c *Client) Inventory(ctx context.Context) (*InventoryResponse, error) {
	var resp InventoryResponse
	if err := c.get(ctx, "/check_email_inventory", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	// 传播 trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCallLatency(path, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamCallLatency(path, strconv.Itoa(resp.StatusCode), time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("backend %s: upstream 5xx: %d", path, resp.StatusCode)
		}
		return fmt.Errorf("backend %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	metrics.RecordUpstreamCallLatency(path, "success", time.Since(start))

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend %s: decode response: %w", path, err)
	}
	return nil
}
