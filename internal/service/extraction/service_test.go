package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pikpakhelper/internal/mailshop"
	"pikpakhelper/pkg/extractor"
	"pikpakhelper/pkg/mq"
)

type fakeProvider struct {
	emails     []string
	extractErr error
	balance    json.RawMessage
	inventory  map[string]any

	extractCalls   int
	inventoryCalls int
}

func (f *fakeProvider) Inventory(ctx context.Context) (map[string]any, error) {
	f.inventoryCalls++
	return f.inventory, nil
}

func (f *fakeProvider) Balance(ctx context.Context, card string) (json.RawMessage, error) {
	return f.balance, nil
}

func (f *fakeProvider) Extract(ctx context.Context, card string, count int, emailType string) ([]string, error) {
	f.extractCalls++
	return f.emails, f.extractErr
}

type fakeLocker struct {
	held     map[string]bool
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (func(), bool) {
	if l.held[key] {
		return nil, false
	}
	l.held[key] = true
	return func() { delete(l.held, key); l.released++ }, true
}

type fakeCache struct {
	data map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	c.data[key] = b
	return err
}

type fakePublisher struct {
	keys []string
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

func request(retry int) extractor.Request {
	return extractor.Request{APIKey: "card-1", EmailType: extractor.Hotmail, Count: 2, RetryCount: retry}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name                    string
		card, count, typ, retry string
		wantErr                 string
	}{
		{"ok", "c", "10", "hotmail", "", ""},
		{"ok with retry", "c", "2000", "outlook", "3", ""},
		{"missing card", "", "10", "hotmail", "", "card"},
		{"missing count", "c", "", "hotmail", "", "count parameter"},
		{"bad type", "c", "10", "gmail", "", "type"},
		{"non-integer count", "c", "ten", "hotmail", "", "integer"},
		{"count too large", "c", "2001", "hotmail", "", "between 1 and 2000"},
		{"count zero", "c", "0", "hotmail", "", "between 1 and 2000"},
		{"bad retry", "c", "1", "hotmail", "-1", "retry_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.card, tt.count, tt.typ, tt.retry)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseRequest() error = %v", err)
				}
				if req.APIKey != tt.card {
					t.Errorf("req = %+v", req)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseRequest() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExtractSuccess(t *testing.T) {
	p := &fakeProvider{emails: []string{"a@hotmail.com----x", "b@hotmail.com----y"}}
	pub := &fakePublisher{}
	svc := NewService(p, Options{Publisher: pub}, nil)

	resp := svc.Extract(context.Background(), request(3))
	if resp.Status != extractor.StatusSuccess {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}
	if resp.Count != 2 || len(resp.Emails) != 2 || resp.Retries != 3 {
		t.Errorf("resp = %+v", resp)
	}
	if len(pub.keys) != 1 || pub.keys[0] != mq.RoutingKeyEmailsExtracted {
		t.Errorf("published = %v", pub.keys)
	}
}

func TestExtractNoInventoryBecomesRetry(t *testing.T) {
	p := &fakeProvider{extractErr: &mailshop.ProviderMessageError{Message: "库存不足"}}
	svc := NewService(p, Options{}, nil)

	resp := svc.Extract(context.Background(), request(4))
	if resp.Status != extractor.StatusRetry {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.RetryCount != 5 {
		t.Errorf("retry_count = %d, want 5", resp.RetryCount)
	}
	if !strings.Contains(resp.Message, "库存不足") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestExtractNoInventoryDefaultMessage(t *testing.T) {
	p := &fakeProvider{extractErr: &mailshop.ProviderMessageError{}}
	svc := NewService(p, Options{}, nil)

	resp := svc.Extract(context.Background(), request(0))
	if resp.Status != extractor.StatusRetry {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.Message != "no email inventory yet, retried 1 times, still trying..." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestExtractUpstreamFailure(t *testing.T) {
	p := &fakeProvider{extractErr: &mailshop.StatusError{Endpoint: "huoqu", StatusCode: 502}}
	svc := NewService(p, Options{}, nil)

	resp := svc.Extract(context.Background(), request(0))
	if resp.Status != extractor.StatusError || !strings.Contains(resp.Message, "HTTP 502") {
		t.Errorf("resp = %+v", resp)
	}

	p.extractErr = errors.New("dial tcp: connection refused")
	resp = svc.Extract(context.Background(), request(0))
	if resp.Status != extractor.StatusError {
		t.Errorf("resp = %+v", resp)
	}
}

func TestExtractLockedCard(t *testing.T) {
	p := &fakeProvider{emails: []string{"a"}}
	locker := &fakeLocker{held: map[string]bool{}}
	svc := NewService(p, Options{Locker: locker}, nil)

	locker.held["extract:lock:"+hashCard("card-1")] = true
	resp := svc.Extract(context.Background(), request(0))
	if resp.Status != extractor.StatusError || p.extractCalls != 0 {
		t.Fatalf("resp = %+v, calls = %d", resp, p.extractCalls)
	}

	locker.held = map[string]bool{}
	resp = svc.Extract(context.Background(), request(0))
	if resp.Status != extractor.StatusSuccess {
		t.Fatalf("resp = %+v", resp)
	}
	if locker.released != 1 || len(locker.held) != 0 {
		t.Errorf("lock not released: %+v", locker)
	}
}

func TestInventoryCached(t *testing.T) {
	p := &fakeProvider{inventory: map[string]any{"hotmail": float64(3)}}
	svc := NewService(p, Options{Cache: &fakeCache{data: map[string][]byte{}}, InventoryTTL: time.Second}, nil)

	for i := 0; i < 3; i++ {
		inv, err := svc.Inventory(context.Background())
		if err != nil {
			t.Fatalf("Inventory() error = %v", err)
		}
		if inv["hotmail"] != float64(3) {
			t.Errorf("inventory = %v", inv)
		}
	}
	if p.inventoryCalls != 1 {
		t.Errorf("provider calls = %d, want 1", p.inventoryCalls)
	}
}

func TestBalanceRequiresCard(t *testing.T) {
	svc := NewService(&fakeProvider{balance: json.RawMessage(`5`)}, Options{}, nil)
	if _, err := svc.Balance(context.Background(), ""); err == nil {
		t.Error("Balance(\"\") succeeded")
	}
	raw, err := svc.Balance(context.Background(), "c")
	if err != nil || extractor.NormalizeBalance(raw) != 5 {
		t.Errorf("Balance() = %s, %v", raw, err)
	}
}
