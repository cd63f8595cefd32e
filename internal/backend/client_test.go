package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pikpakhelper/pkg/extractor"
	"pikpakhelper/pkg/trace"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 0)
}

func TestExtractEmailsSendsParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract_emails" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("card") != "k" || q.Get("shuliang") != "3" || q.Get("leixing") != "hotmail" || q.Get("retry_count") != "2" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get(trace.HeaderName) != "trace-1" {
			t.Errorf("trace header = %q", r.Header.Get(trace.HeaderName))
		}
		w.Write([]byte(`{"status":"success","emails":["a","b","c"],"count":3,"retries":2}`))
	})

	ctx := trace.WithContext(context.Background(), "trace-1")
	resp, err := c.ExtractEmails(ctx, "k", 3, extractor.Hotmail, 2)
	if err != nil {
		t.Fatalf("ExtractEmails() error = %v", err)
	}
	if resp.Status != extractor.StatusSuccess || resp.Count != 3 || len(resp.Emails) != 3 || resp.Retries != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestExtractEmailsRetryEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"retry","retry_count":1,"message":"no stock"}`))
	})

	resp, err := c.ExtractEmails(context.Background(), "k", 1, extractor.Outlook, 0)
	if err != nil {
		t.Fatalf("ExtractEmails() error = %v", err)
	}
	if resp.Status != extractor.StatusRetry || resp.RetryCount != 1 || resp.Message != "no stock" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCheckBalanceShapes(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{`{"status":"success","balance":{"num":42}}`, 42},
		{`{"status":"success","balance":7}`, 7},
		{`{"status":"success","balance":null}`, 0},
	}

	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("card") != "k" {
				t.Errorf("card = %q", r.URL.Query().Get("card"))
			}
			w.Write([]byte(tt.body))
		})
		resp, err := c.CheckBalance(context.Background(), "k")
		if err != nil {
			t.Fatalf("CheckBalance(%s) error = %v", tt.body, err)
		}
		if int64(resp.Balance) != tt.want {
			t.Errorf("CheckBalance(%s) balance = %d, want %d", tt.body, resp.Balance, tt.want)
		}
	}
}

func TestTransportFailures(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusBadGateway) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			if _, err := c.ExtractEmails(context.Background(), "k", 1, extractor.Outlook, 0); err == nil {
				t.Error("ExtractEmails() error = nil")
			}
		})
	}
}

func TestInventory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","inventory":{"outlook":5}}`))
	})

	resp, err := c.Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory() error = %v", err)
	}
	if resp.Inventory["outlook"] != float64(5) {
		t.Errorf("inventory = %v", resp.Inventory)
	}
}
