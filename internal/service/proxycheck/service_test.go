package proxycheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// 测试用的 "代理"：普通 HTTP 代理请求的是绝对 URL，直接应答即可
func newProxy(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Host != "probe.example" {
			t.Errorf("proxied host = %q", r.URL.Host)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCheckThroughProxy(t *testing.T) {
	proxy, hits := newProxy(t, http.StatusOK)
	s := NewService("http://probe.example/", 2*time.Second, nil)

	if err := s.Check(context.Background(), proxy.URL); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("proxy hits = %d, want 1", hits.Load())
	}
}

func TestCheckNon2xx(t *testing.T) {
	proxy, _ := newProxy(t, http.StatusBadGateway)
	s := NewService("http://probe.example/", 2*time.Second, nil)

	if err := s.Check(context.Background(), proxy.URL); err == nil {
		t.Fatal("Check() error = nil, want failure")
	}
}

func TestCheckInvalidURL(t *testing.T) {
	s := NewService("http://probe.example/", time.Second, nil)

	for _, in := range []string{"not a url", "127.0.0.1:7890"} {
		if err := s.Check(context.Background(), in); !errors.Is(err, ErrInvalidProxyURL) {
			t.Errorf("Check(%q) error = %v, want ErrInvalidProxyURL", in, err)
		}
	}
}
