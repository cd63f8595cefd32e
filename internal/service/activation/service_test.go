package activation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

func TestActivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Referer") == "" {
			t.Errorf("method = %s, referer = %q", r.Method, r.Header.Get("Referer"))
		}
		var body struct {
			Info map[string]any `json:"info"`
			Key  string         `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Key != "k1" || body.Info["email"] != "a@x.com" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"code":200,"msg":"ok"}`))
	}))
	defer srv.Close()

	pub := &recordingPublisher{}
	svc := NewService(srv.URL, "https://inject.example/", time.Second, pub, nil)

	result, err := svc.Activate(context.Background(), json.RawMessage(`{"email":"a@x.com"}`), "k1")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if m, ok := result.(map[string]any); !ok || m["msg"] != "ok" {
		t.Errorf("result = %v", result)
	}
	if len(pub.keys) != 1 {
		t.Errorf("published = %v", pub.keys)
	}
}

func TestActivateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "", time.Second, nil, nil)
	_, err := svc.Activate(context.Background(), json.RawMessage(`{}`), "bad")

	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Activate() error = %v", err)
	}
}

func TestActivateMissingInput(t *testing.T) {
	svc := NewService("http://unused", "", time.Second, nil, nil)
	for _, tc := range []struct {
		info string
		key  string
	}{{"", "k"}, {"null", "k"}, {`{"a":1}`, ""}} {
		if _, err := svc.Activate(context.Background(), json.RawMessage(tc.info), tc.key); !errors.Is(err, ErrMissingInput) {
			t.Errorf("Activate(%q, %q) error = %v", tc.info, tc.key, err)
		}
	}
}
