package extractor

import (
	"encoding/json"
	"testing"
)

func TestNormalizeBalance(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`42`, 42},
		{`{"num": 7}`, 7},
		{`null`, 0},
		{``, 0},
		{`{}`, 0},
		{`{"num": null}`, 0},
		{`"15"`, 15},
		{`{"num": "8"}`, 8},
		{`12.9`, 12},
		{`true`, 0},
		{`"abc"`, 0},
		{`{"num": {"num": 3}}`, 0},
		{`[1,2]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeBalance(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("NormalizeBalance(%s) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBalanceResponseDecode(t *testing.T) {
	tests := []struct {
		body string
		want Balance
	}{
		{`{"status":"success","balance":42}`, 42},
		{`{"status":"success","balance":{"num":7}}`, 7},
		{`{"status":"success","balance":null}`, 0},
		{`{"status":"success"}`, 0},
	}

	for _, tt := range tests {
		var resp BalanceResponse
		if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.body, err)
		}
		if resp.Balance != tt.want {
			t.Errorf("Unmarshal(%s).Balance = %d, want %d", tt.body, resp.Balance, tt.want)
		}
	}
}

func TestInterpret(t *testing.T) {
	if out, ok := Interpret(&ExtractResponse{Status: StatusSuccess, Emails: []string{"a", "b"}}, 0).(Success); !ok || out.Count != 2 {
		t.Errorf("success without count = %#v", out)
	}
	if out, ok := Interpret(&ExtractResponse{Status: StatusRetry, RetryCount: 9}, 3).(Retry); !ok || out.RetryCount != 9 {
		t.Errorf("retry with count = %#v", out)
	}
	if out, ok := Interpret(&ExtractResponse{Status: StatusRetry}, 3).(Retry); !ok || out.RetryCount != 4 {
		t.Errorf("retry without count = %#v", out)
	}
	if out, ok := Interpret(nil, 0).(Failure); !ok || out.Message == "" {
		t.Errorf("nil response = %#v", out)
	}
}
