package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func newTestBreaker() (*CircuitBreaker, *time.Time, *[]string) {
	now := time.Unix(1000, 0)
	var changes []string
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             10 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return now }
	return cb, &now, &changes
}

func TestOpensAfterThreshold(t *testing.T) {
	cb, _, _ := newTestBreaker()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitBreakerOpen", err)
	}
	if called {
		t.Error("fn called while open")
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	cb, _, _ := newTestBreaker()

	_ = cb.Execute(func() error { return errUpstream })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errUpstream })

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb, now, changes := newTestBreaker()

	_ = cb.Execute(func() error { return errUpstream })
	_ = cb.Execute(func() error { return errUpstream })
	*now = now.Add(11 * time.Second)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("Execute() #%d error = %v", i, err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(*changes) != len(want) {
		t.Fatalf("changes = %v, want %v", *changes, want)
	}
	for i := range want {
		if (*changes)[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, (*changes)[i], want[i])
		}
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, now, _ := newTestBreaker()

	_ = cb.Execute(func() error { return errUpstream })
	_ = cb.Execute(func() error { return errUpstream })
	*now = now.Add(11 * time.Second)

	_ = cb.Execute(func() error { return errUpstream })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open", cb.GetState())
	}
}

func TestReset(t *testing.T) {
	cb, _, _ := newTestBreaker()
	_ = cb.Execute(func() error { return errUpstream })
	_ = cb.Execute(func() error { return errUpstream })

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute() after reset error = %v", err)
	}
}
