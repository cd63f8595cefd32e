package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := FromContext(ctx); got != "" {
		t.Errorf("FromContext(empty) = %q", got)
	}

	id := GenerateTraceID()
	if id == "" || id == GenerateTraceID() {
		t.Fatalf("GenerateTraceID() = %q, want unique non-empty", id)
	}
	if got := FromContext(WithContext(ctx, id)); got != id {
		t.Errorf("FromContext() = %q, want %q", got, id)
	}
}
