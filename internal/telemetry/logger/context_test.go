package logger

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-01J0000000")
	if got := RequestIDFromContext(ctx); got != "req-01J0000000" {
		t.Errorf("RequestIDFromContext = %q, want req-01J0000000", got)
	}
}
