package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), Subject, "viewer-service")
	if got := String(ctx, Subject); got != "viewer-service" {
		t.Fatalf("String(Subject) = %q; want viewer-service", got)
	}
}

func TestString_UntypedKeyDoesNotCollide(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // plain string key on purpose
	ctx := context.WithValue(context.Background(), "subject", "intruder")
	if got := String(ctx, Subject); got != "" {
		t.Fatalf("String(Subject) = %q; want empty", got)
	}
}
