package ctxkey

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestLogger(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := Logger(context.Background(), fallback); got != fallback {
		t.Error("empty context should return the fallback")
	}

	enriched := fallback.With("run_id", "r1")
	ctx := WithLogger(context.Background(), enriched)
	if got := Logger(ctx, fallback); got != enriched {
		t.Error("stored logger not returned")
	}

	if got := Logger(WithLogger(context.Background(), nil), fallback); got != fallback {
		t.Error("nil stored logger should fall back")
	}
}
