package groutine

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoNamesGoroutineAndSignalsCompletion(t *testing.T) {
	type seen struct{ name, label string }
	got := make(chan seen, 1)

	done := Go(context.Background(), "ble-reconnect", func(ctx context.Context) {
		label, _ := pprof.Label(ctx, LabelKey)
		got <- seen{Name(ctx), label}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "done channel MUST close after fn returns")
	}
	assert.Equal(t, seen{"ble-reconnect", "ble-reconnect"}, <-got)
}

func TestGoPropagatesParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := Go(ctx, "ble-disconnect-monitor", func(ctx context.Context) {
		<-ctx.Done()
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "goroutine MUST observe parent cancellation")
	}
}

func TestGoWithNilParent(t *testing.T) {
	//nolint:staticcheck // nil parent is accepted
	done := Go(nil, "event-dispatcher", func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
	})
	<-done
}

func TestNameOutsideNamedGoroutine(t *testing.T) {
	assert.Empty(t, Name(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Empty(t, Name(nil))
}
