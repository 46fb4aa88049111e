// Package groutine runs named goroutines. The name is attached as a pprof
// label and can be read back from the goroutine's context.
package groutine

import (
	"context"
	"runtime/pprof"
)

// LabelKey is the pprof label holding the goroutine name.
const LabelKey = "goroutine"

type nameKey struct{}

// Go runs fn on a new goroutine named name and returns a channel closed when
// fn returns. A nil parent means context.Background().
//
//	done := groutine.Go(ctx, "event-dispatcher", bus.run)
//	<-done
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}
	done := make(chan struct{})
	go pprof.Do(parent, pprof.Labels(LabelKey, name), func(ctx context.Context) {
		defer close(done)
		fn(context.WithValue(ctx, nameKey{}, name))
	})
	return done
}

// Name returns the name given to Go, or "" outside a named goroutine.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(nameKey{}).(string)
	return name
}
