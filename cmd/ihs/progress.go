package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps a single status line with the current phase and the
// elapsed (or remaining) seconds. It is single-use: Start once, Stop once or
// more.
type ProgressPrinter struct {
	w          io.Writer
	prefix     string
	phase      atomic.Value // string
	stopPhases map[string]struct{}
	countdown  time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewProgressPrinter counts up from zero. Setting one of stopPhases through
// Callback stops the printer.
func NewProgressPrinter(w io.Writer, prefix, phase string, stopPhases ...string) *ProgressPrinter {
	p := &ProgressPrinter{
		w:          w,
		prefix:     prefix,
		stopPhases: make(map[string]struct{}, len(stopPhases)),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, s := range stopPhases {
		p.stopPhases[s] = struct{}{}
	}
	p.phase.Store(phase)
	return p
}

// WithCountdown shows the seconds left of d instead of the elapsed time.
func (p *ProgressPrinter) WithCountdown(d time.Duration) *ProgressPrinter {
	p.countdown = d
	return p
}

func (p *ProgressPrinter) Start() {
	p.startOnce.Do(func() {
		p.started.Store(true)
		p.print(p.phase.Load().(string), 0)
		go p.loop(time.Now())
	})
}

func (p *ProgressPrinter) loop(start time.Time) {
	defer close(p.done)

	ticker := time.NewTicker(progressUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			phase := p.phase.Load().(string)
			if _, ok := p.stopPhases[phase]; ok {
				return
			}
			p.print(phase, p.seconds(time.Since(start)))
		}
	}
}

func (p *ProgressPrinter) seconds(elapsed time.Duration) int {
	if p.countdown <= 0 {
		return int(elapsed.Seconds())
	}
	remaining := p.countdown - elapsed
	if remaining <= 0 {
		return 0
	}
	// nearest second
	return int(remaining.Seconds() + 0.5)
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
		return
	}
	fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
}

// Callback updates the phase; a stop phase stops the printer. Safe for
// concurrent use.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, ok := p.stopPhases[phase]; ok {
			p.Stop()
		}
	}
}

// Stop ends the updates and clears the line. Only the first call has an
// effect.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		if !p.started.Load() {
			return
		}
		<-p.done
		fmt.Fprint(p.w, clearLineSequence)
	})
}
