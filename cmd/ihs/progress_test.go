package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinterPhases(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Scanning for headsets", "Scanning", "Done")
	p.Start()
	p.Callback()("Connecting")
	time.Sleep(3 * progressUpdateInterval)
	p.Stop()
	p.Stop()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\rScanning for headsets (Scanning...)"), "first line MUST show the initial phase: %q", out)
	assert.Contains(t, out, "(Connecting")
	assert.True(t, strings.HasSuffix(out, clearLineSequence), "Stop MUST clear the line")
}

func TestProgressPrinterStopPhase(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Reading", "Connecting", "Done")
	p.Start()
	p.Callback()("Done")

	size := buf.Len()
	time.Sleep(2 * progressUpdateInterval)
	assert.Equal(t, size, buf.Len(), "stop phase MUST end updates")
	p.Stop()
}

func TestProgressPrinterCountdown(t *testing.T) {
	p := NewProgressPrinter(&bytes.Buffer{}, "Scanning", "Scanning").WithCountdown(10 * time.Second)
	assert.Equal(t, 7, p.seconds(3300*time.Millisecond))
	assert.Equal(t, 0, p.seconds(11*time.Second))

	up := NewProgressPrinter(&bytes.Buffer{}, "Reading", "Connecting")
	assert.Equal(t, 3, up.seconds(3900*time.Millisecond))
}

func TestProgressPrinterStopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Reading", "Connecting")
	p.Stop()
	assert.Empty(t, buf.String(), "an unstarted printer MUST stay silent")
}
