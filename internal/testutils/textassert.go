package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the part of testing.T the assertion helpers need.
type TestingT interface {
	Errorf(format string, args ...interface{})
}

type TextAssertOptions struct {
	TrimSpace        bool `default:"true"`
	IgnoreTrailing   bool `default:"true"`
	IgnoreEmptyLines bool `default:"false"`
	EnableColors     bool `default:"false"`
}

type TextOption func(*TextAssertOptions)

func WithTrimSpace(trim bool) TextOption {
	return func(o *TextAssertOptions) { o.TrimSpace = trim }
}

func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreEmptyLines = ignore }
}

func WithEnableColors(enable bool) TextOption {
	return func(o *TextAssertOptions) { o.EnableColors = enable }
}

// AssertText fails t with a unified diff when actual differs from expected.
func AssertText(t TestingT, actual, expected string, opts ...TextOption) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	options := TextAssertOptions{}
	defaults.SetDefaults(&options)
	for _, opt := range opts {
		opt(&options)
	}
	if diff := textDiff(actual, expected, options); diff != "" {
		t.Errorf("Text assertion failed - unified diff:\n%s", diff)
	}
}

func textDiff(actual, expected string, opts TextAssertOptions) string {
	a, e := normalizeText(actual, opts), normalizeText(expected, opts)
	if a == e {
		return ""
	}
	edits := myers.ComputeEdits("", e, a)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if !opts.EnableColors {
		return unified
	}

	added := color.New(color.FgGreen).SprintFunc()
	removed := color.New(color.FgRed).SprintFunc()
	hunk := color.New(color.FgCyan).SprintFunc()
	lines := strings.Split(unified, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			lines[i] = added(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removed(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunk(line)
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeText(s string, opts TextAssertOptions) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if opts.IgnoreTrailing {
			line = strings.TrimRight(line, " \t")
		}
		if opts.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	res := strings.Join(out, "\n")
	if opts.TrimSpace {
		res = strings.TrimSpace(res)
	}
	return res + "\n"
}
