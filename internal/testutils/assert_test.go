package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestAssertJSON(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		opts     []JSONOption
		fail     bool
	}{
		{"equal", `{"a":1,"b":"x"}`, `{"b":"x","a":1}`, nil, false},
		{"value differs", `{"a":1}`, `{"a":2}`, nil, true},
		{"extra keys ignored by default", `{"a":1,"ts":123}`, `{"a":1}`, nil, false},
		{"extra keys fail when strict", `{"a":1,"ts":123}`, `{"a":1}`, []JSONOption{WithIgnoreExtraKeys(false)}, true},
		{"presence placeholder", `{"a":1,"ts":123}`, `{"a":1,"ts":"<<PRESENCE>>"}`, []JSONOption{WithIgnoreExtraKeys(false)}, false},
		{"missing key with placeholder", `{"a":1}`, `{"a":1,"ts":"<<PRESENCE>>"}`, nil, true},
		{"ignored nested field", `{"r":{"yaw":1,"at":5}}`, `{"r":{"yaw":1,"at":9}}`, []JSONOption{WithIgnoredFields("at")}, false},
		{"root array", `[{"a":1},{"a":2}]`, `[{"a":1},{"a":2}]`, nil, false},
		{"root array differs", `[{"a":1}]`, `[{"a":3}]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			AssertJSON(rec, tt.actual, tt.expected, tt.opts...)
			if tt.fail {
				assert.Len(t, rec.failures, 1, "assertion MUST fail")
			} else {
				assert.Empty(t, rec.failures, "assertion MUST pass")
			}
		})
	}
}

func TestAssertText(t *testing.T) {
	rec := &recordingT{}
	AssertText(rec, "line 1  \nline 2\n\n", "line 1\nline 2")
	assert.Empty(t, rec.failures, "trailing whitespace MUST be ignored by default")

	rec = &recordingT{}
	AssertText(rec, "a\n\nb", "a\nb", WithIgnoreEmptyLines(true))
	assert.Empty(t, rec.failures)

	rec = &recordingT{}
	AssertText(rec, "yaw 10.0\npitch 2.0", "yaw 10.0\npitch 3.0")
	if assert.Len(t, rec.failures, 1) {
		assert.Contains(t, rec.failures[0], "-pitch 3.0")
		assert.Contains(t, rec.failures[0], "+pitch 2.0")
	}

	rec = &recordingT{}
	AssertText(rec, "roll 1.0", "roll 4.0", WithEnableColors(true), WithTrimSpace(false))
	assert.Len(t, rec.failures, 1, "colored diff MUST still report the mismatch")
}
