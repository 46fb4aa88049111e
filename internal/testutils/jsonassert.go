package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in an expected document matches any actual value.
const PresencePlaceholder = "<<PRESENCE>>"

type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
}

type JSONOption func(*JSONAssertOptions)

func WithIgnoreExtraKeys(ignore bool) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreExtraKeys = ignore }
}

// WithIgnoredFields drops the named keys at every depth before comparing.
func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoredFields = append(o.IgnoredFields, fields...) }
}

// AssertJSON fails t with a structural diff when actual does not match expected.
func AssertJSON(t TestingT, actual, expected string, opts ...JSONOption) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	options := JSONAssertOptions{}
	defaults.SetDefaults(&options)
	for _, opt := range opts {
		opt(&options)
	}
	if diff := jsonDiff(actual, expected, options); diff != "" {
		t.Errorf("JSON assertion failed:\n%s", diff)
	}
}

func jsonDiff(actualJSON, expectedJSON string, opts JSONAssertOptions) string {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff compares objects only
	if _, ok := expected.([]interface{}); ok {
		expected = map[string]interface{}{"array": expected}
		actual = map[string]interface{}{"array": actual}
	}

	if len(opts.IgnoredFields) > 0 {
		ignored := make(map[string]bool, len(opts.IgnoredFields))
		for _, f := range opts.IgnoredFields {
			ignored[f] = true
		}
		dropKeys(expected, ignored)
		dropKeys(actual, ignored)
	}
	reconcile(expected, actual, opts)

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)
	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(diff)
	return out
}

// reconcile walks expected and actual together, filling presence
// placeholders from actual and pruning actual keys expected does not name.
func reconcile(expected, actual interface{}, opts JSONAssertOptions) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		for k, ev := range exp {
			av, present := act[k]
			if opts.AllowPresencePlaceholder && ev == PresencePlaceholder && present {
				exp[k] = av
				continue
			}
			reconcile(ev, av, opts)
		}
		if opts.IgnoreExtraKeys {
			for k := range act {
				if _, ok := exp[k]; !ok {
					delete(act, k)
				}
			}
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i >= len(act) {
				return
			}
			if opts.AllowPresencePlaceholder && exp[i] == PresencePlaceholder {
				exp[i] = act[i]
				continue
			}
			reconcile(exp[i], act[i], opts)
		}
	}
}

func dropKeys(v interface{}, ignored map[string]bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if ignored[k] {
				delete(t, k)
				continue
			}
			dropKeys(child, ignored)
		}
	case []interface{}:
		for _, child := range t {
			dropKeys(child, ignored)
		}
	}
}
