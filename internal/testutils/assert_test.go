package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures assertion failures instead of failing the test
type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestTextAsserter_Defaults(t *testing.T) {
	opts := NewTextAsserter(t).GetOptions()
	assert.True(t, opts.TrimSpace)
	assert.True(t, opts.IgnoreTrailingWhitespace)
	assert.False(t, opts.IgnoreEmptyLines)
	assert.False(t, opts.EnableColors)
}

func TestTextAsserter_Assert(t *testing.T) {
	t.Run("normalised texts match", func(t *testing.T) {
		rec := &recordingT{}
		ok := NewTextAsserter(rec).Assert("\n  a  \nb\t\n", "  a\nb")
		assert.True(t, ok)
		assert.Empty(t, rec.errors)
	})

	t.Run("mismatch reports unified diff", func(t *testing.T) {
		rec := &recordingT{}
		ok := NewTextAsserter(rec).Assert("power: on\ncolor: (1, 2, 3)", "power: off\ncolor: (1, 2, 3)")
		assert.False(t, ok)
		if assert.Len(t, rec.errors, 1) {
			assert.Contains(t, rec.errors[0], "-power: off")
			assert.Contains(t, rec.errors[0], "+power: on")
		}
	})

	t.Run("empty lines ignored on request", func(t *testing.T) {
		ta := NewTextAsserter(t).WithOptions(WithIgnoreEmptyLines(true))
		assert.Empty(t, ta.Diff("a\n\n\nb", "a\nb"))
	})

	t.Run("colours mark whitespace", func(t *testing.T) {
		ta := NewTextAsserter(t).WithOptions(WithEnableColors(true), WithIgnoreTrailingWhitespace(false))
		d := ta.Diff("a b", "a  b")
		assert.True(t, strings.Contains(d, "·"), "whitespace MUST be visible in coloured diffs")
	})
}

func TestJSONAsserter_Defaults(t *testing.T) {
	opts := NewJSONAsserter(t).GetOptions()
	assert.True(t, opts.IgnoreExtraKeys)
	assert.True(t, opts.AllowPresencePlaceholder)
	assert.Empty(t, opts.IgnoredFields)
}

func TestJSONAsserter_Assert(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		match    bool
	}{
		{
			name:     "extra keys ignored by default",
			actual:   `{"power":"on","color":{"r":1,"g":2,"b":3}}`,
			expected: `{"power":"on"}`,
			match:    true,
		},
		{
			name:     "extra keys reported when strict",
			opts:     []Option{WithIgnoreExtraKeys(false)},
			actual:   `{"power":"on","white_brightness":5}`,
			expected: `{"power":"on"}`,
			match:    false,
		},
		{
			name:     "presence placeholder matches any value",
			actual:   `{"address":"AA:BB","rssi":-42}`,
			expected: `{"address":"AA:BB","rssi":"<<PRESENCE>>"}`,
			match:    true,
		},
		{
			name:     "ignored fields",
			opts:     []Option{WithIgnoredFields("rssi")},
			actual:   `[{"name":"Triones-1","rssi":-40}]`,
			expected: `[{"name":"Triones-1","rssi":-90}]`,
			match:    true,
		},
		{
			name:     "value mismatch",
			actual:   `{"power":"off"}`,
			expected: `{"power":"on"}`,
			match:    false,
		},
		{
			name:     "root arrays compare element-wise",
			actual:   `[{"name":"a"},{"name":"b"}]`,
			expected: `[{"name":"b"},{"name":"a"}]`,
			match:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			ok := NewJSONAsserter(rec).WithOptions(tt.opts...).Assert(tt.actual, tt.expected)
			assert.Equal(t, tt.match, ok, "errors: %v", rec.errors)
		})
	}
}

func TestJSONAsserter_InvalidJSON(t *testing.T) {
	d := NewJSONAsserter(t).Diff(`{`, `{}`)
	assert.Contains(t, d, "invalid actual JSON")
}
