package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamePrefixMatcher(t *testing.T) {
	tests := []struct {
		name    string
		matcher Matcher
		input   string
		want    bool
	}{
		{"catalog upper", CatalogMatcher(), "LEDBLE-X", true},
		{"catalog mixed", CatalogMatcher(), "Triones_1", true},
		{"catalog lower", CatalogMatcher(), "triones:abc", true},
		{"catalog other", CatalogMatcher(), "OtherDevice", false},
		{"catalog infix", CatalogMatcher(), "MyLEDBLE", false},
		{"catalog empty", CatalogMatcher(), "", false},
		{"fixed exact case", FixedMatcher(), "Triones-A1", true},
		{"fixed wrong case", FixedMatcher(), "TRIONES-A1", false},
		{"fixed ledble", FixedMatcher(), "LEDBLE-1", false},
		{"any named", AnyNamed{}, "Lamp", true},
		{"any unnamed", AnyNamed{}, "", false},
		{"empty prefix never matches", NamePrefixMatcher{Prefixes: []string{""}}, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher.Match(tt.input))
		})
	}
}
