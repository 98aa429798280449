package discovery

import "strings"

// Matcher decides whether an advertised name belongs to a supported device
type Matcher interface {
	Match(name string) bool
}

// NamePrefixMatcher matches names starting with any of Prefixes.
// Empty names never match.
type NamePrefixMatcher struct {
	Prefixes      []string
	CaseSensitive bool
}

// CatalogMatcher matches the names used across the Triones/LEDBLE family
func CatalogMatcher() NamePrefixMatcher {
	return NamePrefixMatcher{Prefixes: []string{"triones", "ledble"}}
}

// FixedMatcher matches the single case-sensitive prefix of the fixed-pair firmware
func FixedMatcher() NamePrefixMatcher {
	return NamePrefixMatcher{Prefixes: []string{"Triones"}, CaseSensitive: true}
}

func (m NamePrefixMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	if !m.CaseSensitive {
		name = strings.ToLower(name)
	}
	for _, p := range m.Prefixes {
		if !m.CaseSensitive {
			p = strings.ToLower(p)
		}
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// AnyNamed matches every device that advertises a name
type AnyNamed struct{}

func (AnyNamed) Match(name string) bool { return name != "" }
