package session

import (
	"github.com/sysofwan/ha-triones/internal/device"
)

// Known characteristic UUIDs across Triones/LEDBLE firmware revisions.
var (
	DefaultWriteCandidates = []string{
		"0000ffd5-0000-1000-8000-00805f9b34fb",
		"0000ffd9-0000-1000-8000-00805f9b34fb",
		"0000ffe5-0000-1000-8000-00805f9b34fb",
		"0000ffe9-0000-1000-8000-00805f9b34fb",
	}
	DefaultNotifyCandidates = []string{
		"0000ffd0-0000-1000-8000-00805f9b34fb",
		"0000ffd4-0000-1000-8000-00805f9b34fb",
		"0000ffe0-0000-1000-8000-00805f9b34fb",
		"0000ffe4-0000-1000-8000-00805f9b34fb",
	}

	// DefaultFixedPair is the single pair used by the simpler firmware variant.
	DefaultFixedPair = Pair{
		Write:  "0000ffd9-0000-1000-8000-00805f9b34fb",
		Notify: "0000ffd4-0000-1000-8000-00805f9b34fb",
	}
)

// Pair holds the write (command) and notify (status) characteristic UUIDs.
type Pair struct {
	Write  string
	Notify string
}

// Resolver selects the characteristic pair from the UUIDs a connected
// peripheral exposes, in discovery order.
type Resolver interface {
	Resolve(exposed []string) (Pair, error)
}

// CatalogResolver searches candidate catalogs. For each side the first exposed
// characteristic matching any candidate wins.
type CatalogResolver struct {
	WriteCandidates  []string
	NotifyCandidates []string
}

// NewCatalogResolver returns a resolver over the default candidate catalogs.
func NewCatalogResolver() *CatalogResolver {
	return &CatalogResolver{
		WriteCandidates:  DefaultWriteCandidates,
		NotifyCandidates: DefaultNotifyCandidates,
	}
}

func (r *CatalogResolver) Resolve(exposed []string) (Pair, error) {
	writeSet := uuidSet(r.WriteCandidates)
	notifySet := uuidSet(r.NotifyCandidates)

	var pair Pair
	normalized := device.NormalizeUUIDs(exposed)
	for i, uuid := range normalized {
		if _, ok := writeSet[uuid]; ok && pair.Write == "" {
			pair.Write = exposed[i]
		}
		if _, ok := notifySet[uuid]; ok && pair.Notify == "" {
			pair.Notify = exposed[i]
		}
	}

	var missing []string
	if pair.Write == "" {
		missing = append(missing, "write")
	}
	if pair.Notify == "" {
		missing = append(missing, "notify")
	}
	if len(missing) > 0 {
		return Pair{}, &ResolutionError{Missing: missing, Exposed: normalized}
	}
	return pair, nil
}

// FixedResolver skips the search and always returns the configured pair.
// A pair the peripheral does not expose fails later, at lookup.
type FixedResolver struct {
	Pair Pair
}

// NewFixedResolver returns a resolver for the default fixed pair.
func NewFixedResolver() *FixedResolver {
	return &FixedResolver{Pair: DefaultFixedPair}
}

func (r *FixedResolver) Resolve([]string) (Pair, error) {
	return r.Pair, nil
}

func uuidSet(uuids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(uuids))
	for _, u := range uuids {
		set[device.NormalizeUUID(u)] = struct{}{}
	}
	return set
}
