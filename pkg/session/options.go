package session

import (
	"fmt"
	"time"
)

// Variant names a deployed firmware family
type Variant string

const (
	// VariantCatalog searches the candidate catalogs and waits for the link to settle.
	VariantCatalog Variant = "catalog"
	// VariantFixed uses one hardcoded characteristic pair and no settle delays.
	VariantFixed Variant = "fixed"
)

// Default timings
const (
	DefaultConnectTimeout  = 20 * time.Second
	DefaultConnectSettle   = 1 * time.Second
	DefaultNotifySettle    = 2 * time.Second
	DefaultResponseTimeout = 5 * time.Second
)

// Options configures a Session
type Options struct {
	Resolver Resolver

	// ConnectTimeout bounds link establishment.
	ConnectTimeout time.Duration
	// ConnectSettle is waited after a fresh connect, before resolution.
	ConnectSettle time.Duration
	// NotifySettle is waited before every status subscription; some
	// peripherals reject subscriptions right after connect.
	NotifySettle time.Duration
	// ResponseTimeout bounds the wait for the status notification.
	ResponseTimeout time.Duration
}

// CatalogOptions returns the options of the candidate catalog variant.
func CatalogOptions() Options {
	return Options{
		Resolver:        NewCatalogResolver(),
		ConnectTimeout:  DefaultConnectTimeout,
		ConnectSettle:   DefaultConnectSettle,
		NotifySettle:    DefaultNotifySettle,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// FixedOptions returns the options of the fixed pair variant.
func FixedOptions() Options {
	return Options{
		Resolver:        NewFixedResolver(),
		ConnectTimeout:  DefaultConnectTimeout,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// OptionsFor returns the options for a named variant.
func OptionsFor(v Variant) (Options, error) {
	switch v {
	case VariantCatalog, "":
		return CatalogOptions(), nil
	case VariantFixed:
		return FixedOptions(), nil
	default:
		return Options{}, fmt.Errorf("unknown variant %q (must be %q or %q)", v, VariantCatalog, VariantFixed)
	}
}

// withDefaults fills unset fields; settle delays may legitimately be zero.
func (o Options) withDefaults() Options {
	if o.Resolver == nil {
		o.Resolver = NewCatalogResolver()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = DefaultResponseTimeout
	}
	if o.ConnectSettle < 0 {
		o.ConnectSettle = 0
	}
	if o.NotifySettle < 0 {
		o.NotifySettle = 0
	}
	return o
}
