package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sysofwan/ha-triones/internal/device"
)

// FakeAdvertisement is a static device.Advertisement
type FakeAdvertisement struct {
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Rssi          int      `json:"rssi"`
	ServiceUUIDs  []string `json:"services,omitempty"`
	IsConnectable bool     `json:"connectable"`
}

func (a *FakeAdvertisement) LocalName() string  { return a.Name }
func (a *FakeAdvertisement) Addr() string       { return a.Address }
func (a *FakeAdvertisement) RSSI() int          { return a.Rssi }
func (a *FakeAdvertisement) Services() []string { return a.ServiceUUIDs }
func (a *FakeAdvertisement) Connectable() bool  { return a.IsConnectable }

// AdvertisementBuilder builds fake advertisements for scan tests.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder creates a builder for a connectable advertisement
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{IsConnectable: true, Rssi: -60}}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithServices adds advertised service UUIDs
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceUUIDs = append(b.adv.ServiceUUIDs, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	return b
}

// Build returns a copy of the configured advertisement
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	adv.ServiceUUIDs = append([]string(nil), b.adv.ServiceUUIDs...)
	return &adv
}

// AdvertisementArrayBuilder collects advertisements and hands them to a parent on Build.
type AdvertisementArrayBuilder[T any] struct {
	ads       []device.Advertisement
	parent    T
	buildFunc func(parent T, ads []device.Advertisement) T
}

// NewAdvertisementArrayBuilder creates a builder whose Build returns the collected slice
// when T is []device.Advertisement.
func NewAdvertisementArrayBuilder[T any]() *AdvertisementArrayBuilder[T] {
	return &AdvertisementArrayBuilder[T]{}
}

// WithAdvertisements appends prebuilt advertisements
func (ab *AdvertisementArrayBuilder[T]) WithAdvertisements(ads ...device.Advertisement) *AdvertisementArrayBuilder[T] {
	ab.ads = append(ab.ads, ads...)
	return ab
}

// WithNamed appends a connectable advertisement per name; addresses are generated.
func (ab *AdvertisementArrayBuilder[T]) WithNamed(names ...string) *AdvertisementArrayBuilder[T] {
	for _, name := range names {
		addr := fmt.Sprintf("00:00:00:00:00:%02X", len(ab.ads)+1)
		ab.ads = append(ab.ads, NewAdvertisementBuilder().WithName(name).WithAddress(addr).Build())
	}
	return ab
}

// Build returns the parent (or the slice itself when there is no parent)
func (ab *AdvertisementArrayBuilder[T]) Build() T {
	if ab.buildFunc != nil {
		return ab.buildFunc(ab.parent, ab.ads)
	}
	if v, ok := any(ab.ads).(T); ok {
		return v
	}
	var zero T
	return zero
}

// FakeScanner replays advertisements, then blocks until the scan context is done.
type FakeScanner struct {
	Ads     []device.Advertisement
	Err     error
	Stagger time.Duration
}

func (s *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	if s.Err != nil {
		return s.Err
	}
	for _, adv := range s.Ads {
		if s.Stagger > 0 {
			select {
			case <-time.After(s.Stagger):
			case <-ctx.Done():
				return nil
			}
		}
		handler(adv)
	}
	<-ctx.Done()
	return nil
}
