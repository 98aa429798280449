package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultScanDuration bounds a scan when ScanOptions.Duration is unset
const DefaultScanDuration = 10 * time.Second

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// Peripheral is a compatible device seen during a scan
type Peripheral struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	RSSI        int       `json:"rssi"`
	Services    []string  `json:"services,omitempty"`
	Connectable bool      `json:"connectable"`
	LastSeen    time.Time `json:"-"`
}

// ScanOptions configures a discovery scan
type ScanOptions struct {
	Duration time.Duration
	// Matcher filters by advertised name; nil means CatalogMatcher.
	Matcher   Matcher
	AllowList []string
	BlockList []string
	// OnFound is called once per newly matched peripheral.
	OnFound func(Peripheral)
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration: DefaultScanDuration,
		Matcher:  CatalogMatcher(),
	}
}

// Scanner finds compatible peripherals. It is used at setup time only and is
// independent of device sessions.
type Scanner struct {
	backend device.Scanner
	logger  *logrus.Logger
}

// NewScanner creates a scanner over a transport backend
func NewScanner(backend device.Scanner, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{backend: backend, logger: logger}
}

// Scan listens for advertisements for the configured duration and returns
// matching peripherals in first-seen order.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Peripheral, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultScanDuration
	}

	s.logger.WithField("duration", duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	c := newCollector(opts, s.logger)

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	err := s.backend.Scan(scanCtx, true, c.handle)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	progressCallback("Processing results")
	found := c.results()
	s.logger.WithField("device_count", len(found)).Info("BLE scan completed")
	return found, nil
}

// Filter applies the same rules as Scan to a list of advertisements.
func Filter(ads []device.Advertisement, opts *ScanOptions) []Peripheral {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	c := newCollector(opts, logrus.New())
	for _, adv := range ads {
		c.handle(adv)
	}
	return c.results()
}

// collector de-duplicates advertisements by address, keeping first-seen order.
type collector struct {
	opts    *ScanOptions
	matcher Matcher
	logger  *logrus.Logger

	mu   sync.Mutex
	seen *orderedmap.OrderedMap[string, *Peripheral]
}

func newCollector(opts *ScanOptions, logger *logrus.Logger) *collector {
	m := opts.Matcher
	if m == nil {
		m = CatalogMatcher()
	}
	return &collector{
		opts:    opts,
		matcher: m,
		logger:  logger,
		seen:    orderedmap.New[string, *Peripheral](),
	}
}

func (c *collector) handle(adv device.Advertisement) {
	key := strings.ToUpper(adv.Addr())

	c.mu.Lock()
	p, existing := c.seen.Get(key)
	if existing {
		p.RSSI = adv.RSSI()
		p.LastSeen = time.Now()
		c.mu.Unlock()
		return
	}
	if !c.include(adv) {
		c.mu.Unlock()
		return
	}

	p = &Peripheral{
		Name:        adv.LocalName(),
		Address:     adv.Addr(),
		RSSI:        adv.RSSI(),
		Services:    device.NormalizeUUIDs(adv.Services()),
		Connectable: adv.Connectable(),
		LastSeen:    time.Now(),
	}
	c.seen.Set(key, p)
	found := *p
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"device":  found.Name,
		"address": found.Address,
		"rssi":    found.RSSI,
	}).Info("Discovered compatible device")

	if c.opts.OnFound != nil {
		c.opts.OnFound(found)
	}
}

// include applies allow/block lists and the name matcher
func (c *collector) include(adv device.Advertisement) bool {
	addr := adv.Addr()
	for _, blocked := range c.opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}
	if len(c.opts.AllowList) > 0 {
		allowed := false
		for _, a := range c.opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return c.matcher.Match(adv.LocalName())
}

func (c *collector) results() []Peripheral {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Peripheral, 0, c.seen.Len())
	for pair := c.seen.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, *pair.Value)
	}
	return out
}
