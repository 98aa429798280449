package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/devicefactory"
	"github.com/sysofwan/ha-triones/pkg/discovery"
	"github.com/sysofwan/ha-triones/pkg/session"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel    string         `yaml:"log_level" default:"info"`
	Backend     string         `yaml:"backend" default:"go-ble"`  // go-ble or tinygo
	Variant     string         `yaml:"variant" default:"catalog"` // catalog or fixed
	ScanTimeout time.Duration  `yaml:"scan_timeout" default:"10s"`
	Session     SessionConfig  `yaml:"session"`
	Devices     []DeviceConfig `yaml:"devices,omitempty"`
}

// SessionConfig overrides the variant timings. Settle delays are optional so
// that an explicit zero can be told apart from "use the variant default".
type SessionConfig struct {
	ConnectTimeout  time.Duration    `yaml:"connect_timeout" default:"20s"`
	ResponseTimeout time.Duration    `yaml:"response_timeout" default:"5s"`
	ConnectSettle   OptionalDuration `yaml:"connect_settle,omitempty"`
	NotifySettle    OptionalDuration `yaml:"notify_settle,omitempty"`
}

// OptionalDuration is a duration that remembers whether it was configured.
// Its fields are unexported, so go-defaults leaves it untouched.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

// Duration returns an OptionalDuration set to d
func Duration(d time.Duration) OptionalDuration {
	return OptionalDuration{value: d, set: true}
}

// Get returns the duration and whether it was set
func (o OptionalDuration) Get() (time.Duration, bool) {
	return o.value, o.set
}

// IsZero reports an unset value, for yaml omitempty
func (o OptionalDuration) IsZero() bool { return !o.set }

func (o *OptionalDuration) UnmarshalYAML(node *yaml.Node) error {
	var d time.Duration
	if err := node.Decode(&d); err != nil {
		return err
	}
	*o = Duration(d)
	return nil
}

func (o OptionalDuration) MarshalYAML() (any, error) {
	if !o.set {
		return nil, nil
	}
	return o.value.String(), nil
}

// DeviceConfig is a known light
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "triones")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML config file. Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	defaults.SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path. An empty path means DefaultConfigPath, which may be absent.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	backendOK := false
	for _, b := range devicefactory.Backends() {
		if c.Backend == b {
			backendOK = true
		}
	}
	if !backendOK {
		return fmt.Errorf("backend must be one of %s, got %q", strings.Join(devicefactory.Backends(), ", "), c.Backend)
	}

	if _, err := session.OptionsFor(session.Variant(c.Variant)); err != nil {
		return fmt.Errorf("variant: %w", err)
	}

	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be > 0")
	}
	if c.Session.ConnectTimeout <= 0 {
		return fmt.Errorf("session.connect_timeout must be > 0")
	}
	if c.Session.ResponseTimeout <= 0 {
		return fmt.Errorf("session.response_timeout must be > 0")
	}
	for name, o := range map[string]OptionalDuration{
		"session.connect_settle": c.Session.ConnectSettle,
		"session.notify_settle":  c.Session.NotifySettle,
	} {
		if d, ok := o.Get(); ok && d < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}

	names := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		if strings.TrimSpace(d.Address) == "" {
			return fmt.Errorf("devices[%d].address must not be empty", i)
		}
		if d.Name == "" {
			continue
		}
		key := strings.ToLower(d.Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("devices[%d].name %q is used more than once", i, d.Name)
		}
		names[key] = struct{}{}
	}
	return nil
}

// Level returns the configured log level, info when it does not parse.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SessionOptions returns the variant defaults with the configured overrides applied.
func (c *Config) SessionOptions() (session.Options, error) {
	opts, err := session.OptionsFor(session.Variant(c.Variant))
	if err != nil {
		return session.Options{}, err
	}
	if c.Session.ConnectTimeout > 0 {
		opts.ConnectTimeout = c.Session.ConnectTimeout
	}
	if c.Session.ResponseTimeout > 0 {
		opts.ResponseTimeout = c.Session.ResponseTimeout
	}
	if d, ok := c.Session.ConnectSettle.Get(); ok {
		opts.ConnectSettle = d
	}
	if d, ok := c.Session.NotifySettle.Get(); ok {
		opts.NotifySettle = d
	}
	return opts, nil
}

// Matcher returns the discovery name matcher of the configured variant.
func (c *Config) Matcher() discovery.Matcher {
	if session.Variant(c.Variant) == session.VariantFixed {
		return discovery.FixedMatcher()
	}
	return discovery.CatalogMatcher()
}

// ResolveDevice maps a configured name (case-insensitive) to its entry.
// Anything else is treated as an address.
func (c *Config) ResolveDevice(nameOrAddress string) DeviceConfig {
	for _, d := range c.Devices {
		if d.Name != "" && strings.EqualFold(d.Name, nameOrAddress) {
			return d
		}
	}
	for _, d := range c.Devices {
		if strings.EqualFold(d.Address, nameOrAddress) {
			return d
		}
	}
	return DeviceConfig{Address: nameOrAddress}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
