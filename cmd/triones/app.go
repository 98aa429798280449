package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/internal/devicefactory"
	"github.com/sysofwan/ha-triones/pkg/config"
	"github.com/sysofwan/ha-triones/pkg/light"
	"github.com/sysofwan/ha-triones/pkg/session"
)

// app carries what every command needs: config, logger and the session registry
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *session.Registry
}

// newApp loads the config, applies flag overrides and builds the registry.
// Without logging flags one-shot commands stay silent; long-running ones log
// at the configured level.
func newApp(cmd *cobra.Command, longRunning bool) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	if variant, _ := cmd.Flags().GetString("variant"); variant != "" {
		cfg.Variant = variant
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	quietLevel := logrus.PanicLevel
	if longRunning {
		quietLevel = cfg.Level()
	}
	logger, err := configureLogger(cmd, quietLevel)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	newDevice := func(address string) (device.Device, error) {
		return devicefactory.NewDevice(backend, address, logger)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"variant": cfg.Variant,
	}).Debug("Configuration loaded")

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: session.NewRegistry(newDevice, opts, logger),
	}, nil
}

// session returns the session for a configured name or an address
func (a *app) session(nameOrAddress string) (*session.Session, config.DeviceConfig, error) {
	dc := a.cfg.ResolveDevice(nameOrAddress)
	if dc.Address == "" {
		return nil, dc, fmt.Errorf("no address for device %q", nameOrAddress)
	}
	sess, err := a.registry.GetOrCreate(dc.Address)
	if err != nil {
		return nil, dc, err
	}
	return sess, dc, nil
}

// light wraps the session of nameOrAddress in the presentation layer
func (a *app) light(nameOrAddress string) (*light.Light, error) {
	sess, dc, err := a.session(nameOrAddress)
	if err != nil {
		return nil, err
	}
	return light.New(sess, dc.Name), nil
}

// close disconnects every session, logging rather than failing on errors
func (a *app) close() {
	if err := a.registry.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to disconnect cleanly")
	}
}
