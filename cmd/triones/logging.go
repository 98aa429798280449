package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose. Without either, one-shot commands
// are silent and long-running ones use fallback.
func configureLogger(cmd *cobra.Command, fallback logrus.Level) (*logrus.Logger, error) {
	logLevel := fallback

	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		if !slices.Contains(logLevels, name) {
			return nil, fmt.Errorf("invalid log level: %s (must be one of %s)", name, strings.Join(logLevels, ", "))
		}
		lvl, err := logrus.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		logLevel = lvl
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
