package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/pkg/session"
)

// Command-level errors
var (
	// ErrUnavailable indicates a light answered no status query. Update never
	// fails, so commands that need a status report this instead.
	ErrUnavailable = errors.New("light unavailable")
)

// FormatUserError renders err as a single line for the terminal. Known failure
// classes get a hint; anything else is printed as is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var resErr *session.ResolutionError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case device.IsConnectionState(err, device.NotInitialized):
		return fmt.Sprintf("%v (is the Bluetooth adapter present and accessible?)", err)
	case errors.As(err, &resErr):
		return fmt.Sprintf("not a supported light: no %s characteristic (device exposes %s)",
			strings.Join(resErr.Missing, "/"), exposedList(resErr.Exposed))
	case errors.Is(err, session.ErrConnectionTimeout):
		return fmt.Sprintf("%v (is the light powered and in range?)", err)
	case errors.Is(err, session.ErrResponseTimeout):
		return fmt.Sprintf("%v (the light did not answer the status query)", err)
	case errors.Is(err, device.ErrUnsupported):
		return err.Error()
	case errors.Is(err, ErrUnavailable):
		return fmt.Sprintf("%v (run with --verbose for details)", err)
	default:
		return err.Error()
	}
}

func exposedList(uuids []string) string {
	if len(uuids) == 0 {
		return "no characteristics"
	}
	return strings.Join(uuids, ", ")
}
