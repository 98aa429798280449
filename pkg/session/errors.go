package session

import (
	"errors"
	"fmt"
	"strings"
)

// Session errors. Write operations return them wrapped; Update only logs them.
var (
	ErrConnectionTimeout        = errors.New("connection timeout")
	ErrCharacteristicResolution = errors.New("characteristic resolution failed")
	ErrResponseTimeout          = errors.New("response timeout")
	ErrTransport                = errors.New("transport error")
	ErrNotConnected             = errors.New("not connected")
)

// ResolutionError reports which side of the characteristic pair could not be found
type ResolutionError struct {
	Missing []string // "write", "notify"
	Exposed []string // normalized UUIDs the peripheral exposed
	Err     error    // lookup failure from the connection, if any
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: no %s characteristic among [%s]",
		ErrCharacteristicResolution, strings.Join(e.Missing, "/"), strings.Join(e.Exposed, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying lookup error
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCharacteristicResolution}
	}
	return []error{ErrCharacteristicResolution, e.Err}
}
