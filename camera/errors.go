package camera

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoDeviceFound is returned when no matching device appears within the
// discovery retry budget. Configuration-time errors like this one are
// unrecoverable for the calling process; there is no fallback device.
var ErrNoDeviceFound = errors.New("no device found")

// ErrTimeout is returned when a bounded frame wait expires before the
// vendor SDK produces a frame.
var ErrTimeout = errors.New("timed out waiting for frame")

// StreamConfigError indicates the requested stream parameters are not
// supported by the connected hardware. It is unrecoverable; the exact set
// of supported resolution/fps combinations differs by device model.
type StreamConfigError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *StreamConfigError) Error() string {
	return fmt.Sprintf("%s: cannot configure stream: %s: %v", e.Backend, e.Detail, e.Err)
}

func (e *StreamConfigError) Unwrap() error { return e.Err }

// OptionTypeMismatchError indicates a device option get/set received a
// value of an incompatible kind. The operation is skipped; the device is
// left unchanged.
type OptionTypeMismatchError struct {
	Option string
	Err    error
}

func (e *OptionTypeMismatchError) Error() string {
	return fmt.Sprintf("option %s has not been set: %v", e.Option, e.Err)
}

func (e *OptionTypeMismatchError) Unwrap() error { return e.Err }

// TeardownError indicates a release of an already-released or unreachable
// device. It is reported so callers can log it, but requires no action.
type TeardownError struct {
	Backend string
	Serial  string
	Err     error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("%s %s: teardown: %v", e.Backend, e.Serial, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
