// Package gensdk is the capability boundary over the vendor device-access
// SDKs. It models the operations both camera backends need from their
// native layer: device discovery, stream lifecycle, buffer acquisition and
// requeue, and property (nodemap/option) access. Production code passes
// the cgo-backed vendor implementation; tests pass the in-memory fake.
//
// The wire transport behind these calls (USB for RealSense, GigE Vision
// for Helios) belongs to the vendor SDK and is out of scope here.
package gensdk

import (
	"context"

	"github.com/pkg/errors"
)

// ErrWrongKind is returned by property access when the stored value kind
// does not match the requested one.
var ErrWrongKind = errors.New("property value has a different kind")

// ErrNotSupported is returned by optional capabilities (such as frame
// alignment) that a given SDK does not provide.
var ErrNotSupported = errors.New("not supported by this device")

// StreamKind identifies what a stream or buffer plane carries.
type StreamKind int

const (
	// StreamColor is a color stream (BGR8 on RealSense hardware).
	StreamColor StreamKind = iota
	// StreamDepth is a plain 16-bit depth stream.
	StreamDepth
	// StreamCoord3D is an interleaved multi-channel coordinate stream
	// (ABCY16 on Helios hardware).
	StreamCoord3D
)

func (k StreamKind) String() string {
	switch k {
	case StreamColor:
		return "color"
	case StreamDepth:
		return "depth"
	case StreamCoord3D:
		return "coord3d"
	default:
		return "unknown"
	}
}

// PixelFormat is the vendor buffer layout of a stream.
type PixelFormat int

const (
	// FormatBGR8 is 3 bytes per pixel, blue first.
	FormatBGR8 PixelFormat = iota
	// FormatZ16 is one little-endian uint16 depth sample per pixel.
	FormatZ16
	// FormatCoord3DABCY16 is four interleaved little-endian uint16
	// channels per pixel: x, y, z and intensity.
	FormatCoord3DABCY16
)

// BytesPerPixel returns the packed pixel stride of the format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatBGR8:
		return 3
	case FormatZ16:
		return 2
	case FormatCoord3DABCY16:
		return 8
	default:
		return 0
	}
}

// StreamRequest asks the device to configure one stream.
type StreamRequest struct {
	Kind   StreamKind
	Format PixelFormat
	Width  int
	Height int
	FPS    int
}

// StreamConfig is the full set of streams requested from a device.
type StreamConfig struct {
	Streams []StreamRequest
}

// Intrinsics is the raw calibration of a single stream as reported by the
// device, before being shaped into the common camera model.
type Intrinsics struct {
	Fx  float64
	Fy  float64
	Ppx float64
	Ppy float64
}

// StreamProfile describes one negotiated stream after a successful start.
type StreamProfile struct {
	Kind       StreamKind
	Width      int
	Height     int
	FPS        int
	Intrinsics Intrinsics
}

// System is a handle on an SDK's device registry.
type System interface {
	// Discover returns handles for the devices currently visible to the
	// SDK. An empty slice with a nil error means no device is connected
	// yet; callers retry on their own budget.
	Discover(ctx context.Context) ([]Device, error)

	// Release frees SDK-level resources. SDKs with a process-global
	// device registry release every device here; releasing twice is an
	// error.
	Release() error
}

// Device is an exclusive handle on one physical camera. It is not safe
// for concurrent use.
type Device interface {
	// SerialNumber returns the serial the transport layer discovered the
	// device under.
	SerialNumber() string

	// StartStream negotiates and starts the requested streams, returning
	// one profile per stream actually started. Unsupported
	// resolution/format/fps combinations fail here.
	StartStream(ctx context.Context, conf StreamConfig) ([]StreamProfile, error)

	// StopStream halts streaming. The device stays discoverable.
	StopStream() error

	// GetBuffer blocks until the next buffer is available or ctx is
	// done. The returned buffer belongs to the device pool; callers copy
	// what they need and Requeue it promptly.
	GetBuffer(ctx context.Context) (*Buffer, error)

	// Requeue returns a buffer obtained from GetBuffer to the pool.
	Requeue(buf *Buffer) error

	// Property reads a nodemap/option value by name.
	Property(name string) (Value, error)

	// SetProperty writes a nodemap/option value by name. A kind mismatch
	// between the node and the value wraps ErrWrongKind.
	SetProperty(name string, v Value) error
}

// Aligner is implemented by devices whose SDK can reproject a depth plane
// onto the color stream's pixel grid.
type Aligner interface {
	// Align returns a new buffer whose depth plane is registered to the
	// color plane. The input buffer is not modified.
	Align(buf *Buffer) (*Buffer, error)
}
