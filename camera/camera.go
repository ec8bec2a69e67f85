// Package camera defines the backend-neutral contract for depth cameras.
//
// A Camera produces three kinds of output: an RGB (or intensity) image, a
// 16-bit depth map, and a pair of both captured together. Backends wrap a
// vendor SDK behind the gensdk capability interfaces and are constructed
// directly by the caller; no component orchestrates backend selection.
package camera

import (
	"context"
	"image"

	"github.com/iaslab-padova/depthcam/rimage"
	"github.com/iaslab-padova/depthcam/rimage/transform"
)

// Properties is a lookup for a camera's features and settings.
type Properties struct {
	// IntrinsicParams are the calibration parameters of the stream whose
	// pixel grid frames are returned in.
	IntrinsicParams *transform.PinholeCameraIntrinsics
	// SupportsAlignment reports whether AlignedFrames performs a real
	// depth-to-color reprojection, or just falls back to Frames.
	SupportsAlignment bool
	FrameRate         float32
}

// A Camera is a device that can capture RGB and depth frames.
//
// All retrieval methods block until a new frame is available, the context is
// done, or the configured frame timeout expires. Methods on a single Camera
// must not be called concurrently; the underlying device handle is not safe
// for concurrent use.
type Camera interface {
	// RGB returns the next color frame. For backends without a color
	// sensor this is a single-channel intensity image.
	RGB(ctx context.Context) (image.Image, error)

	// Depth returns the next depth frame in the configured units.
	Depth(ctx context.Context) (*rimage.DepthMap, error)

	// Frames returns an RGB and a depth frame captured together.
	Frames(ctx context.Context) (image.Image, *rimage.DepthMap, error)

	// AlignedFrames is Frames with the depth frame reprojected into the
	// color sensor's pixel grid, where the backend supports alignment.
	// Backends without alignment return the same output as Frames.
	AlignedFrames(ctx context.Context) (image.Image, *rimage.DepthMap, error)

	// Intrinsics returns the calibration read from the device at
	// construction time. It never changes for the lifetime of the Camera.
	Intrinsics() transform.PinholeCameraIntrinsics

	// SerialNumber returns the serial of the bound physical device.
	SerialNumber() string

	Properties() Properties

	// Close stops streaming and releases the native device handle so the
	// physical device can be reused. Closing twice returns a
	// *TeardownError; it never panics.
	Close(ctx context.Context) error
}
