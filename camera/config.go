package camera

import (
	"time"

	"github.com/pkg/errors"
)

// Resolution is a stream resolution preset.
type Resolution int

// Resolution presets shared by both backends. Not every device supports
// every preset; unsupported combinations surface a *StreamConfigError at
// construction time.
const (
	ResolutionVGA Resolution = iota
	ResolutionSD
	ResolutionHD
	ResolutionFullHD
)

// Dimensions returns the pixel dimensions of the preset.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case ResolutionVGA:
		return 640, 480
	case ResolutionSD:
		return 960, 540
	case ResolutionHD:
		return 1280, 720
	case ResolutionFullHD:
		return 1920, 1080
	default:
		return 0, 0
	}
}

func (r Resolution) String() string {
	switch r {
	case ResolutionVGA:
		return "VGA"
	case ResolutionSD:
		return "SD"
	case ResolutionHD:
		return "HD"
	case ResolutionFullHD:
		return "FullHD"
	default:
		return "unknown"
	}
}

// ParseResolution maps a preset name to its Resolution.
func ParseResolution(s string) (Resolution, error) {
	for _, r := range []Resolution{ResolutionVGA, ResolutionSD, ResolutionHD, ResolutionFullHD} {
		if s == r.String() {
			return r, nil
		}
	}
	return 0, errors.Errorf("unknown resolution %q", s)
}

// DefaultFrameTimeout bounds how long a retrieval call waits for the
// vendor SDK to produce a frame before reporting ErrTimeout.
const DefaultFrameTimeout = 5 * time.Second

// Config holds the construction parameters shared by all backends. It is
// immutable after the adapter is constructed.
type Config struct {
	RGBResolution   Resolution
	DepthResolution Resolution
	FPS             int
	// SerialNumber binds the adapter to a specific physical device. Empty
	// binds to the first device discovered.
	SerialNumber string
	// DepthInMeters stores depth samples divided by 1000 (still as
	// unsigned 16-bit integers, so sub-meter precision is discarded).
	// Leave false for device-native millimeters.
	DepthInMeters bool
	// FrameTimeout bounds every blocking frame retrieval. Zero means
	// DefaultFrameTimeout.
	FrameTimeout time.Duration
	// Retry governs device discovery for backends that wait for hardware
	// to appear. Zero values mean the backend defaults.
	Retry RetryPolicy
}

// Validate ensures all parts of the config are valid.
func (c Config) Validate() error {
	if c.FPS <= 0 {
		return errors.Errorf("got illegal non-positive fps %d", c.FPS)
	}
	if w, _ := c.RGBResolution.Dimensions(); w == 0 {
		return errors.Errorf("unknown rgb resolution %v", int(c.RGBResolution))
	}
	if w, _ := c.DepthResolution.Dimensions(); w == 0 {
		return errors.Errorf("unknown depth resolution %v", int(c.DepthResolution))
	}
	if c.FrameTimeout < 0 {
		return errors.Errorf("got illegal negative frame timeout %v", c.FrameTimeout)
	}
	return nil
}

// WithDefaults returns a copy of the config with zero values replaced by
// defaults. Backends call this once at construction.
func (c Config) WithDefaults() Config {
	if c.FPS == 0 {
		c.FPS = 30
	}
	if c.FrameTimeout == 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	c.Retry = c.Retry.withDefaults()
	return c
}
