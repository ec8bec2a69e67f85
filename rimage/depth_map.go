// Package rimage defines the common frame representation produced by every
// camera backend: single-channel 8-bit intensity images and single-channel
// 16-bit depth maps. Frames are transient, produced per retrieval call and
// never retained by an adapter.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Depth is a single depth sample, in device-native or millimeter-derived
// units depending on the adapter configuration.
type Depth uint16

// MaxDepth is the largest representable depth sample.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap is a 2D depth frame. It implements image.Image as a 16-bit
// grayscale image.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps a row-major sample slice in a DepthMap. The
// slice is retained, not copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("bad depth data length %d for %dx%d map", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

func (dm *DepthMap) kxy(x, y int) int {
	return y*dm.width + x
}

// HasData reports whether the map holds any samples at all.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle enclosing the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// ColorModel for a DepthMap is 16-bit grayscale.
func (dm *DepthMap) ColorModel() color.Model { return color.Gray16Model }

// At returns the depth at (x, y) as a 16-bit gray color.
func (dm *DepthMap) At(x, y int) color.Color {
	return color.Gray16{Y: uint16(dm.GetDepth(x, y))}
}

// In reports whether the coordinate is inside the map.
func (dm *DepthMap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at a point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set writes the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// MinMax returns the smallest and largest non-zero samples in the map.
// Zero samples mean "no reading" and are skipped.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min := MaxDepth
	max := Depth(0)

	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}
