package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// IntensityImage is a single-channel 8-bit frame. For time-of-flight
// backends this is the amplitude channel, not a color image.
type IntensityImage struct {
	width  int
	height int

	data []uint8
}

// NewIntensityImage returns a zeroed intensity image.
func NewIntensityImage(width, height int) *IntensityImage {
	return &IntensityImage{
		width:  width,
		height: height,
		data:   make([]uint8, width*height),
	}
}

// NewIntensityImageFromData wraps a row-major sample slice. The slice is
// retained, not copied.
func NewIntensityImageFromData(width, height int, data []uint8) (*IntensityImage, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("bad intensity data length %d for %dx%d image", len(data), width, height)
	}
	return &IntensityImage{width: width, height: height, data: data}, nil
}

func (ii *IntensityImage) kxy(x, y int) int {
	return y*ii.width + x
}

// Width returns the width of the image.
func (ii *IntensityImage) Width() int {
	return ii.width
}

// Height returns the height of the image.
func (ii *IntensityImage) Height() int {
	return ii.height
}

// Bounds returns the rectangle enclosing the image.
func (ii *IntensityImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, ii.width, ii.height)
}

// ColorModel for an IntensityImage is 8-bit grayscale.
func (ii *IntensityImage) ColorModel() color.Model { return color.GrayModel }

// At returns the sample at (x, y) as an 8-bit gray color.
func (ii *IntensityImage) At(x, y int) color.Color {
	return color.Gray{Y: ii.GetXY(x, y)}
}

// GetXY returns the sample at (x, y).
func (ii *IntensityImage) GetXY(x, y int) uint8 {
	return ii.data[ii.kxy(x, y)]
}

// SetXY writes the sample at (x, y).
func (ii *IntensityImage) SetXY(x, y int, v uint8) {
	ii.data[ii.kxy(x, y)] = v
}

// NormalizeIntensity rescales raw 16-bit amplitude samples into the 0-255
// range, mapping the frame minimum to 0 and the frame maximum to 255. The
// rescale is per call, not calibrated against a fixed global range, so
// absolute intensity is not comparable frame-to-frame. A flat frame
// normalizes to all zeros.
func NormalizeIntensity(width, height int, raw []uint16) (*IntensityImage, error) {
	if len(raw) != width*height {
		return nil, errors.Errorf("bad raw intensity length %d for %dx%d image", len(raw), width, height)
	}
	min := uint16(0xffff)
	max := uint16(0)
	for _, v := range raw {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := NewIntensityImage(width, height)
	span := int(max) - int(min)
	if span == 0 {
		return out, nil
	}
	for i, v := range raw {
		out.data[i] = uint8((int(v-min)*255 + span/2) / span)
	}
	return out, nil
}
