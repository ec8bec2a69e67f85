package rimage

import (
	"image"
	"image/color"
	"math"
)

// ToPrettyPicture renders the depth map as a false-color image for
// inspection. Samples are clamped to [hardMin, hardMax] when those are
// non-zero; zero samples stay black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) image.Image {
	min, max := dm.MinMax()

	if hardMin > 0 && min < hardMin {
		min = hardMin
	}
	if hardMax > 0 && max > hardMax {
		max = hardMax
	}

	img := image.NewNRGBA(image.Rect(0, 0, dm.Width(), dm.Height()))

	span := float64(max) - float64(min)

	for x := 0; x < dm.Width(); x++ {
		for y := 0; y < dm.Height(); y++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}

			if z < min {
				z = min
			}
			if z > max {
				z = max
			}

			ratio := 0.0
			if span > 0 {
				ratio = (float64(z) - float64(min)) / span
			}

			hue := 30 + (200.0 * ratio)
			img.Set(x, y, colorFromHSV(hue, 1.0, 1.0))
		}
	}

	return img
}

// colorFromHSV converts hue in degrees with full saturation/value into an
// NRGBA color.
func colorFromHSV(h, s, v float64) color.NRGBA {
	h = math.Mod(h, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return color.NRGBA{
		R: uint8((r + m) * 255),
		G: uint8((g + m) * 255),
		B: uint8((b + m) * 255),
		A: 255,
	}
}
