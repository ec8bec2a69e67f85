package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestIntensityImageBasics(t *testing.T) {
	ii := NewIntensityImage(3, 2)
	test.That(t, ii.Width(), test.ShouldEqual, 3)
	test.That(t, ii.Height(), test.ShouldEqual, 2)
	test.That(t, ii.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))

	ii.SetXY(2, 1, 99)
	test.That(t, ii.GetXY(2, 1), test.ShouldEqual, uint8(99))
	test.That(t, ii.At(2, 1), test.ShouldResemble, color.Gray{Y: 99})
	test.That(t, ii.ColorModel(), test.ShouldEqual, color.GrayModel)

	_, err := NewIntensityImageFromData(3, 2, make([]uint8, 5))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNormalizeIntensity(t *testing.T) {
	// the frame minimum maps to 0, the frame maximum to 255
	raw := []uint16{1000, 3000, 2000, 1000}
	ii, err := NormalizeIntensity(2, 2, raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ii.GetXY(0, 0), test.ShouldEqual, uint8(0))
	test.That(t, ii.GetXY(1, 0), test.ShouldEqual, uint8(255))
	test.That(t, ii.GetXY(0, 1), test.ShouldEqual, uint8(128))
	test.That(t, ii.GetXY(1, 1), test.ShouldEqual, uint8(0))
}

func TestNormalizeIntensityPerFrame(t *testing.T) {
	// the rescale is per call: the same raw value lands on different
	// outputs depending on the rest of the frame
	first, err := NormalizeIntensity(2, 1, []uint16{500, 1000})
	test.That(t, err, test.ShouldBeNil)
	second, err := NormalizeIntensity(2, 1, []uint16{500, 4000})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.GetXY(0, 0), test.ShouldEqual, uint8(0))
	test.That(t, second.GetXY(0, 0), test.ShouldEqual, uint8(0))
	test.That(t, first.GetXY(1, 0), test.ShouldEqual, uint8(255))
	test.That(t, second.GetXY(1, 0), test.ShouldEqual, uint8(255))
}

func TestNormalizeIntensityFlatFrame(t *testing.T) {
	ii, err := NormalizeIntensity(2, 2, []uint16{700, 700, 700, 700})
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			test.That(t, ii.GetXY(x, y), test.ShouldEqual, uint8(0))
		}
	}
}

func TestNormalizeIntensityBadLength(t *testing.T) {
	_, err := NormalizeIntensity(2, 2, []uint16{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
}
