package gensdk

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Plane is one stream's worth of pixels inside a buffer. Data is packed
// row-major in the plane's pixel format, multi-byte samples little-endian.
type Plane struct {
	Kind   StreamKind
	Format PixelFormat
	Width  int
	Height int
	Data   []byte
}

// Samples decodes the plane's data as little-endian uint16 samples. For
// interleaved formats the channels stay interleaved.
func (p *Plane) Samples() ([]uint16, error) {
	if len(p.Data)%2 != 0 {
		return nil, errors.Errorf("%s plane has odd data length %d", p.Kind, len(p.Data))
	}
	out := make([]uint16, len(p.Data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(p.Data[2*i:])
	}
	return out, nil
}

// clone deep-copies the plane.
func (p *Plane) clone() Plane {
	out := *p
	out.Data = make([]byte, len(p.Data))
	copy(out.Data, p.Data)
	return out
}

// Buffer is one acquisition from a device: one or more planes captured
// together. The vendor SDK may deliver a partial buffer (a RealSense
// frameset can carry only one of its two streams); callers poll until the
// planes they need are present.
type Buffer struct {
	// Serial is the serial number of the producing device.
	Serial string
	Planes []Plane
}

// Plane returns the plane of the given kind, or nil when the buffer does
// not carry one.
func (b *Buffer) Plane(kind StreamKind) *Plane {
	for i := range b.Planes {
		if b.Planes[i].Kind == kind {
			return &b.Planes[i]
		}
	}
	return nil
}

// Clone deep-copies the buffer so the original can be requeued to the
// device pool immediately.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Serial: b.Serial, Planes: make([]Plane, len(b.Planes))}
	for i := range b.Planes {
		out.Planes[i] = b.Planes[i].clone()
	}
	return out
}
