// Package fake is an in-memory implementation of the gensdk capability
// interfaces. Tests use it to drive both camera backends with synthetic,
// serial-tagged buffers; cmd/depthsnap uses it as a demo frame source when
// no vendor SDK is linked in.
package fake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iaslab-padova/depthcam/gensdk"
)

// System is a fake gensdk.System backed by a fixed device list.
type System struct {
	mu sync.Mutex

	devices          []gensdk.Device
	emptyDiscoveries int
	discoverCalls    int
	releases         int
}

// NewSystem returns a system that discovers the given devices. Tests may
// pass wrapped *Device values to override behavior.
func NewSystem(devices ...gensdk.Device) *System {
	return &System{devices: devices}
}

// FailDiscoveries makes the next n Discover calls return no devices, to
// exercise discovery retry budgets.
func (s *System) FailDiscoveries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyDiscoveries = n
}

// DiscoverCalls returns how many times Discover has been called.
func (s *System) DiscoverCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discoverCalls
}

// Releases returns how many times Release has been called.
func (s *System) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// Discover implements gensdk.System.
func (s *System) Discover(ctx context.Context) ([]gensdk.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoverCalls++
	if s.emptyDiscoveries > 0 {
		s.emptyDiscoveries--
		return nil, nil
	}
	out := make([]gensdk.Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// Release implements gensdk.System. A second release fails the way a
// vendor SDK's global registry destroy does.
func (s *System) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	if s.releases > 1 {
		return errors.New("device registry already destroyed")
	}
	for _, d := range s.devices {
		if fd, ok := d.(*Device); ok {
			fd.mu.Lock()
			fd.started = false
			fd.mu.Unlock()
		}
	}
	return nil
}

// Device is a fake gensdk.Device.
type Device struct {
	mu sync.Mutex

	serial   string
	props    map[string]gensdk.Value
	started  bool
	startErr error
	queue    chan *gensdk.Buffer
	requeued int
	source   func(seq int) *gensdk.Buffer
	seq      int

	// Intr is returned in every negotiated stream profile.
	Intr gensdk.Intrinsics
	// AlignFunc, when set, implements gensdk.Aligner. When nil, Align
	// reports gensdk.ErrNotSupported.
	AlignFunc func(buf *gensdk.Buffer) (*gensdk.Buffer, error)
}

// NewDevice returns a fake device. An empty serial gets a generated one.
// props seeds the device nodemap and may be nil.
func NewDevice(serial string, props map[string]gensdk.Value) *Device {
	if serial == "" {
		serial = uuid.NewString()
	}
	copied := map[string]gensdk.Value{}
	for k, v := range props {
		copied[k] = v
	}
	return &Device{
		serial: serial,
		props:  copied,
		queue:  make(chan *gensdk.Buffer, 32),
	}
}

// SerialNumber implements gensdk.Device.
func (d *Device) SerialNumber() string { return d.serial }

// FailStartWith makes the next StartStream return err, to exercise
// unsupported stream configurations.
func (d *Device) FailStartWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startErr = err
}

// StartStream implements gensdk.Device, negotiating exactly what was
// requested.
func (d *Device) StartStream(ctx context.Context, conf gensdk.StreamConfig) ([]gensdk.StreamProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, d.startErr
	}
	if d.started {
		return nil, errors.New("stream already started")
	}
	d.started = true
	profiles := make([]gensdk.StreamProfile, 0, len(conf.Streams))
	for _, req := range conf.Streams {
		profiles = append(profiles, gensdk.StreamProfile{
			Kind:       req.Kind,
			Width:      req.Width,
			Height:     req.Height,
			FPS:        req.FPS,
			Intrinsics: d.Intr,
		})
	}
	return profiles, nil
}

// StopStream implements gensdk.Device.
func (d *Device) StopStream() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return errors.New("stream not started")
	}
	d.started = false
	return nil
}

// EnqueueBuffer queues a buffer for a future GetBuffer call. The buffer is
// tagged with the device serial.
func (d *Device) EnqueueBuffer(buf *gensdk.Buffer) {
	buf.Serial = d.serial
	d.queue <- buf
}

// SetBufferSource makes GetBuffer synthesize a buffer per call instead of
// consuming the queue. seq counts acquisitions from zero.
func (d *Device) SetBufferSource(source func(seq int) *gensdk.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
}

// GetBuffer implements gensdk.Device.
func (d *Device) GetBuffer(ctx context.Context) (*gensdk.Buffer, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil, errors.New("stream not started")
	}
	source := d.source
	seq := d.seq
	d.seq++
	d.mu.Unlock()

	if source != nil {
		buf := source(seq)
		buf.Serial = d.serial
		return buf, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case buf := <-d.queue:
		return buf, nil
	}
}

// Requeue implements gensdk.Device.
func (d *Device) Requeue(buf *gensdk.Buffer) error {
	if buf == nil {
		return errors.New("cannot requeue nil buffer")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requeued++
	return nil
}

// Requeued returns how many buffers have been returned to the pool.
func (d *Device) Requeued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requeued
}

// Property implements gensdk.Device.
func (d *Device) Property(name string) (gensdk.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.props[name]
	if !ok {
		return gensdk.Value{}, errors.Errorf("no such property %q", name)
	}
	return v, nil
}

// SetProperty implements gensdk.Device. Writing a value whose kind differs
// from the existing node's kind fails the way a GenICam nodemap does.
func (d *Device) SetProperty(name string, v gensdk.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.props[name]; ok && old.Kind() != v.Kind() {
		return errors.Wrapf(gensdk.ErrWrongKind, "property %q wants %s, got %s", name, old.Kind(), v.Kind())
	}
	d.props[name] = v
	return nil
}

// Align implements gensdk.Aligner when AlignFunc is set.
func (d *Device) Align(buf *gensdk.Buffer) (*gensdk.Buffer, error) {
	d.mu.Lock()
	alignFunc := d.AlignFunc
	d.mu.Unlock()
	if alignFunc == nil {
		return nil, gensdk.ErrNotSupported
	}
	return alignFunc(buf)
}
