package fake

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/iaslab-padova/depthcam/gensdk"
)

func TestSystemDiscovery(t *testing.T) {
	dev := NewDevice("SN-1", nil)
	sys := NewSystem(dev)
	sys.FailDiscoveries(2)

	ctx := context.Background()
	devices, err := sys.Discover(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, devices, test.ShouldHaveLength, 0)

	devices, err = sys.Discover(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, devices, test.ShouldHaveLength, 0)

	devices, err = sys.Discover(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, devices, test.ShouldHaveLength, 1)
	test.That(t, devices[0].SerialNumber(), test.ShouldEqual, "SN-1")
	test.That(t, sys.DiscoverCalls(), test.ShouldEqual, 3)
}

func TestSystemDoubleRelease(t *testing.T) {
	sys := NewSystem()
	test.That(t, sys.Release(), test.ShouldBeNil)
	test.That(t, sys.Release(), test.ShouldNotBeNil)
	test.That(t, sys.Releases(), test.ShouldEqual, 2)
}

func TestDeviceGeneratedSerial(t *testing.T) {
	test.That(t, NewDevice("", nil).SerialNumber(), test.ShouldNotBeEmpty)
}

func TestDeviceStreamLifecycle(t *testing.T) {
	ctx := context.Background()
	dev := NewDevice("SN-1", nil)

	_, err := dev.GetBuffer(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	profiles, err := dev.StartStream(ctx, gensdk.StreamConfig{Streams: []gensdk.StreamRequest{
		{Kind: gensdk.StreamDepth, Format: gensdk.FormatZ16, Width: 4, Height: 4, FPS: 30},
	}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, profiles, test.ShouldHaveLength, 1)
	test.That(t, profiles[0].Width, test.ShouldEqual, 4)

	dev.EnqueueBuffer(&gensdk.Buffer{})
	buf, err := dev.GetBuffer(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Serial, test.ShouldEqual, "SN-1")

	test.That(t, dev.Requeue(buf), test.ShouldBeNil)
	test.That(t, dev.Requeued(), test.ShouldEqual, 1)

	test.That(t, dev.StopStream(), test.ShouldBeNil)
	test.That(t, dev.StopStream(), test.ShouldNotBeNil)
}

func TestDeviceGetBufferHonorsContext(t *testing.T) {
	dev := NewDevice("SN-1", nil)
	_, err := dev.StartStream(context.Background(), gensdk.StreamConfig{})
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = dev.GetBuffer(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestDevicePropertyKinds(t *testing.T) {
	dev := NewDevice("SN-1", map[string]gensdk.Value{
		"Gain": gensdk.Float(5),
	})

	err := dev.SetProperty("Gain", gensdk.Int(3))
	test.That(t, errors.Is(err, gensdk.ErrWrongKind), test.ShouldBeTrue)

	test.That(t, dev.SetProperty("Gain", gensdk.Float(7)), test.ShouldBeNil)
	v, err := dev.Property("Gain")
	test.That(t, err, test.ShouldBeNil)
	f, err := v.AsFloat()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, 7.0)

	_, err = dev.Property("Missing")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDeviceFailStart(t *testing.T) {
	dev := NewDevice("SN-1", nil)
	dev.FailStartWith(errors.New("unsupported resolution"))
	_, err := dev.StartStream(context.Background(), gensdk.StreamConfig{})
	test.That(t, err, test.ShouldNotBeNil)
}
