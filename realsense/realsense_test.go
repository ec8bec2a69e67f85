package realsense_test

import (
	"context"
	"encoding/binary"
	"image"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/iaslab-padova/depthcam/camera"
	"github.com/iaslab-padova/depthcam/gensdk"
	"github.com/iaslab-padova/depthcam/gensdk/fake"
	"github.com/iaslab-padova/depthcam/realsense"
	"github.com/iaslab-padova/depthcam/rimage"
)

func testConfig() camera.Config {
	return camera.Config{
		RGBResolution:   camera.ResolutionHD,
		DepthResolution: camera.ResolutionHD,
		FPS:             30,
		FrameTimeout:    time.Second,
	}
}

func colorPlane(w, h int, b, g, r uint8) gensdk.Plane {
	data := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		data[3*i] = b
		data[3*i+1] = g
		data[3*i+2] = r
	}
	return gensdk.Plane{Kind: gensdk.StreamColor, Format: gensdk.FormatBGR8, Width: w, Height: h, Data: data}
}

func depthPlane(w, h int, depth func(x, y int) uint16) gensdk.Plane {
	data := make([]byte, w*h*2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint16(data[2*(y*w+x):], depth(x, y))
		}
	}
	return gensdk.Plane{Kind: gensdk.StreamDepth, Format: gensdk.FormatZ16, Width: w, Height: h, Data: data}
}

func newTestDevice(serial string) *fake.Device {
	dev := fake.NewDevice(serial, nil)
	dev.Intr = gensdk.Intrinsics{Fx: 900, Fy: 901, Ppx: 640.5, Ppy: 360.5}
	return dev
}

func TestNewNoDevice(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := realsense.New(context.Background(), testConfig(), fake.NewSystem(), logger)
	test.That(t, errors.Is(err, camera.ErrNoDeviceFound), test.ShouldBeTrue)
}

func TestNewUnknownSerial(t *testing.T) {
	logger := golog.NewTestLogger(t)
	sys := fake.NewSystem(newTestDevice("SN-A"))
	conf := testConfig()
	conf.SerialNumber = "SN-B"
	_, err := realsense.New(context.Background(), conf, sys, logger)
	test.That(t, errors.Is(err, camera.ErrNoDeviceFound), test.ShouldBeTrue)
}

func TestNewStreamConfigError(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dev := newTestDevice("SN-A")
	dev.FailStartWith(errors.New("1920x1080 bgr8 at 90 fps not supported"))
	conf := testConfig()
	conf.RGBResolution = camera.ResolutionFullHD

	_, err := realsense.New(context.Background(), conf, fake.NewSystem(dev), logger)
	var confErr *camera.StreamConfigError
	test.That(t, errors.As(err, &confErr), test.ShouldBeTrue)
	test.That(t, confErr.Backend, test.ShouldEqual, "Intel RealSense")
}

func TestIntrinsicsFromColorProfile(t *testing.T) {
	logger := golog.NewTestLogger(t)

	cam, err := realsense.New(context.Background(), testConfig(), fake.NewSystem(newTestDevice("SN-A")), logger)
	test.That(t, err, test.ShouldBeNil)
	intr := cam.Intrinsics()
	test.That(t, intr.Width, test.ShouldEqual, 1280)
	test.That(t, intr.Height, test.ShouldEqual, 720)
	test.That(t, intr.Fx, test.ShouldEqual, 900.0)
	test.That(t, intr.Fy, test.ShouldEqual, 901.0)
	test.That(t, intr.Ppx, test.ShouldEqual, 640.5)
	test.That(t, intr.Ppy, test.ShouldEqual, 360.5)
	test.That(t, cam.SerialNumber(), test.ShouldEqual, "SN-A")

	// non-HD presets negotiate the sensor maximum
	conf := testConfig()
	conf.RGBResolution = camera.ResolutionFullHD
	cam2, err := realsense.New(context.Background(), conf, fake.NewSystem(newTestDevice("SN-B")), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam2.Intrinsics().Width, test.ShouldEqual, 1920)
	test.That(t, cam2.Intrinsics().Height, test.ShouldEqual, 1080)
}

func TestDepthUnits(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		meters bool
		raw    uint16
		want   rimage.Depth
	}{
		{"millimeters", false, 1234, 1234},
		{"meters truncates", true, 1234, 1},
		{"meters sub-unit lost", true, 999, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := newTestDevice("SN-A")
			conf := testConfig()
			conf.DepthInMeters = tc.meters
			cam, err := realsense.New(ctx, conf, fake.NewSystem(dev), logger)
			test.That(t, err, test.ShouldBeNil)

			dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
				depthPlane(4, 2, func(x, y int) uint16 { return tc.raw }),
			}})
			dm, err := cam.Depth(ctx)
			test.That(t, err, test.ShouldBeNil)
			for y := 0; y < 2; y++ {
				for x := 0; x < 4; x++ {
					test.That(t, dm.GetDepth(x, y), test.ShouldEqual, tc.want)
				}
			}
		})
	}
}

func TestFramesFromPartialFramesets(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	dev := newTestDevice("SN-A")
	cam, err := realsense.New(ctx, testConfig(), fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)

	// the SDK can deliver framesets carrying only one stream; the adapter
	// polls until it has both
	dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{colorPlane(4, 2, 10, 20, 30)}})
	dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		depthPlane(4, 2, func(x, y int) uint16 { return uint16(100 + x) }),
	}})

	img, dm, err := cam.Frames(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 2))
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 2))
	test.That(t, dm.GetDepth(3, 0), test.ShouldEqual, rimage.Depth(103))

	r, g, b, _ := img.At(0, 0).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(30))
	test.That(t, g>>8, test.ShouldEqual, uint32(20))
	test.That(t, b>>8, test.ShouldEqual, uint32(10))

	test.That(t, dev.Requeued(), test.ShouldEqual, 2)
}

func TestAlignedFrames(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	dev := newTestDevice("SN-A")
	// the fake aligner shifts every depth sample up by one so aligned
	// output is distinguishable from the raw pair
	dev.AlignFunc = func(buf *gensdk.Buffer) (*gensdk.Buffer, error) {
		out := buf.Clone()
		p := out.Plane(gensdk.StreamDepth)
		for i := 0; i < len(p.Data); i += 2 {
			v := binary.LittleEndian.Uint16(p.Data[i:])
			binary.LittleEndian.PutUint16(p.Data[i:], v+1)
		}
		return out, nil
	}
	cam, err := realsense.New(ctx, testConfig(), fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam.Properties().SupportsAlignment, test.ShouldBeTrue)

	dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		colorPlane(4, 2, 1, 2, 3),
		depthPlane(4, 2, func(x, y int) uint16 { return 500 }),
	}})
	_, dm, err := cam.AlignedFrames(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(501))

	dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		colorPlane(4, 2, 1, 2, 3),
		depthPlane(4, 2, func(x, y int) uint16 { return 500 }),
	}})
	_, dm, err = cam.Frames(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(500))
}

func TestAlignedFramesFallback(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	dev := newTestDevice("SN-A")
	cam, err := realsense.New(ctx, testConfig(), fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)

	dev.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		colorPlane(4, 2, 1, 2, 3),
		depthPlane(4, 2, func(x, y int) uint16 { return 900 }),
	}})
	// no aligner on the device: aligned retrieval degrades to the raw pair
	_, dm, err := cam.AlignedFrames(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(900))
}

func TestFrameTimeout(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dev := newTestDevice("SN-A")
	conf := testConfig()
	conf.FrameTimeout = 25 * time.Millisecond
	cam, err := realsense.New(context.Background(), conf, fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = cam.Depth(context.Background())
	test.That(t, errors.Is(err, camera.ErrTimeout), test.ShouldBeTrue)
}

func TestRetrievalHonorsCallerContext(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dev := newTestDevice("SN-A")
	cam, err := realsense.New(context.Background(), testConfig(), fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = cam.RGB(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestOptions(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dev := fake.NewDevice("SN-A", map[string]gensdk.Value{
		"Sensor1.Exposure":           gensdk.Int(100),
		"Sensor1.Gain":               gensdk.Float(16),
		"Sensor1.EnableAutoExposure": gensdk.Float(1),
	})
	cam, err := realsense.New(context.Background(), testConfig(), fake.NewSystem(dev), logger)
	test.That(t, err, test.ShouldBeNil)

	// happy path
	test.That(t, cam.SetOption(realsense.OptionGain, 32), test.ShouldBeNil)
	v, err := cam.GetOption(realsense.OptionGain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 32.0)

	// the Exposure node holds an integer: a float write is a kind
	// mismatch, reported but non-fatal, and the node keeps its value
	err = cam.SetOption(realsense.OptionExposure, 50)
	var mismatch *camera.OptionTypeMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)

	raw, err := dev.Property("Sensor1.Exposure")
	test.That(t, err, test.ShouldBeNil)
	i, err := raw.AsInt()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, i, test.ShouldEqual, int64(100))

	// reading it back as a float is the same mismatch
	_, err = cam.GetOption(realsense.OptionExposure)
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
}

func TestSerialBindingNoCrossTalk(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	devA := newTestDevice("SN-A")
	devB := newTestDevice("SN-B")
	sys := fake.NewSystem(devA, devB)

	confA := testConfig()
	confA.SerialNumber = "SN-A"
	camA, err := realsense.New(ctx, confA, sys, logger)
	test.That(t, err, test.ShouldBeNil)

	confB := testConfig()
	confB.SerialNumber = "SN-B"
	camB, err := realsense.New(ctx, confB, sys, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, camA.SerialNumber(), test.ShouldEqual, "SN-A")
	test.That(t, camB.SerialNumber(), test.ShouldEqual, "SN-B")

	devA.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		depthPlane(2, 2, func(x, y int) uint16 { return 111 }),
	}})
	devB.EnqueueBuffer(&gensdk.Buffer{Planes: []gensdk.Plane{
		depthPlane(2, 2, func(x, y int) uint16 { return 222 }),
	}})

	dmB, err := camB.Depth(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dmB.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(222))

	dmA, err := camA.Depth(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dmA.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(111))
}

func TestCloseIdempotent(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	cam, err := realsense.New(ctx, testConfig(), fake.NewSystem(newTestDevice("SN-A")), logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cam.Close(ctx), test.ShouldBeNil)

	err = cam.Close(ctx)
	var teardown *camera.TeardownError
	test.That(t, errors.As(err, &teardown), test.ShouldBeTrue)
}
