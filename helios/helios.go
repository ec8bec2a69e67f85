// Package helios wraps a LucidVision Helios time-of-flight device behind
// the common camera contract. The device streams a single interleaved
// four-channel 16-bit buffer (x/y/z coordinates plus amplitude); the
// adapter decodes the amplitude channel into an 8-bit intensity image and
// the z channel into a depth map via the per-axis calibration read from
// the nodemap at initialization.
package helios

import (
	"context"
	"image"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/iaslab-padova/depthcam/camera"
	"github.com/iaslab-padova/depthcam/gensdk"
	"github.com/iaslab-padova/depthcam/rimage"
	"github.com/iaslab-padova/depthcam/rimage/transform"
)

const cameraName = "LucidVision Helios"

// Nodemap names used during initialization.
const (
	nodeCalibFocalLengthX   = "CalibFocalLengthX"
	nodeCalibFocalLengthY   = "CalibFocalLengthY"
	nodeCalibOpticalCenterX = "CalibOpticalCenterX"
	nodeCalibOpticalCenterY = "CalibOpticalCenterY"
	nodeWidth               = "Width"
	nodeHeight              = "Height"
	nodeSerialNumber        = "DeviceSerialNumber"
	nodePixelFormat         = "PixelFormat"
	nodeConfidenceEnable    = "Scan3dConfidenceThresholdEnable"
	nodeAmplitudeGain       = "Scan3dAmplitudeGain"
	nodeCoordinateSelector  = "Scan3dCoordinateSelector"
	nodeCoordinateScale     = "Scan3dCoordinateScale"
	nodeCoordinateOffset    = "Scan3dCoordinateOffset"
	nodeBufferHandlingMode  = "StreamBufferHandlingMode"
	nodeAutoNegotiateSize   = "StreamAutoNegotiatePacketSize"
	nodePacketResendEnable  = "StreamPacketResendEnable"
)

const pixelFormatABCY16 = "Coord3D_ABCY16"

// defaultAmplitudeGain is applied at init; the sensor default is too dim
// for indoor scenes.
const defaultAmplitudeGain = 5.0

// axisCalibration is the per-axis linear transform converting raw integer
// sensor units to physical distance units.
type axisCalibration struct {
	Scale  float64
	Offset float64
}

// Camera is a Helios adapter implementing camera.Camera.
type Camera struct {
	conf   camera.Config
	logger golog.Logger

	sys        gensdk.System
	dev        gensdk.Device
	intrinsics transform.PinholeCameraIntrinsics
	serial     string

	// calibration for axes A (x), B (y) and C (z, i.e. depth), read once
	// at init. Only C is applied per frame; A and B are retained for
	// callers that project pixels to rays themselves.
	calibA, calibB, calibC axisCalibration

	closed bool
}

var _ camera.Camera = (*Camera)(nil)

// New opens a Helios device through the given SDK system, waiting for
// hardware to appear within the configured retry budget (by default 6
// attempts, 3 seconds apart).
//
// Depth samples are in the device's calibrated units (millimeters on this
// hardware); the DepthInMeters flag has no effect on this backend.
func New(ctx context.Context, conf camera.Config, sys gensdk.System, logger golog.Logger) (*Camera, error) {
	return newCamera(ctx, conf, sys, clock.New(), logger)
}

func newCamera(ctx context.Context, conf camera.Config, sys gensdk.System, clk clock.Clock, logger golog.Logger) (*Camera, error) {
	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	dev, err := discoverDevice(ctx, conf, sys, clk, logger)
	if err != nil {
		return nil, err
	}

	cam := &Camera{conf: conf, logger: logger, sys: sys, dev: dev}
	if err := cam.readCalibration(); err != nil {
		return nil, err
	}
	if err := cam.configureStream(ctx); err != nil {
		return nil, err
	}

	registry.acquire(sys)
	logger.Infow("camera configured", "camera", cameraName, "serial", cam.serial)
	return cam, nil
}

// discoverDevice retries discovery on the config's budget until a device
// (matching the configured serial, when set) appears.
func discoverDevice(
	ctx context.Context,
	conf camera.Config,
	sys gensdk.System,
	clk clock.Clock,
	logger golog.Logger,
) (gensdk.Device, error) {
	var dev gensdk.Device
	attempt := 0
	err := conf.Retry.Do(ctx, clk, func(ctx context.Context) error {
		attempt++
		devices, err := sys.Discover(ctx)
		if err != nil {
			return errors.Wrap(err, "helios discovery")
		}
		for _, d := range devices {
			if conf.SerialNumber == "" || d.SerialNumber() == conf.SerialNumber {
				dev = d
				return nil
			}
		}
		logger.Infow("waiting for a device to be connected",
			"attempt", attempt, "max_attempts", conf.Retry.MaxAttempts, "backoff", conf.Retry.Backoff)
		return errors.Wrap(camera.ErrNoDeviceFound, cameraName)
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (c *Camera) floatProp(name string) (float64, error) {
	v, err := c.dev.Property(name)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", name)
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", name)
	}
	return f, nil
}

func (c *Camera) intProp(name string) (int64, error) {
	v, err := c.dev.Property(name)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", name)
	}
	i, err := v.AsInt()
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", name)
	}
	return i, nil
}

// readCalibration populates intrinsics, serial and the per-axis
// scale/offset calibration from the device calibration registers.
func (c *Camera) readCalibration() error {
	fx, err := c.floatProp(nodeCalibFocalLengthX)
	if err != nil {
		return err
	}
	fy, err := c.floatProp(nodeCalibFocalLengthY)
	if err != nil {
		return err
	}
	ppx, err := c.floatProp(nodeCalibOpticalCenterX)
	if err != nil {
		return err
	}
	ppy, err := c.floatProp(nodeCalibOpticalCenterY)
	if err != nil {
		return err
	}
	width, err := c.intProp(nodeWidth)
	if err != nil {
		return err
	}
	height, err := c.intProp(nodeHeight)
	if err != nil {
		return err
	}
	c.intrinsics = transform.PinholeCameraIntrinsics{
		Width:  int(width),
		Height: int(height),
		Fx:     fx,
		Fy:     fy,
		Ppx:    ppx,
		Ppy:    ppy,
	}

	// the nodemap serial is authoritative; the transport-level one is a
	// fallback for firmware that does not expose the node
	c.serial = c.dev.SerialNumber()
	if v, err := c.dev.Property(nodeSerialNumber); err == nil {
		if s, err := v.AsString(); err == nil {
			c.serial = s
		}
	}

	for _, axis := range []struct {
		selector string
		calib    *axisCalibration
	}{
		{"CoordinateA", &c.calibA},
		{"CoordinateB", &c.calibB},
		{"CoordinateC", &c.calibC},
	} {
		if err := c.dev.SetProperty(nodeCoordinateSelector, gensdk.String(axis.selector)); err != nil {
			return errors.Wrapf(err, "selecting %s", axis.selector)
		}
		if axis.calib.Scale, err = c.floatProp(nodeCoordinateScale); err != nil {
			return err
		}
		if axis.calib.Offset, err = c.floatProp(nodeCoordinateOffset); err != nil {
			return err
		}
	}
	return nil
}

// configureStream sets the pixel format, confidence and gain nodes, the
// transport stream options, and starts streaming.
func (c *Camera) configureStream(ctx context.Context) error {
	for _, prop := range []struct {
		name  string
		value gensdk.Value
	}{
		{nodeConfidenceEnable, gensdk.Bool(false)},
		{nodeAmplitudeGain, gensdk.Float(defaultAmplitudeGain)},
		{nodePixelFormat, gensdk.String(pixelFormatABCY16)},
		// keep only the newest buffer, negotiate the GigE packet size and
		// resend lost packets
		{nodeBufferHandlingMode, gensdk.String("NewestOnly")},
		{nodeAutoNegotiateSize, gensdk.Bool(true)},
		{nodePacketResendEnable, gensdk.Bool(true)},
	} {
		if err := c.dev.SetProperty(prop.name, prop.value); err != nil {
			return &camera.StreamConfigError{
				Backend: cameraName,
				Detail:  "configuring nodemap " + prop.name,
				Err:     err,
			}
		}
	}

	_, err := c.dev.StartStream(ctx, gensdk.StreamConfig{Streams: []gensdk.StreamRequest{{
		Kind:   gensdk.StreamCoord3D,
		Format: gensdk.FormatCoord3DABCY16,
		Width:  c.intrinsics.Width,
		Height: c.intrinsics.Height,
		FPS:    c.conf.FPS,
	}}})
	if err != nil {
		return &camera.StreamConfigError{Backend: cameraName, Detail: "starting stream", Err: err}
	}
	return nil
}

// acquire blocks for the next coordinate buffer, copies it so the
// original can go straight back to the device pool, and returns the
// interleaved plane.
func (c *Camera) acquire(ctx context.Context) (*gensdk.Plane, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.conf.FrameTimeout)
	defer cancel()

	buf, err := c.dev.GetBuffer(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrapf(camera.ErrTimeout, "%s after %v", cameraName, c.conf.FrameTimeout)
		}
		return nil, errors.Wrap(err, "helios get buffer")
	}
	copied := buf.Clone()
	goutils.UncheckedError(c.dev.Requeue(buf))

	p := copied.Plane(gensdk.StreamCoord3D)
	if p == nil {
		return nil, errors.New("no coordinate plane in buffer")
	}
	if p.Format != gensdk.FormatCoord3DABCY16 {
		return nil, errors.Errorf("unexpected pixel format %v", p.Format)
	}
	if len(p.Data) != p.Width*p.Height*p.Format.BytesPerPixel() {
		return nil, errors.Errorf("bad buffer length %d for %dx%d", len(p.Data), p.Width, p.Height)
	}
	return p, nil
}

// decode splits an interleaved ABCY plane into its raw amplitude channel
// and a calibrated depth map.
func (c *Camera) decode(p *gensdk.Plane) ([]uint16, *rimage.DepthMap, error) {
	samples, err := p.Samples()
	if err != nil {
		return nil, nil, err
	}
	n := p.Width * p.Height
	intensity := make([]uint16, n)
	depth := make([]rimage.Depth, n)
	for i := 0; i < n; i++ {
		intensity[i] = samples[4*i+3]
		// z * scale + offset, truncated into the 16-bit sample like the
		// raw sensor units it replaces
		depth[i] = rimage.Depth(float64(samples[4*i+2])*c.calibC.Scale + c.calibC.Offset)
	}
	dm, err := rimage.NewDepthMapFromData(p.Width, p.Height, depth)
	if err != nil {
		return nil, nil, err
	}
	return intensity, dm, nil
}

// RGB returns the next amplitude frame, min-max normalized into the 0-255
// range. The normalization is per call, so absolute intensity is not
// comparable frame-to-frame.
func (c *Camera) RGB(ctx context.Context) (image.Image, error) {
	p, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	intensity, _, err := c.decode(p)
	if err != nil {
		return nil, err
	}
	return rimage.NormalizeIntensity(p.Width, p.Height, intensity)
}

// Depth returns the next depth frame in calibrated units.
func (c *Camera) Depth(ctx context.Context) (*rimage.DepthMap, error) {
	p, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	_, dm, err := c.decode(p)
	if err != nil {
		return nil, err
	}
	return dm, nil
}

// Frames returns an intensity and a depth frame decoded from a single
// acquisition, so the two are always captured together.
func (c *Camera) Frames(ctx context.Context) (image.Image, *rimage.DepthMap, error) {
	p, err := c.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	intensity, dm, err := c.decode(p)
	if err != nil {
		return nil, nil, err
	}
	img, err := rimage.NormalizeIntensity(p.Width, p.Height, intensity)
	if err != nil {
		return nil, nil, err
	}
	return img, dm, nil
}

// AlignedFrames is identical to Frames: the sensor natively produces
// co-registered channels, so there is nothing to align.
func (c *Camera) AlignedFrames(ctx context.Context) (image.Image, *rimage.DepthMap, error) {
	return c.Frames(ctx)
}

// Intrinsics returns the calibration read from the device registers at
// construction.
func (c *Camera) Intrinsics() transform.PinholeCameraIntrinsics {
	return c.intrinsics
}

// SerialNumber returns the serial reported by the device nodemap.
func (c *Camera) SerialNumber() string { return c.serial }

// Properties implements camera.Camera.
func (c *Camera) Properties() camera.Properties {
	intr := c.intrinsics
	return camera.Properties{
		IntrinsicParams:   &intr,
		SupportsAlignment: false,
		FrameRate:         float32(c.conf.FPS),
	}
}

// CoordinateScales returns the per-axis scale factors read at init.
func (c *Camera) CoordinateScales() (a, b, z float64) {
	return c.calibA.Scale, c.calibB.Scale, c.calibC.Scale
}

// CoordinateOffsets returns the per-axis offsets read at init.
func (c *Camera) CoordinateOffsets() (a, b, z float64) {
	return c.calibA.Offset, c.calibB.Offset, c.calibC.Offset
}

// Close stops streaming and drops this camera's reference on the SDK
// device registry, releasing the registry when it was the last one. Both a
// second close and a release of an already-released registry are reported
// as non-fatal *camera.TeardownError values.
func (c *Camera) Close(ctx context.Context) error {
	if c.closed {
		err := &camera.TeardownError{Backend: cameraName, Serial: c.serial, Err: errors.New("already closed")}
		c.logger.Warnw("double close", "camera", cameraName, "serial", c.serial)
		return err
	}
	c.closed = true

	var err error
	if stopErr := c.dev.StopStream(); stopErr != nil {
		err = multierr.Append(err, &camera.TeardownError{Backend: cameraName, Serial: c.serial, Err: stopErr})
	}
	if relErr := registry.release(c.sys); relErr != nil {
		err = multierr.Append(err, &camera.TeardownError{Backend: cameraName, Serial: c.serial, Err: relErr})
	}
	c.logger.Infow("camera closed", "camera", cameraName, "serial", c.serial)
	return err
}
