// Package realsense wraps an Intel RealSense device behind the common
// camera contract. The adapter configures one fixed-resolution depth
// stream and one color stream, reads the color intrinsics back from the
// negotiated profile, and converts the SDK's framesets into the common
// frame types.
package realsense

import (
	"context"
	"image"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/iaslab-padova/depthcam/camera"
	"github.com/iaslab-padova/depthcam/gensdk"
	"github.com/iaslab-padova/depthcam/rimage"
	"github.com/iaslab-padova/depthcam/rimage/transform"
)

const cameraName = "Intel RealSense"

// The depth sensor always runs at its maximum-rate resolution; only the
// color stream follows the configured preset.
const (
	depthWidth  = 1280
	depthHeight = 720
)

// Camera is a RealSense adapter. It implements camera.Camera and
// additionally exposes the vendor sensor option interface.
type Camera struct {
	conf   camera.Config
	logger golog.Logger

	dev        gensdk.Device
	intrinsics transform.PinholeCameraIntrinsics
	serial     string

	// depth samples are native millimeters; depthDivisor is 1000 when the
	// caller asked for meters.
	depthDivisor rimage.Depth

	closed bool
}

var _ camera.Camera = (*Camera)(nil)

// New opens a RealSense device through the given SDK system. A configured
// serial number binds to that specific device; otherwise the first
// discovered device is used.
func New(ctx context.Context, conf camera.Config, sys gensdk.System, logger golog.Logger) (*Camera, error) {
	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	dev, err := findDevice(ctx, sys, conf.SerialNumber)
	if err != nil {
		return nil, err
	}

	colorWidth, colorHeight := colorDimensions(conf.RGBResolution)
	streamConf := gensdk.StreamConfig{Streams: []gensdk.StreamRequest{
		{Kind: gensdk.StreamDepth, Format: gensdk.FormatZ16, Width: depthWidth, Height: depthHeight, FPS: conf.FPS},
		{Kind: gensdk.StreamColor, Format: gensdk.FormatBGR8, Width: colorWidth, Height: colorHeight, FPS: conf.FPS},
	}}

	profiles, err := dev.StartStream(ctx, streamConf)
	if err != nil {
		return nil, &camera.StreamConfigError{
			Backend: cameraName,
			Detail: "make sure the requested RGB resolution is supported by this model " +
				"(some cameras, e.g. the D455, have no FullHD mode); with multiple cameras " +
				"connected, set serial numbers to tell them apart",
			Err: err,
		}
	}

	cam := &Camera{
		conf:         conf,
		logger:       logger,
		dev:          dev,
		serial:       dev.SerialNumber(),
		depthDivisor: 1,
	}
	if conf.DepthInMeters {
		cam.depthDivisor = 1000
	}

	for _, p := range profiles {
		if p.Kind != gensdk.StreamColor {
			continue
		}
		cam.intrinsics = transform.PinholeCameraIntrinsics{
			Width:  p.Width,
			Height: p.Height,
			Fx:     p.Intrinsics.Fx,
			Fy:     p.Intrinsics.Fy,
			Ppx:    p.Intrinsics.Ppx,
			Ppy:    p.Intrinsics.Ppy,
		}
	}

	logger.Infow("camera configured", "camera", cameraName, "serial", cam.serial)
	return cam, nil
}

func findDevice(ctx context.Context, sys gensdk.System, serial string) (gensdk.Device, error) {
	devices, err := sys.Discover(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "realsense discovery")
	}
	if serial == "" {
		if len(devices) == 0 {
			return nil, errors.Wrap(camera.ErrNoDeviceFound, "realsense")
		}
		return devices[0], nil
	}
	for _, d := range devices {
		if d.SerialNumber() == serial {
			return d, nil
		}
	}
	return nil, errors.Wrapf(camera.ErrNoDeviceFound, "realsense with serial %s", serial)
}

func colorDimensions(res camera.Resolution) (int, int) {
	// HD runs at the depth sensor's resolution; everything else gets the
	// sensor maximum, matching how these devices actually negotiate.
	if res == camera.ResolutionHD {
		return 1280, 720
	}
	return 1920, 1080
}

// waitForPlanes polls the pipeline until one buffer of every requested
// kind has arrived, then returns copies so the originals can go straight
// back to the SDK pool. The wait is bounded by the configured frame
// timeout.
func (c *Camera) waitForPlanes(ctx context.Context, kinds ...gensdk.StreamKind) (map[gensdk.StreamKind]*gensdk.Plane, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.conf.FrameTimeout)
	defer cancel()

	found := map[gensdk.StreamKind]*gensdk.Plane{}
	for {
		buf, err := c.dev.GetBuffer(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Wrapf(camera.ErrTimeout, "%s after %v", cameraName, c.conf.FrameTimeout)
			}
			return nil, errors.Wrap(err, "realsense get buffer")
		}
		copied := buf.Clone()
		goutils.UncheckedError(c.dev.Requeue(buf))

		for _, kind := range kinds {
			if found[kind] != nil {
				continue
			}
			if p := copied.Plane(kind); p != nil {
				found[kind] = p
			}
		}

		complete := true
		for _, kind := range kinds {
			if found[kind] == nil {
				complete = false
			}
		}
		if complete {
			return found, nil
		}
	}
}

// RGB returns the next color frame.
func (c *Camera) RGB(ctx context.Context) (image.Image, error) {
	planes, err := c.waitForPlanes(ctx, gensdk.StreamColor)
	if err != nil {
		return nil, err
	}
	return colorImage(planes[gensdk.StreamColor])
}

// Depth returns the next depth frame in the configured units.
func (c *Camera) Depth(ctx context.Context) (*rimage.DepthMap, error) {
	planes, err := c.waitForPlanes(ctx, gensdk.StreamDepth)
	if err != nil {
		return nil, err
	}
	return c.depthMap(planes[gensdk.StreamDepth])
}

// Frames returns a color and a depth frame captured together.
func (c *Camera) Frames(ctx context.Context) (image.Image, *rimage.DepthMap, error) {
	planes, err := c.waitForPlanes(ctx, gensdk.StreamColor, gensdk.StreamDepth)
	if err != nil {
		return nil, nil, err
	}
	return c.decodePair(planes)
}

// AlignedFrames returns a color frame and the depth frame reprojected onto
// the color pixel grid via the SDK's align processor. If the SDK has no
// aligner, the unaligned pair is returned.
func (c *Camera) AlignedFrames(ctx context.Context) (image.Image, *rimage.DepthMap, error) {
	aligner, ok := c.dev.(gensdk.Aligner)
	if !ok {
		return c.Frames(ctx)
	}

	planes, err := c.waitForPlanes(ctx, gensdk.StreamColor, gensdk.StreamDepth)
	if err != nil {
		return nil, nil, err
	}
	buf := &gensdk.Buffer{
		Serial: c.serial,
		Planes: []gensdk.Plane{*planes[gensdk.StreamColor], *planes[gensdk.StreamDepth]},
	}
	aligned, err := aligner.Align(buf)
	if err != nil {
		if errors.Is(err, gensdk.ErrNotSupported) {
			return c.decodePair(planes)
		}
		return nil, nil, errors.Wrap(err, "realsense align")
	}
	return c.decodePair(map[gensdk.StreamKind]*gensdk.Plane{
		gensdk.StreamColor: aligned.Plane(gensdk.StreamColor),
		gensdk.StreamDepth: aligned.Plane(gensdk.StreamDepth),
	})
}

func (c *Camera) decodePair(planes map[gensdk.StreamKind]*gensdk.Plane) (image.Image, *rimage.DepthMap, error) {
	img, err := colorImage(planes[gensdk.StreamColor])
	if err != nil {
		return nil, nil, err
	}
	dm, err := c.depthMap(planes[gensdk.StreamDepth])
	if err != nil {
		return nil, nil, err
	}
	return img, dm, nil
}

func colorImage(p *gensdk.Plane) (image.Image, error) {
	if p == nil {
		return nil, errors.New("no color plane in buffer")
	}
	if p.Format != gensdk.FormatBGR8 {
		return nil, errors.Errorf("unexpected color format %v", p.Format)
	}
	if len(p.Data) != p.Width*p.Height*3 {
		return nil, errors.Errorf("bad color plane length %d for %dx%d", len(p.Data), p.Width, p.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i := 0; i < p.Width*p.Height; i++ {
		img.Pix[4*i+0] = p.Data[3*i+2]
		img.Pix[4*i+1] = p.Data[3*i+1]
		img.Pix[4*i+2] = p.Data[3*i+0]
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

func (c *Camera) depthMap(p *gensdk.Plane) (*rimage.DepthMap, error) {
	if p == nil {
		return nil, errors.New("no depth plane in buffer")
	}
	if p.Format != gensdk.FormatZ16 {
		return nil, errors.Errorf("unexpected depth format %v", p.Format)
	}
	raw, err := p.Samples()
	if err != nil {
		return nil, err
	}
	data := make([]rimage.Depth, len(raw))
	for i, v := range raw {
		// integer division, exactly like the native unit conversion:
		// sub-unit precision is discarded when converting to meters
		data[i] = rimage.Depth(v) / c.depthDivisor
	}
	return rimage.NewDepthMapFromData(p.Width, p.Height, data)
}

// Intrinsics returns the color-stream intrinsics read at construction.
func (c *Camera) Intrinsics() transform.PinholeCameraIntrinsics {
	return c.intrinsics
}

// SerialNumber returns the serial of the bound device.
func (c *Camera) SerialNumber() string { return c.serial }

// Properties implements camera.Camera.
func (c *Camera) Properties() camera.Properties {
	_, hasAligner := c.dev.(gensdk.Aligner)
	intr := c.intrinsics
	return camera.Properties{
		IntrinsicParams:   &intr,
		SupportsAlignment: hasAligner,
		FrameRate:         float32(c.conf.FPS),
	}
}

// Close stops the stream pipeline. A second close reports a non-fatal
// *camera.TeardownError.
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
	c.logger.Infow("camera closed", "camera", cameraName, "serial", c.serial)
	return err
}
