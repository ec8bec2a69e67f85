// Package main contains a command to capture frame pairs from a depth
// camera and dump them to PNG files.
//
// The vendor SDK systems are cgo-backed and linked in by downstream
// builds; this command runs against the in-memory fake SDK so the full
// capture path (discovery, stream setup, intrinsics, decode) can be
// exercised without hardware.
package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/iaslab-padova/depthcam/camera"
	"github.com/iaslab-padova/depthcam/gensdk"
	"github.com/iaslab-padova/depthcam/gensdk/fake"
	"github.com/iaslab-padova/depthcam/helios"
	"github.com/iaslab-padova/depthcam/realsense"
)

var logger = golog.NewDevelopmentLogger("depthsnap")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Backend        string `flag:"backend,default=realsense,usage=camera backend (realsense or helios)"`
	Serial         string `flag:"serial,usage=bind to a specific device serial"`
	Resolution     string `flag:"resolution,default=HD,usage=rgb resolution preset (VGA SD HD FullHD)"`
	FPS            int    `flag:"fps,default=30,usage=frames per second"`
	Count          int    `flag:"count,default=1,usage=number of frame pairs to capture"`
	Out            string `flag:"out,default=.,usage=output directory"`
	Meters         bool   `flag:"meters,usage=store depth in meters instead of millimeters"`
	SaveIntrinsics bool   `flag:"save-intrinsics,usage=also write intrinsics.json to the output directory"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	res, err := camera.ParseResolution(argsParsed.Resolution)
	if err != nil {
		return err
	}
	conf := camera.Config{
		RGBResolution:   res,
		DepthResolution: res,
		FPS:             argsParsed.FPS,
		SerialNumber:    argsParsed.Serial,
		DepthInMeters:   argsParsed.Meters,
	}

	var cam camera.Camera
	switch argsParsed.Backend {
	case "realsense":
		cam, err = realsense.New(ctx, conf, demoRealsenseSystem(conf), logger)
	case "helios":
		cam, err = helios.New(ctx, conf, demoHeliosSystem(), logger)
	default:
		return errors.Errorf("unknown backend %q", argsParsed.Backend)
	}
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, cam.Close(ctx))
	}()

	intr := cam.Intrinsics()
	logger.Infow("camera open", "serial", cam.SerialNumber(), "width", intr.Width, "height", intr.Height)

	if argsParsed.SaveIntrinsics {
		if err := intr.WriteToJSONFile(filepath.Join(argsParsed.Out, "intrinsics.json")); err != nil {
			return err
		}
	}

	for i := 0; i < argsParsed.Count; i++ {
		img, dm, err := cam.AlignedFrames(ctx)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(argsParsed.Out, fmt.Sprintf("color_%03d.png", i)), img); err != nil {
			return err
		}
		if err := writePNG(filepath.Join(argsParsed.Out, fmt.Sprintf("depth_%03d.png", i)), dm.ToPrettyPicture(0, 0)); err != nil {
			return err
		}
		logger.Infow("captured", "index", i)
	}
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, img)
}

// demoRealsenseSystem synthesizes a RealSense-shaped device: partial
// framesets carrying a BGR gradient and a depth ramp, plus a pass-through
// aligner.
func demoRealsenseSystem(conf camera.Config) gensdk.System {
	dev := fake.NewDevice("demo-rs-001", nil)
	dev.Intr = gensdk.Intrinsics{Fx: 900, Fy: 900, Ppx: 640, Ppy: 360}
	dev.AlignFunc = func(buf *gensdk.Buffer) (*gensdk.Buffer, error) {
		return buf.Clone(), nil
	}
	colorW, colorH := 1920, 1080
	if conf.RGBResolution == camera.ResolutionHD {
		colorW, colorH = 1280, 720
	}
	dev.SetBufferSource(func(seq int) *gensdk.Buffer {
		color := make([]byte, colorW*colorH*3)
		for y := 0; y < colorH; y++ {
			for x := 0; x < colorW; x++ {
				i := (y*colorW + x) * 3
				color[i] = uint8((x + seq*4) * 255 / colorW)
				color[i+1] = uint8(y * 255 / colorH)
				color[i+2] = uint8(255 - (x * 255 / colorW))
			}
		}
		depth := make([]byte, 1280*720*2)
		for y := 0; y < 720; y++ {
			for x := 0; x < 1280; x++ {
				d := uint16(500 + 40*math.Sin(float64(x+seq*8)/80)*math.Sin(float64(y)/80) + float64(x))
				i := (y*1280 + x) * 2
				depth[i] = byte(d)
				depth[i+1] = byte(d >> 8)
			}
		}
		return &gensdk.Buffer{Planes: []gensdk.Plane{
			{Kind: gensdk.StreamColor, Format: gensdk.FormatBGR8, Width: colorW, Height: colorH, Data: color},
			{Kind: gensdk.StreamDepth, Format: gensdk.FormatZ16, Width: 1280, Height: 720, Data: depth},
		}}
	})
	return fake.NewSystem(dev)
}

// demoHeliosSystem synthesizes a Helios-shaped device: an ABCY16 coordinate
// buffer and the nodemap calibration registers the adapter reads at init.
func demoHeliosSystem() gensdk.System {
	const w, h = 640, 480
	dev := fake.NewDevice("demo-hl-001", map[string]gensdk.Value{
		"CalibFocalLengthX":               gensdk.Float(460.5),
		"CalibFocalLengthY":               gensdk.Float(460.5),
		"CalibOpticalCenterX":             gensdk.Float(320),
		"CalibOpticalCenterY":             gensdk.Float(240),
		"Width":                           gensdk.Int(w),
		"Height":                          gensdk.Int(h),
		"DeviceSerialNumber":              gensdk.String("demo-hl-001"),
		"PixelFormat":                     gensdk.String("Mono16"),
		"Scan3dConfidenceThresholdEnable": gensdk.Bool(true),
		"Scan3dAmplitudeGain":             gensdk.Float(0),
		"Scan3dCoordinateSelector":        gensdk.String("CoordinateA"),
		"Scan3dCoordinateScale":           gensdk.Float(0.25),
		"Scan3dCoordinateOffset":          gensdk.Float(0),
		"StreamBufferHandlingMode":        gensdk.String("OldestFirst"),
		"StreamAutoNegotiatePacketSize":   gensdk.Bool(false),
		"StreamPacketResendEnable":        gensdk.Bool(false),
	})
	dev.SetBufferSource(func(seq int) *gensdk.Buffer {
		data := make([]byte, w*h*8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 8
				z := uint16(2000 + 400*math.Sin(float64(x+seq*8)/60)*math.Cos(float64(y)/60))
				amp := uint16(1000 + x + y)
				data[i+4] = byte(z)
				data[i+5] = byte(z >> 8)
				data[i+6] = byte(amp)
				data[i+7] = byte(amp >> 8)
			}
		}
		return &gensdk.Buffer{Planes: []gensdk.Plane{{
			Kind: gensdk.StreamCoord3D, Format: gensdk.FormatCoord3DABCY16, Width: w, Height: h, Data: data,
		}}}
	})
	return fake.NewSystem(dev)
}
