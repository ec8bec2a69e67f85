package realsense

import (
	"github.com/pkg/errors"

	"github.com/iaslab-padova/depthcam/camera"
	"github.com/iaslab-padova/depthcam/gensdk"
)

// Option is a vendor-defined sensor option identifier. The constants below
// cover the common ones; any SDK option name works.
type Option string

// Commonly adjusted RGB sensor options.
const (
	OptionExposure           Option = "Exposure"
	OptionGain               Option = "Gain"
	OptionWhiteBalance       Option = "WhiteBalance"
	OptionEnableAutoExposure Option = "EnableAutoExposure"
)

// Sensor options live on the second sensor in the device's sensor list
// (the RGB sensor on this hardware).
func (o Option) propertyName() string {
	return "Sensor1." + string(o)
}

// SetOption forwards a numeric option value to the active RGB sensor. A
// kind mismatch between the option and the value is reported as a
// non-fatal *camera.OptionTypeMismatchError and the device is left
// unchanged.
func (c *Camera) SetOption(opt Option, value float64) error {
	if err := c.dev.SetProperty(opt.propertyName(), gensdk.Float(value)); err != nil {
		if errors.Is(err, gensdk.ErrWrongKind) {
			c.logger.Warnw("option has not been set", "option", opt, "error", err)
			return &camera.OptionTypeMismatchError{Option: string(opt), Err: err}
		}
		return errors.Wrapf(err, "setting option %s", opt)
	}
	c.logger.Infow("option changed", "option", opt, "value", value)
	return nil
}

// GetOption reads a numeric option value from the active RGB sensor.
func (c *Camera) GetOption(opt Option) (float64, error) {
	v, err := c.dev.Property(opt.propertyName())
	if err != nil {
		return 0, errors.Wrapf(err, "getting option %s", opt)
	}
	f, err := v.AsFloat()
	if err != nil {
		c.logger.Warnw("option has unexpected kind", "option", opt, "error", err)
		return 0, &camera.OptionTypeMismatchError{Option: string(opt), Err: err}
	}
	return f, nil
}
