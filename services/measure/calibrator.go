package measure

import (
	"fmt"
	"math"
	"sync"

	"body-measure/models"
)

// Calibrate builds a CalibrationProfile from reference sizes.
//
// For static and first-frame modes the scale is referenceCm / referencePixels.
// For fixed mode referenceCm is read as the cm-per-pixel scale itself and
// referencePixels is ignored.
func Calibrate(mode models.CalibrationMode, referencePixels, referenceCm float64) (models.CalibrationProfile, error) {
	switch mode {
	case models.CalibrationStatic, models.CalibrationFirstFrame:
		if !positive(referencePixels) {
			return models.CalibrationProfile{}, fmt.Errorf("%w: reference pixel size must be > 0, got %v",
				ErrInvalidCalibration, referencePixels)
		}
		if !positive(referenceCm) {
			return models.CalibrationProfile{}, fmt.Errorf("%w: reference size must be > 0 cm, got %v",
				ErrInvalidCalibration, referenceCm)
		}
		return models.CalibrationProfile{
			Mode:            mode,
			ScaleCmPerPixel: referenceCm / referencePixels,
			ReferenceCm:     referenceCm,
			ReferencePixels: referencePixels,
		}, nil
	case models.CalibrationFixed:
		if !positive(referenceCm) {
			return models.CalibrationProfile{}, fmt.Errorf("%w: fixed scale must be > 0, got %v",
				ErrInvalidCalibration, referenceCm)
		}
		return models.CalibrationProfile{Mode: mode, ScaleCmPerPixel: referenceCm}, nil
	default:
		return models.CalibrationProfile{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidCalibration, mode)
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Calibrator hands out the profile a metric should use. Static and fixed
// profiles are resolved at construction; a first-frame calibrator resolves
// once, on the first positive reading, and keeps that scale afterwards.
type Calibrator struct {
	mu          sync.Mutex
	mode        models.CalibrationMode
	referenceCm float64
	profile     models.CalibrationProfile
	resolved    bool
}

// NewCalibrator validates the inputs for mode. For first-frame mode only
// referenceCm is required up front.
func NewCalibrator(mode models.CalibrationMode, referencePixels, referenceCm, scale float64) (*Calibrator, error) {
	c := &Calibrator{mode: mode, referenceCm: referenceCm}
	switch mode {
	case models.CalibrationStatic:
		p, err := Calibrate(mode, referencePixels, referenceCm)
		if err != nil {
			return nil, err
		}
		c.profile, c.resolved = p, true
	case models.CalibrationFixed:
		p, err := Calibrate(mode, 0, scale)
		if err != nil {
			return nil, err
		}
		c.profile, c.resolved = p, true
	case models.CalibrationFirstFrame:
		if !positive(referenceCm) {
			return nil, fmt.Errorf("%w: first-frame reference size must be > 0 cm, got %v",
				ErrInvalidCalibration, referenceCm)
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidCalibration, mode)
	}
	return c, nil
}

// Mode returns the calibration mode.
func (c *Calibrator) Mode() models.CalibrationMode { return c.mode }

// Profile returns the resolved profile, if any.
func (c *Calibrator) Profile() (models.CalibrationProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.resolved
}

// Resolve returns the profile to apply to a reading of pixels. The first
// call on an unresolved first-frame calibrator fixes the scale to
// referenceCm / pixels; a non-positive reading leaves it unresolved and
// returns ErrInvalidCalibration so the caller can skip the frame.
func (c *Calibrator) Resolve(pixels float64) (models.CalibrationProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.profile, nil
	}
	p, err := Calibrate(c.mode, pixels, c.referenceCm)
	if err != nil {
		return models.CalibrationProfile{}, err
	}
	c.profile, c.resolved = p, true
	return p, nil
}
