package models

// CalibrationMode selects how a pixel→centimetre scale is obtained.
type CalibrationMode string

const (
	// CalibrationStatic divides a known object size by its measured pixel size.
	CalibrationStatic CalibrationMode = "static"
	// CalibrationFirstFrame derives the scale from the first valid reading
	// of a metric against an expected real-world size.
	CalibrationFirstFrame CalibrationMode = "first_frame"
	// CalibrationFixed uses an explicit cm-per-pixel constant.
	CalibrationFixed CalibrationMode = "fixed"
)

// CalibrationProfile is an immutable pixel→centimetre conversion.
type CalibrationProfile struct {
	Mode            CalibrationMode `json:"mode"`
	ScaleCmPerPixel float64         `json:"scale_cm_per_pixel"`
	ReferenceCm     float64         `json:"reference_cm,omitempty"`
	ReferencePixels float64         `json:"reference_pixels,omitempty"`
}

// Centimetres converts a pixel magnitude with this profile's scale.
func (p CalibrationProfile) Centimetres(pixels float64) float64 {
	return pixels * p.ScaleCmPerPixel
}
