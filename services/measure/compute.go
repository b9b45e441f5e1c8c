package measure

import (
	"fmt"
	"math"

	"body-measure/models"
)

// Options tune how keypoints are read. The zero value accepts every keypoint.
type Options struct {
	// MinConfidence treats keypoints below this confidence as absent.
	MinConfidence float64
}

type point struct{ x, y float64 }

// PixelMagnitude measures a metric's geometry in pixel space, before any
// calibration or multiplier.
func PixelMagnitude(def models.MetricDefinition, kps models.Keypoints, width, height int, opts Options) (float64, error) {
	pts, err := lookup(def, kps, width, height, opts)
	if err != nil {
		return 0, err
	}

	switch def.Geometry {
	case models.GeometryDistance, "":
		if len(pts) != 2 {
			return 0, fmt.Errorf("metric %s: distance needs 2 landmarks, got %d", def.ID, len(pts))
		}
		return dist(pts[0], pts[1]), nil

	case models.GeometryOffsetDistance:
		if len(pts) != 2 {
			return 0, fmt.Errorf("metric %s: offset distance needs 2 landmarks, got %d", def.ID, len(pts))
		}
		a := point{pts[0].x + def.OffsetX, pts[0].y + def.OffsetY}
		b := point{pts[1].x + def.OffsetX, pts[1].y + def.OffsetY}
		return dist(a, b), nil

	case models.GeometryPerimeter:
		if len(pts) < 3 {
			return 0, fmt.Errorf("metric %s: perimeter needs at least 3 landmarks, got %d", def.ID, len(pts))
		}
		var total float64
		for i := range pts {
			total += dist(pts[i], pts[(i+1)%len(pts)])
		}
		return total, nil

	default:
		return 0, fmt.Errorf("metric %s: unknown geometry %q", def.ID, def.Geometry)
	}
}

// Compute turns one frame's keypoints into a calibrated RawSample.
// It is a pure function of its arguments.
func Compute(def models.MetricDefinition, kps models.Keypoints, width, height int, cal models.CalibrationProfile, opts Options) (models.RawSample, error) {
	px, err := PixelMagnitude(def, kps, width, height, opts)
	if err != nil {
		return models.RawSample{}, err
	}
	return Sample(def, px, cal), nil
}

// Sample applies calibration and the circumference multiplier to a pixel
// magnitude already measured by PixelMagnitude.
func Sample(def models.MetricDefinition, pixels float64, cal models.CalibrationProfile) models.RawSample {
	return models.RawSample{
		MetricID: def.ID,
		Pixels:   pixels,
		ValueCm:  cal.Centimetres(pixels) * def.EffectiveMultiplier(),
	}
}

func lookup(def models.MetricDefinition, kps models.Keypoints, width, height int, opts Options) ([]point, error) {
	var missing []models.Landmark
	pts := make([]point, 0, len(def.Landmarks))
	for _, name := range def.Landmarks {
		k, ok := kps[name]
		if !ok || k.Confidence < opts.MinConfidence {
			missing = append(missing, name)
			continue
		}
		x, y := k.Pixel(width, height)
		pts = append(pts, point{x, y})
	}
	if len(missing) > 0 {
		return nil, &MissingLandmarksError{MetricID: def.ID, Missing: missing}
	}
	return pts, nil
}

func dist(a, b point) float64 {
	return math.Hypot(a.x-b.x, a.y-b.y)
}
