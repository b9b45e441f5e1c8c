package measure

import (
	"errors"
	"fmt"
	"strings"

	"body-measure/models"
)

var (
	// ErrInvalidCalibration reports malformed or zero-valued calibration inputs.
	ErrInvalidCalibration = errors.New("invalid calibration")
	// ErrMissingLandmarks reports that a frame lacks a landmark a metric needs.
	ErrMissingLandmarks = errors.New("missing landmarks")
)

// MissingLandmarksError lists the landmarks a metric needed but did not get.
type MissingLandmarksError struct {
	MetricID string
	Missing  []models.Landmark
}

func (e *MissingLandmarksError) Error() string {
	names := make([]string, len(e.Missing))
	for i, l := range e.Missing {
		names[i] = string(l)
	}
	return fmt.Sprintf("metric %s: missing landmarks: %s", e.MetricID, strings.Join(names, ", "))
}

// Is lets errors.Is match ErrMissingLandmarks.
func (e *MissingLandmarksError) Is(target error) bool {
	return target == ErrMissingLandmarks
}
