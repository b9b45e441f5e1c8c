package ingest

import (
	"context"

	"body-measure/models"
)

// LandmarkExtractor wraps a pose-detection capability. A nil detection with
// a nil error means nobody was found in the frame.
type LandmarkExtractor interface {
	Extract(ctx context.Context, f *models.Frame) (*models.Detection, error)
}

// EmbeddedExtractor returns the detection a source already attached to the
// frame (replayed recordings, the simulated camera).
type EmbeddedExtractor struct{}

// Extract implements LandmarkExtractor.
func (EmbeddedExtractor) Extract(_ context.Context, f *models.Frame) (*models.Detection, error) {
	if f == nil || f.Detection.Empty() {
		return nil, nil
	}
	return f.Detection, nil
}
