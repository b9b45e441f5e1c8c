package controller

import (
	"context"
	"errors"

	"body-measure/models"
	"body-measure/services/ingest"
	"body-measure/utils"
	"body-measure/views"
)

// Reasons a capture loop ends.
const (
	EndStopped     = "stopped"
	EndCancelled   = "cancelled"
	EndOfStream    = "end_of_stream"
	EndSourceError = "source_error"
)

// CaptureSummary describes a finished capture loop.
type CaptureSummary struct {
	Frames     uint64 // frames received from the source
	Detections uint64 // frames with a pose
	Measured   uint64 // frames that produced at least one sample
	EndReason  string
	SourceErr  error
}

// CaptureController is the capture/processing task. It pulls frames from the
// source one at a time, runs the extractor, feeds the session and renders
// the overlay. It is the only goroutine that drives the Session.
type CaptureController struct {
	source    ingest.FrameSource
	extractor ingest.LandmarkExtractor
	session   *Session
	stop      *StopSignal
	display   views.Display
	ready     <-chan struct{}
	defs      []models.MetricDefinition

	log *utils.Logger
}

// CaptureOption customises a CaptureController.
type CaptureOption func(*CaptureController)

// WithDisplay sets the rendering sink.
func WithDisplay(d views.Display) CaptureOption {
	return func(c *CaptureController) { c.display = d }
}

// WithReady delays measurement until ready is closed. Frames that arrive
// earlier are still displayed.
func WithReady(ready <-chan struct{}) CaptureOption {
	return func(c *CaptureController) { c.ready = ready }
}

// NewCaptureController wires the loop. Starting the source is up to the
// caller (see SensorsController.Start).
func NewCaptureController(src ingest.FrameSource, ex ingest.LandmarkExtractor, sess *Session, stop *StopSignal, opts ...CaptureOption) *CaptureController {
	c := &CaptureController{
		source:    src,
		extractor: ex,
		session:   sess,
		stop:      stop,
		defs:      sess.Definitions(),
		log:       utils.L().WithPrefix("capture"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run processes frames until the stop signal fires, ctx is cancelled or the
// source ends. It starts the session but does not stop it; the caller
// finalises after Run returns.
func (c *CaptureController) Run(ctx context.Context) CaptureSummary {
	var sum CaptureSummary
	c.session.Start()
	frames := c.source.Frames()

	for {
		// Checked once per frame; a frame in flight always completes.
		if c.stop.Stopped() {
			sum.EndReason = EndStopped
			return c.finish(sum)
		}
		select {
		case <-ctx.Done():
			sum.EndReason = EndCancelled
			return c.finish(sum)
		case <-c.stop.Done():
			sum.EndReason = EndStopped
			return c.finish(sum)
		case f, ok := <-frames:
			if !ok {
				sum.SourceErr = c.source.Err()
				switch {
				case sum.SourceErr == nil:
					sum.EndReason = EndCancelled
				case errors.Is(sum.SourceErr, ingest.ErrEndOfStream):
					sum.EndReason = EndOfStream
				default:
					sum.EndReason = EndSourceError
				}
				return c.finish(sum)
			}
			c.process(ctx, f, &sum)
		}
	}
}

func (c *CaptureController) process(ctx context.Context, f *models.Frame, sum *CaptureSummary) {
	sum.Frames++

	det, err := c.extractor.Extract(ctx, f)
	if err != nil {
		c.log.Warn("frame %d: landmark extraction failed: %v", f.Seq, err)
		det = nil
	}
	if !det.Empty() {
		sum.Detections++
	}

	if c.measuring() {
		if updated := c.session.OnFrame(f, det); len(updated) > 0 {
			sum.Measured++
		}
	}

	if c.display != nil {
		c.display.Render(f, views.BuildOverlay(c.defs, det, f.Width, f.Height, c.liveValues()))
	}
}

func (c *CaptureController) measuring() bool {
	if c.ready == nil {
		return true
	}
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *CaptureController) liveValues() []views.LiveValue {
	var out []views.LiveValue
	for _, d := range c.defs {
		if v, ok := c.session.Live(d.ID); ok {
			out = append(out, views.LiveValue{Label: d.Label, ValueCm: v})
		}
	}
	return out
}

func (c *CaptureController) finish(sum CaptureSummary) CaptureSummary {
	if sum.SourceErr != nil && sum.EndReason == EndSourceError {
		c.log.Warn("frame source failed: %v", sum.SourceErr)
	}
	c.log.Info("capture ended (%s)  frames=%d detections=%d measured=%d",
		sum.EndReason, sum.Frames, sum.Detections, sum.Measured)
	return sum
}
