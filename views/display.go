package views

import (
	"fmt"
	"strings"
	"sync/atomic"

	"body-measure/models"
	"body-measure/utils"
)

// OverlayPoint is a landmark to draw, in pixel space.
type OverlayPoint struct {
	Landmark models.Landmark
	X, Y     float64
}

// OverlayLine joins two landmarks that make up one metric.
type OverlayLine struct {
	MetricID string
	From, To OverlayPoint
}

// Overlay is everything a display draws on top of one frame.
type Overlay struct {
	Points []OverlayPoint
	Lines  []OverlayLine
	Text   []string
}

// Display is a rendering sink; it never feeds back into the pipeline.
type Display interface {
	Render(f *models.Frame, o Overlay)
}

// LiveValue is one metric's current smoothed value for the overlay text.
type LiveValue struct {
	Label   string
	ValueCm float64
}

// BuildOverlay collects the landmarks each metric uses, the segments between
// consecutive ones and a text line per live value.
func BuildOverlay(defs []models.MetricDefinition, det *models.Detection, width, height int, live []LiveValue) Overlay {
	var o Overlay
	if !det.Empty() {
		seen := make(map[models.Landmark]bool)
		for _, d := range defs {
			var prev *OverlayPoint
			for _, l := range d.Landmarks {
				k, ok := det.Keypoints[l]
				if !ok {
					prev = nil
					continue
				}
				x, y := k.Pixel(width, height)
				p := OverlayPoint{Landmark: l, X: x + d.OffsetX, Y: y + d.OffsetY}
				if !seen[l] {
					seen[l] = true
					o.Points = append(o.Points, OverlayPoint{Landmark: l, X: x, Y: y})
				}
				if prev != nil {
					o.Lines = append(o.Lines, OverlayLine{MetricID: d.ID, From: *prev, To: p})
				}
				prev = &p
			}
		}
	}
	for _, v := range live {
		o.Text = append(o.Text, fmt.Sprintf("%s: %.2f cm", v.Label, v.ValueCm))
	}
	return o
}

// ConsoleDisplay prints the overlay text to the log every N frames.
type ConsoleDisplay struct {
	every  uint64
	frames uint64
	log    *utils.Logger
}

// NewConsoleDisplay renders one frame in every n (n <= 0 means every frame).
func NewConsoleDisplay(n int) *ConsoleDisplay {
	if n <= 0 {
		n = 1
	}
	return &ConsoleDisplay{every: uint64(n), log: utils.L().WithPrefix("display")}
}

// Render implements Display.
func (d *ConsoleDisplay) Render(f *models.Frame, o Overlay) {
	n := atomic.AddUint64(&d.frames, 1)
	if (n-1)%d.every != 0 {
		return
	}
	if len(o.Points) == 0 {
		d.log.Info("frame %d: no pose landmarks detected", f.Seq)
		return
	}
	if len(o.Text) == 0 {
		d.log.Info("frame %d: %d landmarks, waiting for measurements", f.Seq, len(o.Points))
		return
	}
	d.log.Info("frame %d: %s", f.Seq, strings.Join(o.Text, " | "))
}

// Rendered returns how many frames were handed to the display.
func (d *ConsoleDisplay) Rendered() uint64 { return atomic.LoadUint64(&d.frames) }
