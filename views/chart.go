package views

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"body-measure/models"
)

// SessionChart records raw and smoothed values per metric during a session
// and renders one PNG per metric afterwards.
type SessionChart struct {
	mu      sync.Mutex
	labels  map[string]string
	samples map[string][]models.SampleRecord
}

// NewSessionChart prepares a chart for the given metrics.
func NewSessionChart(defs []models.MetricDefinition) *SessionChart {
	c := &SessionChart{
		labels:  make(map[string]string, len(defs)),
		samples: make(map[string][]models.SampleRecord, len(defs)),
	}
	for _, d := range defs {
		c.labels[d.ID] = d.Label
	}
	return c
}

// Observe records one sample.
func (c *SessionChart) Observe(rec models.SampleRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[rec.Raw.MetricID] = append(c.samples[rec.Raw.MetricID], rec)
}

// Render writes <dir>/<stem>_<metric>.png for every metric with samples
// and returns the files written.
func (c *SessionChart) Render(dir, stem string, finals []models.FinalMeasurement) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart dir: %w", err)
	}

	finalByID := make(map[string]models.FinalMeasurement, len(finals))
	for _, f := range finals {
		finalByID[f.MetricID] = f
	}

	ids := make([]string, 0, len(c.samples))
	for id := range c.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var files []string
	for _, id := range ids {
		recs := c.samples[id]
		if len(recs) == 0 {
			continue
		}
		p := plot.New()
		p.Title.Text = c.labels[id]
		p.X.Label.Text = "frame"
		p.Y.Label.Text = "cm"

		raw := make(plotter.XYs, 0, len(recs))
		smooth := make(plotter.XYs, 0, len(recs))
		for _, r := range recs {
			raw = append(raw, plotter.XY{X: float64(r.Raw.Seq), Y: r.Raw.ValueCm})
			smooth = append(smooth, plotter.XY{X: float64(r.Raw.Seq), Y: r.Smoothed})
		}

		rawLine, err := plotter.NewLine(raw)
		if err != nil {
			return files, fmt.Errorf("metric %s raw line: %w", id, err)
		}
		rawLine.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}
		rawLine.Width = vg.Points(0.5)

		smoothLine, err := plotter.NewLine(smooth)
		if err != nil {
			return files, fmt.Errorf("metric %s smoothed line: %w", id, err)
		}
		smoothLine.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
		smoothLine.Width = vg.Points(1.5)

		p.Add(plotter.NewGrid(), rawLine, smoothLine)
		p.Legend.Add("raw", rawLine)
		p.Legend.Add("smoothed", smoothLine)

		if f, ok := finalByID[id]; ok && f.Available {
			final := plotter.XYs{{X: raw[0].X, Y: f.Value}, {X: raw[len(raw)-1].X, Y: f.Value}}
			finalLine, err := plotter.NewLine(final)
			if err != nil {
				return files, fmt.Errorf("metric %s final line: %w", id, err)
			}
			finalLine.Color = color.RGBA{R: 200, G: 40, B: 40, A: 255}
			finalLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
			p.Add(finalLine)
			p.Legend.Add(fmt.Sprintf("session mean %.2f", f.Value), finalLine)
		}

		file := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stem, id))
		if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
			return files, fmt.Errorf("save chart %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}
