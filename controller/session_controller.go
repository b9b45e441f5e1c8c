package controller

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"body-measure/models"
	"body-measure/services/measure"
	"body-measure/utils"
)

// SampleObserver receives every successfully computed sample together with
// the smoothed value it produced. It is called on the capture goroutine.
type SampleObserver func(rec models.SampleRecord)

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithSampleObserver registers an observer; several may be registered.
func WithSampleObserver(o SampleObserver) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithClock overrides the clock used for StartedAt.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// SessionConfig is what a Session needs beyond its metric list.
type SessionConfig struct {
	// Calibration is shared by every metric without an override.
	Calibration utils.CalibrationConfig
	// Overrides maps a metric ID to its own calibration.
	Overrides     map[string]utils.CalibrationConfig
	Precision     int
	MinConfidence float64
}

// metricState is everything the session tracks for one metric.
type metricState struct {
	def     models.MetricDefinition
	cal     *measure.Calibrator
	history []models.RawSample
	values  []float64
}

// Session aggregates one capture run: it feeds each detection through every
// registered metric, keeps the live rolling value and the full sample
// history, and produces the final full-session means on Stop.
//
// A Session is driven from a single goroutine (the capture loop); the
// accessors are safe to call from others.
type Session struct {
	mu sync.Mutex

	id        string
	now       func() time.Time
	startedAt time.Time
	precision int
	opts      measure.Options

	order   []string
	metrics map[string]*metricState
	filters *measure.FilterSet

	observers []SampleObserver

	started bool
	stopped bool
	finals  []models.FinalMeasurement

	log *utils.Logger
}

// NewSession validates calibration and builds per-metric state. Calibration
// errors are fatal here so that nothing is measured without a scale.
func NewSession(defs []models.MetricDefinition, cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if len(defs) == 0 {
		return nil, errors.New("session needs at least one metric")
	}

	shared, err := newCalibrator(cfg.Calibration)
	if err != nil {
		return nil, fmt.Errorf("session calibration: %w", err)
	}

	s := &Session{
		now:       time.Now,
		precision: cfg.Precision,
		opts:      measure.Options{MinConfidence: cfg.MinConfidence},
		metrics:   make(map[string]*metricState, len(defs)),
		log:       utils.L().WithPrefix("session"),
	}
	windows := make(map[string]int, len(defs))
	for _, d := range defs {
		if _, dup := s.metrics[d.ID]; dup {
			return nil, fmt.Errorf("duplicate metric %q", d.ID)
		}
		cal := shared
		if o, ok := cfg.Overrides[d.ID]; ok {
			if cal, err = newCalibrator(o); err != nil {
				return nil, fmt.Errorf("metric %s calibration: %w", d.ID, err)
			}
		}
		s.order = append(s.order, d.ID)
		s.metrics[d.ID] = &metricState{def: d, cal: cal}
		windows[d.ID] = d.Window
	}
	s.filters = measure.NewFilterSet(windows, cfg.Precision)
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = utils.NewSessionID()
	}
	return s, nil
}

// NewSessionFromConfig builds a session for the enabled metrics of cfg.
func NewSessionFromConfig(cfg *utils.MeasureConfig, opts ...SessionOption) (*Session, error) {
	sc := SessionConfig{
		Calibration:   cfg.Calibration,
		Overrides:     make(map[string]utils.CalibrationConfig),
		Precision:     cfg.Smoothing.Digits(),
		MinConfidence: cfg.Extractor.MinConfidence,
	}
	var defs []models.MetricDefinition
	for _, m := range cfg.EnabledMetrics() {
		defs = append(defs, m.MetricDefinition)
		if m.Calibration != nil {
			sc.Overrides[m.ID] = *m.Calibration
		}
	}
	return NewSession(defs, sc, opts...)
}

func newCalibrator(c utils.CalibrationConfig) (*measure.Calibrator, error) {
	return measure.NewCalibrator(c.Mode, c.ReferencePixels, c.ReferenceCm, c.Scale)
}

// Start opens the session. Frames handed to OnFrame before Start are ignored.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.startedAt = s.now()
	s.log.Info("session %s started  (metrics=%d)", s.id, len(s.order))
}

// OnFrame updates every metric from one detection and returns the smoothed
// values that changed. A nil or empty detection changes nothing.
func (s *Session) OnFrame(f *models.Frame, det *models.Detection) map[string]models.SmoothedValue {
	out := make(map[string]models.SmoothedValue)
	if f == nil || det.Empty() {
		return out
	}

	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return out
	}

	debug := s.log.Enabled(utils.DEBUG)
	var records []models.SampleRecord
	for _, id := range s.order {
		m := s.metrics[id]
		raw, ok := s.measure(m, f, det)
		if !ok {
			continue
		}
		smoothed := s.filters.Push(id, raw.ValueCm)
		m.history = append(m.history, raw)
		m.values = append(m.values, raw.ValueCm)
		out[id] = models.SmoothedValue{MetricID: id, Seq: f.Seq, ValueCm: smoothed}
		if debug {
			s.log.Debug("frame %d: %s pixels=%.2f raw=%.2fcm smoothed=%.2fcm", f.Seq, id, raw.Pixels, raw.ValueCm, smoothed)
		}
		records = append(records, models.SampleRecord{SessionID: s.id, Raw: raw, Smoothed: smoothed})
	}
	observers := s.observers
	s.mu.Unlock()

	for _, rec := range records {
		for _, o := range observers {
			o(rec)
		}
	}
	return out
}

// measure computes one metric's sample for a frame. Every failure here is
// per-frame and recoverable, so it is logged and the metric skipped.
func (s *Session) measure(m *metricState, f *models.Frame, det *models.Detection) (models.RawSample, bool) {
	var raw models.RawSample
	if profile, ok := m.cal.Profile(); ok {
		var err error
		if raw, err = measure.Compute(m.def, det.Keypoints, f.Width, f.Height, profile, s.opts); err != nil {
			s.log.Debug("frame %d: %v", f.Seq, err)
			return models.RawSample{}, false
		}
	} else {
		// First-frame calibration: this reading may become the reference.
		px, err := measure.PixelMagnitude(m.def, det.Keypoints, f.Width, f.Height, s.opts)
		if err != nil {
			s.log.Debug("frame %d: %v", f.Seq, err)
			return models.RawSample{}, false
		}
		profile, err := m.cal.Resolve(px)
		if err != nil {
			s.log.Debug("frame %d: metric %s: %v", f.Seq, m.def.ID, err)
			return models.RawSample{}, false
		}
		s.log.Info("metric %s calibrated from frame %d  (mode=%s, %.4f cm/px)", m.def.ID, f.Seq, m.cal.Mode(), profile.ScaleCmPerPixel)
		raw = measure.Sample(m.def, px, profile)
	}
	if math.IsNaN(raw.ValueCm) || math.IsInf(raw.ValueCm, 0) {
		s.log.Debug("frame %d: metric %s: non-finite value dropped", f.Seq, m.def.ID)
		return models.RawSample{}, false
	}
	raw.Seq = f.Seq
	return raw, true
}

// Stop ends the session and returns one FinalMeasurement per metric, in
// registration order. Each final value is the mean of the metric's whole
// history. Calling Stop again returns the same result.
func (s *Session) Stop() []models.FinalMeasurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return append([]models.FinalMeasurement(nil), s.finals...)
	}
	s.stopped = true

	s.finals = make([]models.FinalMeasurement, 0, len(s.order))
	for _, id := range s.order {
		m := s.metrics[id]
		fm := models.FinalMeasurement{MetricID: id, Label: m.def.Label, Samples: len(m.values)}
		if len(m.values) > 0 {
			fm.Value = stat.Mean(m.values, nil)
			fm.Available = true
		}
		s.finals = append(s.finals, fm)
	}
	s.log.Info("session %s stopped", s.id)
	return append([]models.FinalMeasurement(nil), s.finals...)
}

// ID returns the session's unique ID.
func (s *Session) ID() string { return s.id }

// StartedAt returns when Start was called.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Definitions returns the registered metrics in order.
func (s *Session) Definitions() []models.MetricDefinition {
	out := make([]models.MetricDefinition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.metrics[id].def)
	}
	return out
}

// Precision is the number of decimals live and persisted values use.
func (s *Session) Precision() int { return s.precision }

// Live returns a metric's current rolling-window value.
func (s *Session) Live(metricID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Value(metricID)
}

// Final returns a metric's final measurement; ok is false before Stop or
// for an unknown metric.
func (s *Session) Final(metricID string) (models.FinalMeasurement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		return models.FinalMeasurement{}, false
	}
	for _, f := range s.finals {
		if f.MetricID == metricID {
			return f, true
		}
	}
	return models.FinalMeasurement{}, false
}

// History returns a copy of a metric's raw samples.
func (s *Session) History(metricID string) []models.RawSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[metricID]
	if !ok {
		return nil
	}
	return append([]models.RawSample(nil), m.history...)
}

// Calibration returns the profile a metric is using, once resolved.
func (s *Session) Calibration(metricID string) (models.CalibrationProfile, bool) {
	m, ok := s.metrics[metricID]
	if !ok {
		return models.CalibrationProfile{}, false
	}
	return m.cal.Profile()
}
