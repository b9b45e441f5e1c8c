package measure

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"body-measure/models"
)

// DefaultPrecision is the number of decimals live values are rounded to.
const DefaultPrecision = 2

// StabilityFilter smooths a noisy per-frame series with a rolling mean over
// the most recent window values. A window of 0 (or less) keeps every value,
// so the output is the running session mean.
type StabilityFilter struct {
	window    int
	precision int

	// ring holds up to window values; next is the slot the next push
	// overwrites once the ring is full.
	ring []float64
	next int
}

// NewStabilityFilter creates a filter for the given window and rounding.
func NewStabilityFilter(window, precision int) *StabilityFilter {
	f := &StabilityFilter{window: window, precision: precision}
	if window > 0 {
		f.ring = make([]float64, 0, window)
	}
	return f
}

// Push adds a raw value, evicting the oldest one once the window is full,
// and returns the rounded mean of what is left.
func (f *StabilityFilter) Push(v float64) float64 {
	switch {
	case f.window <= 0 || len(f.ring) < f.window:
		f.ring = append(f.ring, v)
	default:
		f.ring[f.next] = v
		f.next = (f.next + 1) % f.window
	}
	return models.Round(stat.Mean(f.ring, nil), f.precision)
}

// Value returns the current smoothed value; ok is false before any push.
func (f *StabilityFilter) Value() (float64, bool) {
	if len(f.ring) == 0 {
		return 0, false
	}
	return models.Round(stat.Mean(f.ring, nil), f.precision), true
}

// Len is the number of values currently inside the window.
func (f *StabilityFilter) Len() int { return len(f.ring) }

// Reset drops every value.
func (f *StabilityFilter) Reset() {
	f.ring = f.ring[:0]
	f.next = 0
}

// FilterSet keeps one StabilityFilter per metric ID.
type FilterSet struct {
	mu        sync.Mutex
	precision int
	windows   map[string]int
	filters   map[string]*StabilityFilter
}

// NewFilterSet builds a set from per-metric window sizes. Metrics not listed
// get an unbounded window.
func NewFilterSet(windows map[string]int, precision int) *FilterSet {
	w := make(map[string]int, len(windows))
	for k, v := range windows {
		w[k] = v
	}
	return &FilterSet{
		precision: precision,
		windows:   w,
		filters:   make(map[string]*StabilityFilter),
	}
}

// Push routes a raw value to the metric's filter and returns its new value.
func (s *FilterSet) Push(metricID string, v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[metricID]
	if !ok {
		f = NewStabilityFilter(s.windows[metricID], s.precision)
		s.filters[metricID] = f
	}
	return f.Push(v)
}

// Value returns the metric's current smoothed value.
func (s *FilterSet) Value(metricID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[metricID]
	if !ok {
		return 0, false
	}
	return f.Value()
}
