package models

import (
	"fmt"
	"strconv"
)

// RawSample is one metric's instantaneous value for one frame.
type RawSample struct {
	MetricID string  `json:"metric_id"`
	Seq      uint64  `json:"seq"`
	Pixels   float64 `json:"pixels"`
	ValueCm  float64 `json:"value_cm"`
}

// SmoothedValue is the rolling-window mean after a sample was pushed.
type SmoothedValue struct {
	MetricID string  `json:"metric_id"`
	Seq      uint64  `json:"seq"`
	ValueCm  float64 `json:"value_cm"`
}

// SampleRecord pairs a raw sample with the live value it produced, for export.
type SampleRecord struct {
	SessionID string
	Raw       RawSample
	Smoothed  float64
}

// CSVHeader returns the ordered column names for the samples CSV.
func (SampleRecord) CSVHeader() []string {
	return []string{"session_id", "seq", "metric_id", "pixels", "raw_cm", "smoothed_cm"}
}

// CSVRow serialises one sample into a CSV-compatible string slice.
func (r *SampleRecord) CSVRow() []string {
	return []string{
		r.SessionID,
		utoa64(r.Raw.Seq),
		r.Raw.MetricID,
		ftoa(r.Raw.Pixels, 3),
		ftoa(r.Raw.ValueCm, 4),
		ftoa(r.Smoothed, 4),
	}
}

// FinalMeasurement is the full-session result for one metric.
// Available is false when the session recorded no samples for it.
type FinalMeasurement struct {
	MetricID  string  `json:"metric_id"`
	Label     string  `json:"label"`
	Samples   int     `json:"samples"`
	Value     float64 `json:"value_cm"`
	Available bool    `json:"available"`
}

// Rounded returns Value rounded to prec decimals.
func (f FinalMeasurement) Rounded(prec int) float64 {
	return Round(f.Value, prec)
}

// Format renders the record line body, e.g. "Arm Length: 61.20 cm".
func (f FinalMeasurement) Format(prec int) string {
	if !f.Available {
		return fmt.Sprintf("%s: no measurement available", f.Label)
	}
	return fmt.Sprintf("%s: %.*f cm", f.Label, prec, f.Rounded(prec))
}

// FinalRecord is a FinalMeasurement tagged for the per-session CSV.
type FinalRecord struct {
	SessionID string
	Final     FinalMeasurement
	Precision int
}

// CSVHeader returns the ordered column names for the finals CSV.
func (FinalRecord) CSVHeader() []string {
	return []string{"session_id", "metric_id", "label", "samples", "value_cm", "available"}
}

// CSVRow serialises one final value; unavailable metrics leave value_cm empty.
func (r *FinalRecord) CSVRow() []string {
	val := ""
	if r.Final.Available {
		val = ftoa(r.Final.Rounded(r.Precision), r.Precision)
	}
	return []string{
		r.SessionID,
		r.Final.MetricID,
		r.Final.Label,
		strconv.Itoa(r.Final.Samples),
		val,
		strconv.FormatBool(r.Final.Available),
	}
}
