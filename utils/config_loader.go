package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"body-measure/models"
)

// ─── Calibration / metrics ──────────────────────────────────────────────

type CalibrationConfig struct {
	Mode            models.CalibrationMode `yaml:"mode"`
	ReferenceCm     float64                `yaml:"reference_cm"`
	ReferencePixels float64                `yaml:"reference_pixels"` // static mode only
	Scale           float64                `yaml:"scale"`            // fixed mode only (cm per pixel)
}

type MetricConfig struct {
	models.MetricDefinition `yaml:",inline"`
	Enabled                 *bool              `yaml:"enabled"`
	Calibration             *CalibrationConfig `yaml:"calibration"` // overrides the session calibration
}

// IsEnabled treats a missing enabled key as true.
func (m MetricConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

type SmoothingConfig struct {
	Precision     *int `yaml:"precision"` // decimals; 0 rounds to whole centimetres
	DefaultWindow int  `yaml:"default_window"`
}

// Digits returns the configured precision, or 2 when it is unset.
func (s SmoothingConfig) Digits() int {
	if s.Precision == nil {
		return defaultPrecision
	}
	return *s.Precision
}

// ─── Collaborators ──────────────────────────────────────────────────────

type SourceConfig struct {
	Kind          string `yaml:"kind"` // "replay" or "simulate"
	ReplayPath    string `yaml:"replay_path"`
	FPS           int    `yaml:"fps"` // 0 replays as fast as possible
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Format        string `yaml:"format"`
	ChannelBuffer int    `yaml:"channel_buffer"`
}

type ExtractorConfig struct {
	Kind          string  `yaml:"kind"` // "embedded" or "http"
	URL           string  `yaml:"url"`
	TimeoutMs     int     `yaml:"timeout_ms"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type NarrationConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Command      []string `yaml:"command"` // e.g. ["espeak"]; empty logs the prompts
	Prompts      []string `yaml:"prompts"`
	WaitForReady bool     `yaml:"wait_for_ready"`
}

type DisplayConfig struct {
	EveryNFrames int `yaml:"every_n_frames"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type SimulationConfig struct {
	DurationSeconds int `yaml:"duration_seconds"`
}

// ─── Storage ────────────────────────────────────────────────────────────

type CSVStorageConfig struct {
	FlushIntervalMs int  `yaml:"flush_interval_ms"`
	BufferSizeKB    int  `yaml:"buffer_size_kb"`
	WriteHeader     bool `yaml:"write_header"`
}

type StorageConfig struct {
	RecordPath    string           `yaml:"record_path"`
	SamplesDir    string           `yaml:"samples_dir"` // empty disables the per-session CSV
	SQLitePath    string           `yaml:"sqlite_path"` // empty disables the database
	SessionPrefix string           `yaml:"session_prefix"`
	CSV           CSVStorageConfig `yaml:"csv"`
}

// MeasureConfig is the top-level structure for measure.yaml.
type MeasureConfig struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Metrics     []MetricConfig    `yaml:"metrics"`
	Smoothing   SmoothingConfig   `yaml:"smoothing"`
	Storage     StorageConfig     `yaml:"storage"`
	Source      SourceConfig      `yaml:"source"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Narration   NarrationConfig   `yaml:"narration"`
	Display     DisplayConfig     `yaml:"display"`
	Report      ReportConfig      `yaml:"report"`
	Logging     LoggingConfig     `yaml:"logging"`
	Simulation  SimulationConfig  `yaml:"simulation"`
}

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadMeasureConfig reads and parses measure.yaml, fills defaults and
// validates the result.
func LoadMeasureConfig(path string) (*MeasureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read measure config: %w", err)
	}
	return ParseMeasureConfig(data)
}

// ParseMeasureConfig parses YAML bytes, fills defaults and validates.
func ParseMeasureConfig(data []byte) (*MeasureConfig, error) {
	var cfg MeasureConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse measure config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid measure config: %w", err)
	}
	return &cfg, nil
}

// DefaultMeasureConfig returns the configuration used when no file is given.
func DefaultMeasureConfig() *MeasureConfig {
	cfg := &MeasureConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset option.
func (c *MeasureConfig) ApplyDefaults() {
	if c.Calibration.Mode == "" {
		c.Calibration = CalibrationConfig{Mode: models.CalibrationStatic, ReferenceCm: 30, ReferencePixels: 100}
	}
	if len(c.Metrics) == 0 {
		c.Metrics = DefaultMetrics()
	}
	if c.Smoothing.Precision == nil {
		c.Smoothing.Precision = intPtr(defaultPrecision)
	}
	for i := range c.Metrics {
		m := &c.Metrics[i]
		if m.Window == 0 {
			m.Window = c.Smoothing.DefaultWindow
		}
		if m.Geometry == "" {
			m.Geometry = models.GeometryDistance
		}
		if m.Label == "" {
			m.Label = m.ID
		}
	}

	if c.Storage.RecordPath == "" {
		c.Storage.RecordPath = "measurement.txt"
	}
	if c.Storage.SessionPrefix == "" {
		c.Storage.SessionPrefix = "session"
	}
	if c.Storage.CSV.BufferSizeKB == 0 {
		c.Storage.CSV.BufferSizeKB = 64
	}
	if c.Storage.CSV.FlushIntervalMs == 0 {
		c.Storage.CSV.FlushIntervalMs = 500
	}

	if c.Source.Kind == "" {
		c.Source.Kind = "simulate"
	}
	if c.Source.Width == 0 {
		c.Source.Width = 1280
	}
	if c.Source.Height == 0 {
		c.Source.Height = 720
	}
	if c.Source.Kind == "simulate" && c.Source.FPS == 0 {
		c.Source.FPS = 30
	}
	if c.Source.Format == "" {
		c.Source.Format = "MJPEG"
	}

	if c.Extractor.Kind == "" {
		c.Extractor.Kind = "embedded"
	}
	if c.Extractor.TimeoutMs == 0 {
		c.Extractor.TimeoutMs = 2000
	}

	if len(c.Narration.Prompts) == 0 {
		c.Narration.Prompts = []string{
			"Please come into the frame and stand at least 180 centimeters away from the camera.",
			"I am about to measure.",
			"Please stand still for a moment.",
		}
	}
	if c.Display.EveryNFrames == 0 {
		c.Display.EveryNFrames = 15
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks option combinations that defaults cannot repair.
// Calibration values themselves are validated when the session starts.
func (c *MeasureConfig) Validate() error {
	if c.Smoothing.Digits() < 0 {
		return fmt.Errorf("smoothing.precision must be >= 0")
	}
	seen := make(map[string]bool, len(c.Metrics))
	for i, m := range c.Metrics {
		if m.ID == "" {
			return fmt.Errorf("metrics[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("metrics[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if len(m.Landmarks) == 0 {
			return fmt.Errorf("metric %s: at least one landmark is required", m.ID)
		}
		for _, l := range m.Landmarks {
			if !l.Valid() {
				return fmt.Errorf("metric %s: unknown landmark %q", m.ID, l)
			}
		}
		if m.Window < 0 {
			return fmt.Errorf("metric %s: window must be >= 0", m.ID)
		}
		if m.Multiplier < 0 {
			return fmt.Errorf("metric %s: multiplier must be >= 0", m.ID)
		}
	}
	switch c.Source.Kind {
	case "simulate":
	case "replay":
		if c.Source.ReplayPath == "" {
			return fmt.Errorf("source.replay_path is required for replay sources")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	switch c.Extractor.Kind {
	case "embedded":
	case "http":
		if c.Extractor.URL == "" {
			return fmt.Errorf("extractor.url is required for http extractors")
		}
	default:
		return fmt.Errorf("unknown extractor.kind %q", c.Extractor.Kind)
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// EnabledMetrics returns the metrics not switched off in config.
func (c *MeasureConfig) EnabledMetrics() []MetricConfig {
	var out []MetricConfig
	for _, m := range c.Metrics {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}
	return out
}

// SelectMetrics keeps only the listed metric IDs, in config order.
func (c *MeasureConfig) SelectMetrics(ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var kept []MetricConfig
	for _, m := range c.Metrics {
		if want[m.ID] {
			kept = append(kept, m)
			delete(want, m.ID)
		}
	}
	for id := range want {
		return fmt.Errorf("unknown metric %q", id)
	}
	c.Metrics = kept
	return nil
}

const defaultPrecision = 2

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

// DefaultMetrics reproduces the six stand-alone measurement tools this
// program replaces, including their per-metric scales and windows.
func DefaultMetrics() []MetricConfig {
	return []MetricConfig{
		{
			MetricDefinition: models.MetricDefinition{
				ID: "arm_length", Label: "Arm Length",
				Landmarks: []models.Landmark{models.LeftShoulder, models.LeftWrist},
				Geometry:  models.GeometryDistance, Multiplier: models.DirectLength,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationStatic, ReferenceCm: 30, ReferencePixels: 100},
		},
		{
			MetricDefinition: models.MetricDefinition{
				ID: "shoulder_width", Label: "Shoulder Width",
				Landmarks: []models.Landmark{models.LeftShoulder, models.RightShoulder},
				Geometry:  models.GeometryDistance, Multiplier: models.DirectLength,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationStatic, ReferenceCm: 30, ReferencePixels: 100},
		},
		{
			MetricDefinition: models.MetricDefinition{
				ID: "chest", Label: "Average Chest Measurement",
				Landmarks: []models.Landmark{models.LeftShoulder, models.RightShoulder},
				Geometry:  models.GeometryOffsetDistance, OffsetY: 50,
				Multiplier: models.CircumferenceFromWidth,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationFirstFrame, ReferenceCm: 30},
		},
		{
			MetricDefinition: models.MetricDefinition{
				ID: "waist", Label: "Waist Circumference",
				Landmarks: []models.Landmark{models.LeftHip, models.RightHip},
				Geometry:  models.GeometryDistance, Multiplier: models.DirectLength,
				Window: 17,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationStatic, ReferenceCm: 80, ReferencePixels: 100},
		},
		{
			MetricDefinition: models.MetricDefinition{
				ID: "height", Label: "Final Height",
				Landmarks: []models.Landmark{models.Nose, models.LeftAnkle},
				Geometry:  models.GeometryDistance, Multiplier: models.DirectLength,
				Window: 20,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationFixed, Scale: 0.5},
		},
		{
			MetricDefinition: models.MetricDefinition{
				ID: "lower_body_length", Label: "Final Lower Body Length",
				Landmarks: []models.Landmark{models.LeftHip, models.LeftAnkle},
				Geometry:  models.GeometryDistance, Multiplier: models.DirectLength,
				Window: 17,
			},
			Enabled:     boolPtr(true),
			Calibration: &CalibrationConfig{Mode: models.CalibrationFixed, Scale: 0.5},
		},
	}
}
