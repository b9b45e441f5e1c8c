package models

// GeometryKind selects how a metric turns keypoints into a pixel magnitude.
type GeometryKind string

const (
	// GeometryDistance is the Euclidean distance between two landmarks.
	GeometryDistance GeometryKind = "distance"
	// GeometryOffsetDistance shifts both landmarks by (OffsetX, OffsetY)
	// pixels before measuring, e.g. a chest line below the shoulders.
	GeometryOffsetDistance GeometryKind = "offset_distance"
	// GeometryPerimeter is the length of the closed polyline through
	// three or more landmarks.
	GeometryPerimeter GeometryKind = "perimeter"
)

// Circumference multipliers.
const (
	DirectLength = 1.0
	// CircumferenceFromWidth approximates a girth as twice the frontal width.
	CircumferenceFromWidth = 2.0
)

// MetricDefinition describes one body measurement.
type MetricDefinition struct {
	ID         string       `json:"id" yaml:"id"`
	Label      string       `json:"label" yaml:"label"`
	Landmarks  []Landmark   `json:"landmarks" yaml:"landmarks"`
	Geometry   GeometryKind `json:"geometry" yaml:"geometry"`
	OffsetX    float64      `json:"offset_x,omitempty" yaml:"offset_x"`
	OffsetY    float64      `json:"offset_y,omitempty" yaml:"offset_y"`
	Multiplier float64      `json:"multiplier" yaml:"multiplier"`
	// Window is the rolling-window size for the live value; 0 averages the
	// whole session.
	Window int `json:"window" yaml:"window"`
}

// EffectiveMultiplier returns Multiplier, treating 0 as a direct length.
func (m MetricDefinition) EffectiveMultiplier() float64 {
	if m.Multiplier == 0 {
		return DirectLength
	}
	return m.Multiplier
}
