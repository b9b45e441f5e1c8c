package models

import (
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    float64
		prec int
		want float64
	}{
		{41.236, 2, 41.24},
		{41.235001, 2, 41.24},
		{-2.345, 1, -2.3},
		{10, 0, 10},
		{1.23456, -1, 1.23456},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("%v@%d", tt.v, tt.prec), func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Round(tt.v, tt.prec), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}

func TestFinalMeasurement_Format(t *testing.T) {
	t.Parallel()

	f := FinalMeasurement{MetricID: "arm_length", Label: "Arm Length", Samples: 3, Value: 61.2049, Available: true}
	assert.Equal(t, "Arm Length: 61.20 cm", f.Format(2))
	assert.Equal(t, 61.2, f.Rounded(1))

	none := FinalMeasurement{MetricID: "waist", Label: "Waist Circumference"}
	assert.Equal(t, "Waist Circumference: no measurement available", none.Format(2))
}

func TestRecords_CSVRowsMatchHeaders(t *testing.T) {
	t.Parallel()

	sample := &SampleRecord{SessionID: "s", Raw: RawSample{MetricID: "height", Seq: 9, Pixels: 200, ValueCm: 100}, Smoothed: 99.5}
	assert.Len(t, sample.CSVRow(), len(sample.CSVHeader()))
	assert.Equal(t, "9", sample.CSVRow()[1])

	final := &FinalRecord{SessionID: "s", Final: FinalMeasurement{MetricID: "height", Label: "Final Height", Samples: 4, Value: 170.456, Available: true}, Precision: 1}
	assert.Equal(t, []string{"s", "height", "Final Height", "4", "170.5", "true"}, final.CSVRow())
	assert.Len(t, final.CSVHeader(), 6)
}

func TestIOFailure(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("persist: %w", &IOFailure{Op: "open", Path: "/nope/measurement.txt", Err: os.ErrPermission})
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, os.ErrPermission)

	var io *IOFailure
	require.True(t, errors.As(err, &io))
	assert.Equal(t, "open", io.Op)
	assert.Contains(t, err.Error(), "/nope/measurement.txt")
}

func TestLandmarks(t *testing.T) {
	t.Parallel()

	assert.Len(t, PoseLandmarks, 33)
	assert.Equal(t, LeftWrist, PoseLandmarks[15])
	assert.Equal(t, LeftAnkle, PoseLandmarks[27])
	assert.True(t, LeftHip.Valid())
	assert.False(t, Landmark("left_tail").Valid())

	kps := NewKeypoints(Keypoint{Name: Nose, X: 0.5, Y: 0.25, Confidence: 1})
	x, y := kps[Nose].Pixel(640, 480)
	assert.Equal(t, 320.0, x)
	assert.Equal(t, 120.0, y)

	var det *Detection
	assert.True(t, det.Empty())
	assert.True(t, (&Detection{}).Empty())
	assert.False(t, (&Detection{Keypoints: kps}).Empty())
}

func TestEffectiveMultiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DirectLength, MetricDefinition{}.EffectiveMultiplier())
	assert.Equal(t, CircumferenceFromWidth, MetricDefinition{Multiplier: CircumferenceFromWidth}.EffectiveMultiplier())
}

func TestCalibrationProfile_Centimetres(t *testing.T) {
	t.Parallel()

	p := CalibrationProfile{Mode: CalibrationStatic, ScaleCmPerPixel: 0.3}
	assert.InDelta(t, 30.0, p.Centimetres(100), 1e-9)
}
