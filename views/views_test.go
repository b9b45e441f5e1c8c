package views

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"body-measure/models"
	"body-measure/utils"
)

func TestMeasurementLog_AppendsLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "measurement.txt")
	require.NoError(t, os.WriteFile(path, []byte("Arm Length: 60.00 cm\n"), 0o644))

	l := NewMeasurementLog(path, 2)
	require.NoError(t, l.Append("Shoulder Width", 41.236))
	require.NoError(t, l.Append("Final Height", 172.5))

	// A second writer on the same record never clobbers the first.
	require.NoError(t, NewMeasurementLog(path, 2).Append("Waist Circumference", 81))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Arm Length: 60.00 cm\n"+
			"Shoulder Width: 41.24 cm\n"+
			"Final Height: 172.50 cm\n"+
			"Waist Circumference: 81.00 cm\n",
		string(data))
}

func TestMeasurementLog_IOFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing-dir", "measurement.txt")
	err := NewMeasurementLog(path, 2).Append("Arm Length", 61)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIOFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var iof *models.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.Equal(t, "open", iof.Op)
	assert.Equal(t, path, iof.Path)
}

func TestCSVWriter_SamplesExport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ExportSamples.FileName())
	w, err := NewCSVWriter(path, ExportSamples, 0, true)
	require.NoError(t, err)

	rec := models.SampleRecord{
		SessionID: "s1",
		Raw:       models.RawSample{MetricID: "arm_length", Seq: 4, Pixels: 200, ValueCm: 60},
		Smoothed:  59.5,
	}
	require.NoError(t, w.WriteRow(rec.CSVRow()))
	assert.Error(t, w.WriteRow([]string{"too", "short"}))
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(1), w.Rows())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header(ExportSamples), rows[0])
	assert.Equal(t, []string{"s1", "4", "arm_length", "200.000", "60.0000", "59.5000"}, rows[1])
}

func TestValidateRow(t *testing.T) {
	t.Parallel()

	fin := models.FinalRecord{SessionID: "s", Final: models.FinalMeasurement{MetricID: "chest", Label: "Chest"}, Precision: 2}
	require.NoError(t, ValidateRow(ExportFinals, fin.CSVRow()))
	assert.Equal(t, "", fin.CSVRow()[4], "unavailable metrics have no value")
	assert.Error(t, ValidateRow(ExportKind(42), nil))
	assert.Equal(t, "finals.csv", ExportFinals.FileName())
}

func TestBuildOverlay(t *testing.T) {
	t.Parallel()

	defs := []models.MetricDefinition{
		{ID: "shoulder_width", Landmarks: []models.Landmark{models.LeftShoulder, models.RightShoulder}},
		{ID: "chest", Landmarks: []models.Landmark{models.LeftShoulder, models.RightShoulder}, OffsetY: 50},
		{ID: "arm_length", Landmarks: []models.Landmark{models.LeftShoulder, models.LeftWrist}},
	}
	det := &models.Detection{Keypoints: models.NewKeypoints(
		models.Keypoint{Name: models.LeftShoulder, X: 0.6, Y: 0.25},
		models.Keypoint{Name: models.RightShoulder, X: 0.4, Y: 0.25},
	)}

	o := BuildOverlay(defs, det, 100, 100, []LiveValue{{Label: "Shoulder Width", ValueCm: 41.5}})
	assert.Len(t, o.Points, 2, "shared landmarks are drawn once; the wrist is missing")
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "chest", o.Lines[1].MetricID)
	assert.InDelta(t, 75.0, o.Lines[1].From.Y, 1e-9)
	assert.Equal(t, []string{"Shoulder Width: 41.50 cm"}, o.Text)

	empty := BuildOverlay(defs, nil, 100, 100, nil)
	assert.Empty(t, empty.Points)
	assert.Empty(t, empty.Lines)
}

func TestConsoleDisplay_Throttles(t *testing.T) {
	var buf bytes.Buffer
	utils.L().SetOutput(&buf)
	defer utils.L().SetOutput(os.Stdout)

	d := NewConsoleDisplay(3)
	o := Overlay{Points: []OverlayPoint{{Landmark: models.Nose}}, Text: []string{"Final Height: 170.00 cm"}}
	for i := 0; i < 7; i++ {
		d.Render(&models.Frame{Seq: uint64(i)}, o)
	}
	assert.Equal(t, uint64(7), d.Rendered())
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("Final Height")))
}

func TestSessionChart_Render(t *testing.T) {
	t.Parallel()

	defs := []models.MetricDefinition{{ID: "height", Label: "Final Height"}, {ID: "waist", Label: "Waist"}}
	c := NewSessionChart(defs)
	for i := 0; i < 30; i++ {
		v := 170 + float64(i%5)
		c.Observe(models.SampleRecord{
			Raw:      models.RawSample{MetricID: "height", Seq: uint64(i), ValueCm: v},
			Smoothed: 172,
		})
	}

	dir := filepath.Join(t.TempDir(), "charts")
	files, err := c.Render(dir, "session_x", []models.FinalMeasurement{
		{MetricID: "height", Label: "Final Height", Samples: 30, Value: 172, Available: true},
		{MetricID: "waist", Label: "Waist"},
	})
	require.NoError(t, err)
	require.Len(t, files, 1, "metrics without samples get no chart")
	assert.Equal(t, filepath.Join(dir, "session_x_height.png"), files[0])

	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
