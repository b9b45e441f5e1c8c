package controller

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"body-measure/models"
	"body-measure/services/ingest"
	"body-measure/utils"
	"body-measure/views"
)

// chanSource is a FrameSource fed directly by the test.
type chanSource struct {
	ch  chan *models.Frame
	err error
}

func newChanSource(frames ...*models.Frame) *chanSource {
	s := &chanSource{ch: make(chan *models.Frame, len(frames)+1)}
	for _, f := range frames {
		s.ch <- f
	}
	return s
}

func (s *chanSource) Start(context.Context)        {}
func (s *chanSource) Frames() <-chan *models.Frame { return s.ch }
func (s *chanSource) Err() error                   { return s.err }
func (s *chanSource) Stats() (uint64, uint64)      { return uint64(len(s.ch)), 0 }

// spyDisplay records overlays and can run a hook per render.
type spyDisplay struct {
	mu       sync.Mutex
	overlays []views.Overlay
	onRender func(n int)
}

func (d *spyDisplay) Render(_ *models.Frame, o views.Overlay) {
	d.mu.Lock()
	d.overlays = append(d.overlays, o)
	n := len(d.overlays)
	d.mu.Unlock()
	if d.onRender != nil {
		d.onRender(n)
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, *models.Frame) (*models.Detection, error) {
	return nil, errors.New("model not loaded")
}

func detectedFrame(seq uint64, px float64) *models.Frame {
	f, det := frameWithHeight(seq, px)
	f.Detection = det
	return f
}

const replayDoc = `{"width":100,"height":100,"landmarks":[{"name":"nose","x":0,"y":0},{"name":"left_ankle","x":0,"y":0.4}]}
{"width":100,"height":100}
{"width":100,"height":100,"landmarks":[{"name":"nose","x":0,"y":0},{"name":"left_ankle","x":0,"y":0.6}]}
`

func TestCapture_ReplayEndOfStreamFinalizes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := ingest.NewReplayReader(utils.SourceConfig{}, strings.NewReader(replayDoc))
	src.Start(ctx)

	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale, Precision: 2})
	require.NoError(t, err)
	disp := &spyDisplay{}

	sum := NewCaptureController(src, ingest.EmbeddedExtractor{}, sess, NewStopSignal(), WithDisplay(disp)).Run(ctx)

	assert.Equal(t, EndOfStream, sum.EndReason)
	assert.ErrorIs(t, sum.SourceErr, ingest.ErrFrameRead)
	assert.Equal(t, uint64(3), sum.Frames)
	assert.Equal(t, uint64(2), sum.Detections)
	assert.Equal(t, uint64(2), sum.Measured)

	require.Len(t, disp.overlays, 3)
	assert.Empty(t, disp.overlays[1].Points, "no pose, nothing to draw")
	assert.Equal(t, []string{"Final Height: 50.00 cm"}, disp.overlays[2].Text)

	final := sess.Stop()[0]
	assert.True(t, final.Available)
	assert.InDelta(t, 50.0, final.Value, 1e-9)
}

func TestCapture_MalformedReplayIsSourceError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := ingest.NewReplayReader(utils.SourceConfig{}, strings.NewReader("{not json}\n"))
	src.Start(ctx)

	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale})
	require.NoError(t, err)

	sum := NewCaptureController(src, ingest.EmbeddedExtractor{}, sess, NewStopSignal()).Run(ctx)
	assert.Equal(t, EndSourceError, sum.EndReason)
	assert.ErrorIs(t, sum.SourceErr, ingest.ErrFrameRead)
	assert.Zero(t, sum.Frames)
	assert.False(t, sess.Stop()[0].Available)
}

func TestCapture_StopSignalEndsAfterCurrentFrame(t *testing.T) {
	t.Parallel()

	src := newChanSource(detectedFrame(0, 10), detectedFrame(1, 20), detectedFrame(2, 30), detectedFrame(3, 40))
	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale})
	require.NoError(t, err)

	stop := NewStopSignal()
	disp := &spyDisplay{onRender: func(n int) {
		if n == 2 {
			stop.Trigger("test")
		}
	}}

	sum := NewCaptureController(src, ingest.EmbeddedExtractor{}, sess, stop, WithDisplay(disp)).Run(context.Background())

	assert.Equal(t, EndStopped, sum.EndReason)
	assert.Equal(t, uint64(2), sum.Frames, "the frame that triggered stop completes, no more are read")
	assert.Equal(t, "test", stop.Reason())
	assert.Len(t, sess.History("height"), 2)
}

func TestCapture_CancelledContext(t *testing.T) {
	t.Parallel()

	src := newChanSource()
	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sum := NewCaptureController(src, ingest.EmbeddedExtractor{}, sess, NewStopSignal()).Run(ctx)
	assert.Equal(t, EndCancelled, sum.EndReason)
	assert.Zero(t, sum.Frames)
}

func TestCapture_WaitsForReadyBeforeMeasuring(t *testing.T) {
	t.Parallel()

	src := newChanSource(detectedFrame(0, 10), detectedFrame(1, 20))
	close(src.ch)
	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale})
	require.NoError(t, err)
	disp := &spyDisplay{}

	ready := make(chan struct{})
	sum := NewCaptureController(src, ingest.EmbeddedExtractor{}, sess, NewStopSignal(),
		WithDisplay(disp), WithReady(ready)).Run(context.Background())

	assert.Equal(t, uint64(2), sum.Frames)
	assert.Equal(t, uint64(2), sum.Detections)
	assert.Zero(t, sum.Measured)
	assert.Len(t, disp.overlays, 2, "frames are still displayed")
	assert.Len(t, disp.overlays[0].Points, 2)
	assert.Empty(t, sess.History("height"))
}

func TestCapture_ExtractorErrorSkipsFrame(t *testing.T) {
	t.Parallel()

	src := newChanSource(detectedFrame(0, 10))
	close(src.ch)
	sess, err := NewSession([]models.MetricDefinition{heightMetric(0)}, SessionConfig{Calibration: unitScale})
	require.NoError(t, err)

	sum := NewCaptureController(src, failingExtractor{}, sess, NewStopSignal()).Run(context.Background())

	assert.Equal(t, uint64(1), sum.Frames)
	assert.Zero(t, sum.Detections)
	assert.Empty(t, sess.History("height"))
}

func TestStopSignal_FirstReasonWins(t *testing.T) {
	t.Parallel()

	s := NewStopSignal()
	assert.False(t, s.Stopped())
	assert.Empty(t, s.Reason())

	s.Trigger("keypress")
	s.Trigger("signal")
	assert.True(t, s.Stopped())
	assert.Equal(t, "keypress", s.Reason())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRecordingController_ExportsSamplesAndFinals(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage := &utils.StorageConfig{
		SamplesDir: dir,
		CSV:        utils.CSVStorageConfig{FlushIntervalMs: 10, BufferSizeKB: 4, WriteHeader: true},
	}
	store := &recordingStore{}
	rc, err := NewRecordingController(storage, "sess-1", "session_test", 2, store)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session_test"), rc.SessionDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc.Start(ctx)

	sess, err := NewSession([]models.MetricDefinition{heightMetric(0), waistMetric()},
		SessionConfig{Calibration: unitScale, Precision: 2},
		WithSessionID("sess-1"), WithSampleObserver(rc.ObserveSample))
	require.NoError(t, err)
	sess.Start()

	f, det := frameWithHeight(0, 50)
	delete(det.Keypoints, models.LeftHip)
	sess.OnFrame(f, det)
	f, det = frameWithHeight(1, 60)
	delete(det.Keypoints, models.LeftHip)
	sess.OnFrame(f, det)

	require.NoError(t, rc.Persist(sess.Stop()))
	rc.Stop()
	rc.Stop()

	assert.Equal(t, uint64(2), rc.RowsWritten())
	assert.Equal(t, []string{"Final Height"}, store.lines, "waist had no samples")

	samples := readCSV(t, filepath.Join(rc.SessionDir(), views.ExportSamples.FileName()))
	require.Len(t, samples, 3)
	assert.Equal(t, views.Header(views.ExportSamples), samples[0])
	assert.Equal(t, "sess-1", samples[1][0])
	assert.Equal(t, "height", samples[1][2])

	finals := readCSV(t, filepath.Join(rc.SessionDir(), views.ExportFinals.FileName()))
	require.Len(t, finals, 3)
	assert.Equal(t, []string{"sess-1", "height", "Final Height", "2", "55.00", "true"}, finals[1])
	assert.Equal(t, []string{"sess-1", "waist", "Waist Circumference", "0", "", "false"}, finals[2])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSensorsController_ReplaysSampleRecording(t *testing.T) {
	t.Parallel()

	cfg := utils.DefaultMeasureConfig()
	cfg.Source.Kind = "replay"
	cfg.Source.ReplayPath = filepath.Join("..", "config", "sample_replay.jsonl")
	cfg.Narration.Enabled = false
	require.NoError(t, cfg.Validate())

	sensors, err := NewSensorsController(cfg)
	require.NoError(t, err)
	assert.Nil(t, sensors.Ready(), "no narration, measure from the first frame")

	sess, err := NewSessionFromConfig(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sensors.Start(ctx)
	sum := NewCaptureController(sensors.Source, sensors.Extractor, sess, NewStopSignal()).Run(ctx)

	assert.Equal(t, EndOfStream, sum.EndReason)
	assert.Equal(t, uint64(12), sum.Frames)
	assert.Equal(t, uint64(11), sum.Detections)

	finals := sess.Stop()
	require.Len(t, finals, 6)
	for _, f := range finals {
		assert.True(t, f.Available, f.MetricID)
	}
	arm, _ := sess.Final("arm_length")
	assert.Equal(t, 10, arm.Samples, "one frame lost the wrist")
	shoulder, _ := sess.Final("shoulder_width")
	assert.Equal(t, 11, shoulder.Samples)
	assert.InDelta(t, 49.92, shoulder.Value, 0.5, "0.13 of 1280 px at 0.3 cm/px")
}

func TestSensorsController_RejectsMissingReplay(t *testing.T) {
	t.Parallel()

	cfg := utils.DefaultMeasureConfig()
	cfg.Source.Kind = "replay"
	cfg.Source.ReplayPath = filepath.Join(t.TempDir(), "missing.jsonl")

	_, err := NewSensorsController(cfg)
	assert.ErrorIs(t, err, ingest.ErrFrameRead)
}
