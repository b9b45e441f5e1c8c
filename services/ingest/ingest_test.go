package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"body-measure/models"
	"body-measure/utils"
)

func drain(t *testing.T, src FrameSource) []*models.Frame {
	t.Helper()
	var frames []*models.Frame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-src.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("frame source did not close")
		}
	}
}

const replayDoc = `
{"width": 1000, "height": 500, "landmarks": [{"name": "left_shoulder", "x": 0.5, "y": 0.2, "visibility": 0.9}, {"index": 15, "x": 0.5, "y": 0.6}]}

{"width": 1000, "height": 500, "landmarks": null}
{"landmarks": [{"name": "nose", "x": 0.5, "y": 0.1, "confidence": 0.4}]}
`

func TestReplayReader_Frames(t *testing.T) {
	t.Parallel()

	r := NewReplayReader(utils.SourceConfig{Width: 640, Height: 480}, strings.NewReader(replayDoc))
	r.Start(context.Background())
	frames := drain(t, r)

	require.Len(t, frames, 3)
	assert.Equal(t, uint64(0), frames[0].Seq)
	assert.Equal(t, uint64(2), frames[2].Seq)

	kps := frames[0].Detection.Keypoints
	require.Contains(t, kps, models.LeftWrist, "index 15 maps to left_wrist")
	assert.Equal(t, 0.9, kps[models.LeftShoulder].Confidence)
	assert.Equal(t, 1.0, kps[models.LeftWrist].Confidence)
	assert.Equal(t, 1000, frames[0].Width)

	assert.Nil(t, frames[1].Detection)

	assert.Equal(t, 640, frames[2].Width, "missing size falls back to config")
	assert.Equal(t, 0.4, frames[2].Detection.Keypoints[models.Nose].Confidence)

	assert.ErrorIs(t, r.Err(), ErrFrameRead)
	assert.ErrorIs(t, r.Err(), ErrEndOfStream)
	produced, dropped := r.Stats()
	assert.Equal(t, uint64(3), produced)
	assert.Zero(t, dropped)
}

func TestReplayReader_MalformedLineEndsStream(t *testing.T) {
	t.Parallel()

	doc := `{"width": 10, "height": 10}` + "\n" + `{"width": ` + "\n"
	r := NewReplayReader(utils.SourceConfig{}, strings.NewReader(doc))
	r.Start(context.Background())
	frames := drain(t, r)

	assert.Len(t, frames, 1)
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), ErrFrameRead)
	assert.NotErrorIs(t, r.Err(), ErrEndOfStream)
	assert.Contains(t, r.Err().Error(), "line 2")
}

func TestReplayReader_CancelInterruptsBlockedRead(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pr, pw := io.Pipe()
	defer pw.Close()

	r := NewReplayReader(utils.SourceConfig{}, pr)
	r.Start(ctx)
	_, err := pw.Write([]byte(`{"width": 1, "height": 1}` + "\n"))
	require.NoError(t, err)

	select {
	case f := <-r.Frames():
		require.NotNil(t, f)
		assert.Equal(t, 1, f.Width)
	case <-time.After(2 * time.Second):
		t.Fatal("first frame not delivered")
	}

	// Nothing more is written, so the reader is blocked in Scan.
	cancel()
	assert.Empty(t, drain(t, r))
	assert.NoError(t, r.Err())

	_, err = pw.Write([]byte("{}\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe, "input closed on cancel")
}

func TestReplayReader_CancelledBeforeSend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := `{"width": 1, "height": 1}` + "\n" + `{"width": 2, "height": 2}` + "\n"
	r := NewReplayReader(utils.SourceConfig{}, strings.NewReader(doc))
	r.Start(ctx)

	assert.Empty(t, drain(t, r), "a waiting consumer never beats cancellation")
	assert.NoError(t, r.Err())
	produced, _ := r.Stats()
	assert.Zero(t, produced)
}

func TestOpenReplay_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := OpenReplay(utils.SourceConfig{ReplayPath: t.TempDir() + "/nope.jsonl"})
	assert.ErrorIs(t, err, ErrFrameRead)
}

func TestCameraReader_FrameLimit(t *testing.T) {
	t.Parallel()

	r := NewCameraReader(utils.SourceConfig{FPS: 1000, Width: 1280, Height: 720, ChannelBuffer: 64}, 1).
		WithFrameLimit(20)
	r.Start(context.Background())
	frames := drain(t, r)

	require.Len(t, frames, 20)
	detected := 0
	for i, f := range frames {
		assert.Equal(t, uint64(i), f.Seq)
		assert.Equal(t, 1280, f.Width)
		if f.Detection != nil {
			detected++
			assert.Contains(t, f.Detection.Keypoints, models.LeftShoulder)
		}
	}
	assert.Greater(t, detected, 10)
	assert.ErrorIs(t, r.Err(), ErrFrameRead)
	assert.ErrorIs(t, r.Err(), ErrEndOfStream)
}

func TestEmbeddedExtractor(t *testing.T) {
	t.Parallel()

	var e EmbeddedExtractor
	d, err := e.Extract(context.Background(), &models.Frame{})
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = e.Extract(context.Background(), &models.Frame{Detection: &models.Detection{}})
	require.NoError(t, err)
	assert.Nil(t, d, "an empty keypoint set is no detection")

	want := &models.Detection{Keypoints: models.NewKeypoints(models.Keypoint{Name: models.Nose})}
	d, err = e.Extract(context.Background(), &models.Frame{Detection: want})
	require.NoError(t, err)
	assert.Same(t, want, d)
}

func TestHTTPExtractor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		switch string(body) {
		case "person":
			assert.Equal(t, "1280", r.URL.Query().Get("width"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"landmarks": [{"name": "left_hip", "x": 0.4, "y": 0.5, "visibility": 0.8}]}`)
		case "empty":
			w.WriteHeader(http.StatusNoContent)
		case "nobody":
			_, _ = io.WriteString(w, `{"landmarks": []}`)
		default:
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	e, err := NewHTTPExtractor(srv.URL+"/pose", time.Second, nil)
	require.NoError(t, err)
	ctx := context.Background()
	frame := func(img string) *models.Frame {
		return &models.Frame{Width: 1280, Height: 720, Format: "MJPEG", Image: []byte(img)}
	}

	d, err := e.Extract(ctx, frame("person"))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 0.8, d.Keypoints[models.LeftHip].Confidence)

	d, err = e.Extract(ctx, frame("empty"))
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = e.Extract(ctx, frame("nobody"))
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = e.Extract(ctx, frame("broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")

	d, err = e.Extract(ctx, &models.Frame{})
	require.NoError(t, err)
	assert.Nil(t, d, "frames without an image are skipped")
}

func TestNewHTTPExtractor_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPExtractor("not a url", time.Second, nil)
	assert.Error(t, err)
}
