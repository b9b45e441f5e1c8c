package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"body-measure/models"
	"body-measure/utils"
)

// ReplayRecord is one line of a landmark recording (JSON lines). Landmarks
// may be named, or indexed in MediaPipe pose order; a null or missing
// landmarks field is a frame in which nobody was detected.
type ReplayRecord struct {
	TimestampNs int64            `json:"timestamp_ns"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Landmarks   []ReplayLandmark `json:"landmarks"`
}

// ReplayLandmark is a recorded keypoint. Visibility is accepted as an alias
// for confidence, as MediaPipe exports it.
type ReplayLandmark struct {
	Name       models.Landmark `json:"name"`
	Index      *int            `json:"index,omitempty"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Confidence *float64        `json:"confidence,omitempty"`
	Visibility *float64        `json:"visibility,omitempty"`
}

func (l ReplayLandmark) keypoint() (models.Keypoint, error) {
	name := l.Name
	if name == "" {
		if l.Index == nil || *l.Index < 0 || *l.Index >= len(models.PoseLandmarks) {
			return models.Keypoint{}, fmt.Errorf("landmark without a valid name or index")
		}
		name = models.PoseLandmarks[*l.Index]
	}
	conf := 1.0
	switch {
	case l.Confidence != nil:
		conf = *l.Confidence
	case l.Visibility != nil:
		conf = *l.Visibility
	}
	return models.Keypoint{Name: name, X: l.X, Y: l.Y, Confidence: conf}, nil
}

// ReplayReader streams frames from a landmark recording. Unlike the live
// camera it blocks on a full channel, so every recorded frame is processed
// in order.
type ReplayReader struct {
	cfg      utils.SourceConfig
	rd       io.Reader
	closer   io.Closer
	out      chan *models.Frame
	produced uint64
	errHolder
}

// OpenReplay opens cfg.ReplayPath for replay.
func OpenReplay(cfg utils.SourceConfig) (*ReplayReader, error) {
	f, err := os.Open(cfg.ReplayPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open replay %s: %v", ErrFrameRead, cfg.ReplayPath, err)
	}
	return NewReplayReader(cfg, f), nil
}

// NewReplayReader replays records from rd. If rd is also an io.Closer it is
// closed when the replay ends or its context is cancelled.
func NewReplayReader(cfg utils.SourceConfig, rd io.Reader) *ReplayReader {
	buf := cfg.ChannelBuffer
	if buf <= 0 {
		buf = 32
	}
	r := &ReplayReader{
		cfg:       cfg,
		rd:        rd,
		out:       make(chan *models.Frame, buf),
		errHolder: newErrHolder(),
	}
	if c, ok := rd.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Frames returns the output channel.
func (r *ReplayReader) Frames() <-chan *models.Frame { return r.out }

// Start launches the replay goroutine.
func (r *ReplayReader) Start(ctx context.Context) {
	go r.run(ctx)
	utils.L().Info("replay reader started  (path=%s, fps=%d)", r.cfg.ReplayPath, r.cfg.FPS)
}

func (r *ReplayReader) run(ctx context.Context) {
	defer close(r.out)

	// Closing the input is the only way to interrupt a Scan blocked on a
	// pipe or FIFO.
	var closeOnce sync.Once
	closeInput := func() {
		if r.closer != nil {
			closeOnce.Do(func() { r.closer.Close() })
		}
	}
	defer closeInput()
	stopWatch := context.AfterFunc(ctx, closeInput)
	defer stopWatch()

	var tick <-chan time.Time
	if r.cfg.FPS > 0 {
		t := time.NewTicker(time.Second / time.Duration(r.cfg.FPS))
		defer t.Stop()
		tick = t.C
	}

	sc := bufio.NewScanner(r.rd)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var seq uint64
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		frame, err := r.decode(raw, seq)
		if err != nil {
			r.finish(fmt.Errorf("%w: line %d: %v", ErrFrameRead, line, err))
			return
		}
		seq++

		if tick != nil {
			select {
			case <-ctx.Done():
				r.finish(nil)
				return
			case <-tick:
			}
		}
		// A cancelled context wins over a consumer that is ready to receive.
		if ctx.Err() != nil {
			r.finish(nil)
			return
		}
		select {
		case <-ctx.Done():
			r.finish(nil)
			return
		case r.out <- frame:
			atomic.AddUint64(&r.produced, 1)
		}
	}
	if ctx.Err() != nil {
		// The read was interrupted by closeInput.
		r.finish(nil)
		return
	}
	if err := sc.Err(); err != nil {
		r.finish(fmt.Errorf("%w: %v", ErrFrameRead, err))
		return
	}
	utils.L().Info("replay reader reached end of stream  (frames=%d)", seq)
	r.finish(fmt.Errorf("%w after %d frames", ErrEndOfStream, seq))
}

func (r *ReplayReader) decode(raw []byte, seq uint64) (*models.Frame, error) {
	var rec ReplayRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	f := &models.Frame{
		Seq:         seq,
		TimestampNs: rec.TimestampNs,
		Width:       rec.Width,
		Height:      rec.Height,
		Format:      "landmarks",
	}
	if f.Width <= 0 {
		f.Width = r.cfg.Width
	}
	if f.Height <= 0 {
		f.Height = r.cfg.Height
	}
	if f.TimestampNs == 0 {
		f.TimestampNs = utils.NowNano()
	}
	if len(rec.Landmarks) == 0 {
		return f, nil
	}
	kps := make(models.Keypoints, len(rec.Landmarks))
	for _, l := range rec.Landmarks {
		k, err := l.keypoint()
		if err != nil {
			return nil, err
		}
		kps[k.Name] = k
	}
	f.Detection = &models.Detection{Keypoints: kps}
	return f, nil
}

// Stats returns (produced, dropped); replay never drops.
func (r *ReplayReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.produced), 0
}
