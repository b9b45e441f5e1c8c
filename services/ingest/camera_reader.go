package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"body-measure/models"
	"body-measure/utils"
)

// CameraReader produces frames from a simulated camera that films one
// person standing still. Every frame carries a synthetic detection, jittered
// like a real pose model, with occasional whole-frame dropouts and missing
// wrists. It pumps into a buffered channel and never blocks on a slow
// consumer: full channel means a dropped frame.
type CameraReader struct {
	cfg      utils.SourceConfig
	rng      *rand.Rand
	out      chan *models.Frame
	dropped  uint64
	produced uint64
	maxFrame uint64 // 0 = unlimited
	errHolder
}

// NewCameraReader wires up the simulated camera. seed makes runs repeatable.
func NewCameraReader(cfg utils.SourceConfig, seed int64) *CameraReader {
	buf := cfg.ChannelBuffer
	if buf <= 0 {
		buf = 120
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &CameraReader{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		out:       make(chan *models.Frame, buf),
		errHolder: newErrHolder(),
	}
}

// WithFrameLimit stops the reader after n frames, reporting end of stream.
func (r *CameraReader) WithFrameLimit(n uint64) *CameraReader {
	r.maxFrame = n
	return r
}

// Frames returns the output channel.
func (r *CameraReader) Frames() <-chan *models.Frame { return r.out }

// Start launches a goroutine that simulates camera frames until ctx is cancelled.
func (r *CameraReader) Start(ctx context.Context) {
	go r.run(ctx)
	utils.L().Info("camera reader started  (fps=%d, %dx%d, buffer=%d, simulate=true)",
		r.cfg.FPS, r.cfg.Width, r.cfg.Height, cap(r.out))
}

func (r *CameraReader) run(ctx context.Context) {
	defer close(r.out)

	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.FPS))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			utils.L().Info("camera reader stopped  (produced=%d, dropped=%d)",
				atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.dropped))
			r.finish(nil)
			return
		case <-ticker.C:
			if r.maxFrame > 0 && seq >= r.maxFrame {
				r.finish(fmt.Errorf("%w: camera stopped after %d frames", ErrEndOfStream, seq))
				return
			}
			frame := r.capture(seq)
			seq++

			select {
			case r.out <- frame:
				atomic.AddUint64(&r.produced, 1)
			default:
				atomic.AddUint64(&r.dropped, 1)
				utils.L().Warn("camera: dropped frame %d (consumer too slow)", frame.Seq)
			}
		}
	}
}

// standingPose is a person about 1.8 m away in a 16:9 frame.
var standingPose = []models.Keypoint{
	{Name: models.Nose, X: 0.500, Y: 0.120},
	{Name: models.LeftShoulder, X: 0.565, Y: 0.250},
	{Name: models.RightShoulder, X: 0.435, Y: 0.250},
	{Name: models.LeftElbow, X: 0.590, Y: 0.400},
	{Name: models.RightElbow, X: 0.410, Y: 0.400},
	{Name: models.LeftWrist, X: 0.600, Y: 0.540},
	{Name: models.RightWrist, X: 0.400, Y: 0.540},
	{Name: models.LeftHip, X: 0.540, Y: 0.540},
	{Name: models.RightHip, X: 0.460, Y: 0.540},
	{Name: models.LeftKnee, X: 0.545, Y: 0.720},
	{Name: models.RightKnee, X: 0.455, Y: 0.720},
	{Name: models.LeftAnkle, X: 0.545, Y: 0.900},
	{Name: models.RightAnkle, X: 0.455, Y: 0.900},
}

// capture builds one synthetic frame.
func (r *CameraReader) capture(seq uint64) *models.Frame {
	f := &models.Frame{
		Seq:         seq,
		TimestampNs: utils.NowNano(),
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		Format:      r.cfg.Format,
	}

	// ~5% of frames: nobody detected.
	if r.rng.Float64() < 0.05 {
		return f
	}

	kps := make(models.Keypoints, len(standingPose))
	for _, k := range standingPose {
		// ~3% chance the wrist is occluded.
		if k.Name == models.LeftWrist && r.rng.Float64() < 0.03 {
			continue
		}
		k.X += r.rng.NormFloat64() * 0.003
		k.Y += r.rng.NormFloat64() * 0.003
		k.Confidence = 0.85 + r.rng.Float64()*0.15
		kps[k.Name] = k
	}
	f.Detection = &models.Detection{Keypoints: kps}
	return f
}

// Stats returns (produced, dropped) counts atomically.
func (r *CameraReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.dropped)
}
