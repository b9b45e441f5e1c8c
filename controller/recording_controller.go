package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"body-measure/models"
	"body-measure/utils"
	"body-measure/views"
)

// MeasurementStore is a durable, append-only record of final measurements.
// Failures are reported as errors matching models.ErrIOFailure.
type MeasurementStore interface {
	Append(label string, valueCm float64) error
}

// finalAppender is implemented by stores that keep the whole
// FinalMeasurement rather than just its label and value.
type finalAppender interface {
	AppendFinal(m models.FinalMeasurement) error
}

// RecordingController is the persistence stage.
// It writes, per session:
//   - samples.csv (every raw sample and its smoothed value, asynchronously)
//   - finals.csv  (one row per metric, including unavailable ones)
//
// and appends every available final measurement to each MeasurementStore.
// Sample writing never blocks the capture loop: a full queue drops rows.
type RecordingController struct {
	storageCfg *utils.StorageConfig
	sessionID  string
	sessionDir string
	precision  int

	samplesWriter *views.CSVWriter
	finalsWriter  *views.CSVWriter

	stores []MeasurementStore

	mu      sync.Mutex
	queue   chan models.SampleRecord
	closed  bool
	stopped chan struct{}

	rowsWritten uint64
	dropped     uint64
	wg          sync.WaitGroup
}

// NewRecordingController sets up the session directory and CSV writers when
// samples_dir is configured. sessionName names the directory.
func NewRecordingController(storageCfg *utils.StorageConfig, sessionID, sessionName string, precision int, stores ...MeasurementStore) (*RecordingController, error) {
	rc := &RecordingController{
		storageCfg: storageCfg,
		sessionID:  sessionID,
		precision:  precision,
		stores:     stores,
		queue:      make(chan models.SampleRecord, 1024),
		stopped:    make(chan struct{}),
	}

	if storageCfg.SamplesDir == "" {
		utils.L().Info("recording controller ready  (stores=%d, sample export disabled)", len(stores))
		return rc, nil
	}

	rc.sessionDir = filepath.Join(storageCfg.SamplesDir, sessionName)
	if err := os.MkdirAll(rc.sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	csvCfg := storageCfg.CSV
	bufSize := csvCfg.BufferSizeKB * 1024

	// ── Samples CSV ──────────────────────────────────────────────────
	var err error
	rc.samplesWriter, err = views.NewCSVWriter(
		filepath.Join(rc.sessionDir, views.ExportSamples.FileName()), views.ExportSamples, bufSize, csvCfg.WriteHeader,
	)
	if err != nil {
		return nil, err
	}

	// ── Finals CSV ───────────────────────────────────────────────────
	rc.finalsWriter, err = views.NewCSVWriter(
		filepath.Join(rc.sessionDir, views.ExportFinals.FileName()), views.ExportFinals, bufSize, csvCfg.WriteHeader,
	)
	if err != nil {
		rc.samplesWriter.Close()
		return nil, err
	}

	utils.L().Info("recording controller ready  (stores=%d, session=%s)", len(stores), rc.sessionDir)
	return rc, nil
}

// Start begins consuming samples and writing CSVs.
// It also starts a periodic flush goroutine.
func (rc *RecordingController) Start(ctx context.Context) {
	if rc.samplesWriter == nil {
		return
	}

	// Periodic flusher
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		flushMs := rc.storageCfg.CSV.FlushIntervalMs
		if flushMs <= 0 {
			flushMs = 100
		}
		ticker := time.NewTicker(time.Duration(flushMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				rc.flushAll()
				return
			case <-rc.stopped:
				return
			case <-ticker.C:
				rc.flushAll()
			}
		}
	}()

	// Main writer goroutine; drains the queue until Stop closes it.
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		for rec := range rc.queue {
			if err := rc.samplesWriter.Write(&rec); err != nil {
				utils.L().Error("samples csv: %v", err)
				continue
			}
			atomic.AddUint64(&rc.rowsWritten, 1)
		}
	}()

	utils.L().Info("recording controller started")
}

// ObserveSample queues one sample for export. It is a SampleObserver.
func (rc *RecordingController) ObserveSample(rec models.SampleRecord) {
	if rc.samplesWriter == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	select {
	case rc.queue <- rec:
	default:
		if n := atomic.AddUint64(&rc.dropped, 1); n == 1 || n%100 == 0 {
			utils.L().Warn("recording: dropped %d samples (writer too slow)", n)
		}
	}
}

// Persist appends every available final measurement to every store and
// writes the finals CSV. Metrics with no samples are reported and never
// reach a store. Every store and metric is attempted; failures are joined
// and match models.ErrIOFailure. The finals themselves are untouched.
func (rc *RecordingController) Persist(finals []models.FinalMeasurement) error {
	var errs []error
	for _, f := range finals {
		if rc.finalsWriter != nil {
			rec := models.FinalRecord{SessionID: rc.sessionID, Final: f, Precision: rc.precision}
			if err := rc.finalsWriter.Write(&rec); err != nil {
				utils.L().Error("finals csv: %v", err)
			}
		}

		if !f.Available {
			utils.L().Info("%s", f.Format(rc.precision))
			continue
		}
		for _, s := range rc.stores {
			var err error
			if fa, ok := s.(finalAppender); ok {
				err = fa.AppendFinal(f)
			} else {
				err = s.Append(f.Label, f.Value)
			}
			if err != nil {
				utils.L().Error("persist %s: %v", f.MetricID, err)
				errs = append(errs, fmt.Errorf("persist %s: %w", f.MetricID, err))
			}
		}
		utils.L().Info("saved %s", f.Format(rc.precision))
	}
	return errors.Join(errs...)
}

func (rc *RecordingController) flushAll() {
	for _, w := range []*views.CSVWriter{rc.samplesWriter, rc.finalsWriter} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil {
			utils.L().Error("flush: %v", err)
		}
	}
}

// Stop drains queued samples, then flushes and closes every CSV.
// It is safe to call more than once.
func (rc *RecordingController) Stop() {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return
	}
	rc.closed = true
	close(rc.queue)
	close(rc.stopped)
	rc.mu.Unlock()

	rc.wg.Wait()
	for _, w := range []*views.CSVWriter{rc.samplesWriter, rc.finalsWriter} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			utils.L().Error("close %s: %v", w.Path(), err)
		}
	}

	utils.L().Info("recording controller stopped  (rows_written=%d, dropped=%d)",
		atomic.LoadUint64(&rc.rowsWritten), atomic.LoadUint64(&rc.dropped))
}

// SessionDir returns the path to the session's export directory, or "" when
// sample export is disabled.
func (rc *RecordingController) SessionDir() string {
	return rc.sessionDir
}

// RowsWritten returns the number of sample rows exported.
func (rc *RecordingController) RowsWritten() uint64 {
	return atomic.LoadUint64(&rc.rowsWritten)
}
