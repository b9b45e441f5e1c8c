package controller

import (
	"context"
	"fmt"
	"time"

	"body-measure/services/ingest"
	"body-measure/services/narrate"
	"body-measure/utils"
)

// SensorsController owns the collaborators that feed a session: the frame
// source, the landmark extractor and the narrator. They are built once from
// config and handed to the capture loop as explicit handles.
type SensorsController struct {
	Source    ingest.FrameSource
	Extractor ingest.LandmarkExtractor
	Narrator  *narrate.Narrator

	waitForReady bool
}

// NewSensorsController creates the collaborators described by cfg.
func NewSensorsController(cfg *utils.MeasureConfig) (*SensorsController, error) {
	sc := &SensorsController{waitForReady: cfg.Narration.Enabled && cfg.Narration.WaitForReady}

	switch cfg.Source.Kind {
	case "replay":
		r, err := ingest.OpenReplay(cfg.Source)
		if err != nil {
			return nil, err
		}
		sc.Source = r
	case "simulate":
		sc.Source = ingest.NewCameraReader(cfg.Source, time.Now().UnixNano())
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}

	switch cfg.Extractor.Kind {
	case "embedded":
		sc.Extractor = ingest.EmbeddedExtractor{}
	case "http":
		timeout := time.Duration(cfg.Extractor.TimeoutMs) * time.Millisecond
		ex, err := ingest.NewHTTPExtractor(cfg.Extractor.URL, timeout, nil)
		if err != nil {
			return nil, err
		}
		sc.Extractor = ex
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", cfg.Extractor.Kind)
	}

	if cfg.Narration.Enabled {
		var speaker narrate.Speaker = narrate.LogSpeaker{}
		if len(cfg.Narration.Command) > 0 {
			speaker = narrate.CommandSpeaker{Argv: cfg.Narration.Command}
		}
		sc.Narrator = narrate.New(speaker, cfg.Narration.Prompts)
	}
	return sc, nil
}

// Start launches the source and narrator goroutines.
func (sc *SensorsController) Start(ctx context.Context) {
	sc.Source.Start(ctx)
	if sc.Narrator != nil {
		sc.Narrator.Start(ctx)
	}
	utils.L().Info("sensors controller: source and narrator launched")
}

// Ready is the channel the capture loop waits on before measuring, or nil
// when measurement should start with the first frame.
func (sc *SensorsController) Ready() <-chan struct{} {
	if sc.Narrator == nil || !sc.waitForReady {
		return nil
	}
	return sc.Narrator.Ready()
}

// LogStats prints the source's produce/drop counters.
func (sc *SensorsController) LogStats() {
	p, d := sc.Source.Stats()
	utils.L().Info("  frames   produced=%d  dropped=%d", p, d)
}
