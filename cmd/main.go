package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"body-measure/controller"
	"body-measure/db"
	"body-measure/models"
	"body-measure/utils"
	"body-measure/views"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the whole program; it returns the process exit code so that every
// deferred close runs before main exits.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// ── CLI flags ────────────────────────────────────────────────────
	fs := flag.NewFlagSet("body-measure", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config/measure.yaml", "path to measure.yaml (empty uses built-in defaults)")
	logFile := fs.String("log", "", "optional log file path (stdout is always included)")
	recordPath := fs.String("record", "", "override storage.record_path")
	metrics := fs.String("metrics", "", "comma-separated metric IDs to measure (default: all enabled)")
	sqlitePath := fs.String("sqlite", "", "override storage.sqlite_path")
	migrateDown := fs.Bool("migrate-down", false, "roll the SQLite schema back one version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// ── Config ───────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if *recordPath != "" {
		cfg.Storage.RecordPath = *recordPath
	}
	if *sqlitePath != "" {
		cfg.Storage.SQLitePath = *sqlitePath
	}
	if *metrics != "" {
		if err := cfg.SelectMetrics(strings.Split(*metrics, ",")); err != nil {
			fmt.Fprintf(stderr, "select metrics: %v\n", err)
			return 2
		}
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	// ── Logger ───────────────────────────────────────────────────────
	level, _ := utils.ParseLogLevel(cfg.Logging.Level)
	logger := utils.InitLogger(level, cfg.Logging.File)
	defer logger.Close()

	if *migrateDown {
		return rollbackSchema(cfg.Storage.SQLitePath, stdout, stderr)
	}

	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  Body-Measure  ·  pose-based body measurements")
	utils.L().Info("  GOMAXPROCS=%d  ·  PID=%d", runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	// ── Context, stop signal and its triggers ────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := controller.NewStopSignal()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			utils.L().Info("received signal: %v, finishing session…", sig)
			stop.Trigger("signal")
		case <-ctx.Done():
		}
	}()

	go watchKeypress(stdin, stop)

	if d := cfg.Simulation.DurationSeconds; d > 0 {
		timer := time.AfterFunc(time.Duration(d)*time.Second, func() { stop.Trigger("duration") })
		defer timer.Stop()
		utils.L().Info("session will auto-stop after %ds", d)
	}

	// ── Pipeline assembly ────────────────────────────────────────────
	//
	//  FrameSource ──► CaptureController ──► Session ──► live overlay
	//                        │                  │
	//                 LandmarkExtractor    samples.csv / chart
	//                                           │ (on stop)
	//                                  RecordingController ──► measurement.txt, SQLite

	sensors, err := controller.NewSensorsController(cfg)
	if err != nil {
		utils.L().Error("init sensors: %v", err)
		return 1
	}

	sessionID := utils.NewSessionID()
	startedAt := time.Now()
	sessionName := utils.SessionName(cfg.Storage.SessionPrefix, sessionID, startedAt)
	precision := cfg.Smoothing.Digits()

	stores := []controller.MeasurementStore{views.NewMeasurementLog(cfg.Storage.RecordPath, precision)}

	var database *db.DB
	if cfg.Storage.SQLitePath != "" {
		database, err = openDatabase(cfg.Storage.SQLitePath)
		if err != nil {
			utils.L().Error("open database: %v", err)
			return 1
		}
		defer database.Close()
		if err := database.StartSession(sessionID, startedAt); err != nil {
			utils.L().Error("register session: %v", err)
		}
		stores = append(stores, database.ForSession(sessionID, precision))
	}

	recorder, err := controller.NewRecordingController(&cfg.Storage, sessionID, sessionName, precision, stores...)
	if err != nil {
		utils.L().Error("init recording controller: %v", err)
		return 1
	}

	opts := []controller.SessionOption{
		controller.WithSessionID(sessionID),
		controller.WithSampleObserver(recorder.ObserveSample),
	}
	var chart *views.SessionChart
	enabled := cfg.EnabledMetrics()
	if cfg.Report.Enabled {
		defs := make([]models.MetricDefinition, 0, len(enabled))
		for _, m := range enabled {
			defs = append(defs, m.MetricDefinition)
		}
		chart = views.NewSessionChart(defs)
		opts = append(opts, controller.WithSampleObserver(chart.Observe))
	}

	session, err := controller.NewSessionFromConfig(cfg, opts...)
	if err != nil {
		// Nothing can be measured without a scale.
		utils.L().Error("start session: %v", err)
		recorder.Stop()
		return 1
	}

	capture := controller.NewCaptureController(
		sensors.Source, sensors.Extractor, session, stop,
		controller.WithDisplay(views.NewConsoleDisplay(cfg.Display.EveryNFrames)),
		controller.WithReady(sensors.Ready()),
	)

	sensors.Start(ctx)
	recorder.Start(ctx)

	// ── Stats ticker ─────────────────────────────────────────────────
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				utils.L().Info("── stats ─────────────────────────")
				sensors.LogStats()
				utils.L().Info("  sample rows written: %d", recorder.RowsWritten())
				utils.L().Info("──────────────────────────────────")
			}
		}
	}()

	utils.L().Info("session %s running, type q + Enter or press Ctrl+C to finish", sessionName)

	// ── Capture loop (blocks until stop, cancel or end of stream) ────
	summary := capture.Run(ctx)
	cancel()

	// ── Finalise and persist ─────────────────────────────────────────
	finals := session.Stop()
	persistErr := recorder.Persist(finals)
	recorder.Stop()

	if database != nil {
		if err := database.StopSession(sessionID, time.Now()); err != nil {
			utils.L().Error("close session: %v", err)
		}
	}

	if chart != nil {
		files, err := chart.Render(cfg.Report.Dir, sessionName, finals)
		if err != nil {
			utils.L().Error("render chart: %v", err)
		}
		for _, f := range files {
			utils.L().Info("chart saved to: %s", f)
		}
	}

	fmt.Fprintf(stdout, "\n✓ Session %s finished (%s, %d frames)\n", sessionName, summary.EndReason, summary.Frames)
	for _, f := range finals {
		fmt.Fprintln(stdout, "  "+f.Format(precision))
	}
	if database != nil {
		printStored(stdout, database, sessionID)
	}
	if persistErr != nil {
		fmt.Fprintf(stderr, "\n✗ some measurements were not saved: %v\n", persistErr)
		return 1
	}
	fmt.Fprintln(stdout, "  record:", cfg.Storage.RecordPath)
	return 0
}

// openDatabase opens and migrates the SQLite store and logs its schema version.
func openDatabase(path string) (*db.DB, error) {
	database, err := db.NewDB(path)
	if err != nil {
		return nil, err
	}
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	utils.L().Info("database ready  (path=%s, schema=v%d, dirty=%v)", path, version, dirty)
	return database, nil
}

// printStored lists what the database holds for the session.
func printStored(w io.Writer, database *db.DB, sessionID string) {
	rows, err := database.Measurements(sessionID)
	if err != nil {
		utils.L().Error("list stored measurements: %v", err)
		return
	}
	fmt.Fprintf(w, "  sqlite: %d measurements stored\n", len(rows))
	for _, m := range rows {
		fmt.Fprintf(w, "    %-20s %8.2f cm  (%d samples)\n", m.MetricID, m.ValueCm, m.Samples)
	}
}

// rollbackSchema undoes the most recent migration of the SQLite store.
func rollbackSchema(path string, stdout, stderr io.Writer) int {
	if path == "" {
		fmt.Fprintln(stderr, "-migrate-down needs -sqlite or storage.sqlite_path")
		return 2
	}
	database, err := openDatabase(path)
	if err != nil {
		fmt.Fprintf(stderr, "open database: %v\n", err)
		return 1
	}
	defer database.Close()

	if err := database.MigrateDown(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	version, _, err := database.MigrateVersion()
	if err != nil {
		fmt.Fprintf(stderr, "read schema version: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "schema rolled back to v%d\n", version)
	return 0
}

func loadConfig(path string) (*utils.MeasureConfig, error) {
	if path == "" {
		return utils.DefaultMeasureConfig(), nil
	}
	return utils.LoadMeasureConfig(path)
}

// watchKeypress triggers stop when the user types q (or quit) on stdin.
func watchKeypress(stdin io.Reader, stop *controller.StopSignal) {
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "q", "quit":
			stop.Trigger("keypress")
			return
		}
	}
}
