package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/ingest"
	"github.com/banshee-data/trajectory.report/internal/monitor"
	"github.com/banshee-data/trajectory.report/internal/report"
	"github.com/banshee-data/trajectory.report/internal/track"
	"github.com/banshee-data/trajectory.report/internal/trackdb"
)

var (
	csvFile    = flag.String("csv", "", "CSV measurement export to process")
	serialPort = flag.String("serial", "", "Serial port to read live measurements from")
	dbFile     = flag.String("db", "track_data.db", "Track database path")
	listen     = flag.String("listen", "", "HTTP listen address for the monitor (empty disables)")
	configPath = flag.String("config", "", "Tuning config JSON (built-in defaults when empty)")
	plotDir    = flag.String("plots", "", "Base directory for report plots (empty disables)")
)

func main() {
	flag.Parse()

	source, err := resolveSource(*csvFile, *serialPort)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	cfg, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	db, err := trackdb.NewTrackDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open track database: %v", err)
	}
	defer db.Close()

	configJSON, err := cfg.JSON()
	if err != nil {
		log.Fatalf("failed to snapshot config: %v", err)
	}
	runID, err := db.StartRun(source, configJSON)
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	log.Printf("started run %s (source %s)", runID, source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		srv := &http.Server{Addr: *listen, Handler: monitor.NewWebServer(db).ServeMux()}
		go func() {
			log.Printf("monitor listening on %s", *listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("monitor server: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	loop := track.NewLoop(track.ConfigFromTuning(cfg), db.Recorder(runID))

	if *csvFile != "" {
		err = runCSV(loop, cfg, *csvFile)
	} else {
		err = runSerial(ctx, loop, cfg, *serialPort)
	}
	if err != nil {
		log.Fatalf("tracking run failed: %v", err)
	}

	state := loop.Filter().State()
	log.Printf("run %s finished in phase %s; final state %v", runID, loop.Filter().Phase(), state)

	if *plotDir != "" {
		updates, err := db.UpdatesForRun(runID, 0)
		if err != nil {
			log.Fatalf("failed to load updates for plotting: %v", err)
		}
		outDir := report.MakeReportDir(*plotDir, source)
		n, err := report.GeneratePlots(updates, outDir)
		if err != nil {
			log.Fatalf("failed to generate plots: %v", err)
		}
		log.Printf("wrote %d plots to %s", n, outDir)
	}
}

// resolveSource validates that exactly one measurement source was
// requested and returns its description for the run record.
func resolveSource(csvPath, port string) (string, error) {
	switch {
	case csvPath == "" && port == "":
		return "", fmt.Errorf("specify one of -csv or -serial")
	case csvPath != "" && port != "":
		return "", fmt.Errorf("-csv and -serial are mutually exclusive")
	case csvPath != "":
		return "csv:" + csvPath, nil
	default:
		return "serial:" + port, nil
	}
}

// loadTuning loads the tuning file at path, or returns an empty config
// (all getters fall back to defaults) when no path is given.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// runCSV processes a whole export file in one pass.
func runCSV(loop *track.Loop, cfg *config.TuningConfig, path string) error {
	measurements, err := ingest.ReadMeasurements(path)
	if err != nil {
		return err
	}
	log.Printf("read %d measurements from %s", len(measurements), path)

	scans, err := track.FormScans(measurements, cfg.GetMaxTimeDiff())
	if err != nil {
		return err
	}
	log.Printf("formed %d scans", len(scans))

	return loop.Run(scans)
}

// runSerial streams measurements from a sensor port until the context
// is cancelled, grouping them into scans on the fly.
func runSerial(ctx context.Context, loop *track.Loop, cfg *config.TuningConfig, portName string) error {
	port, err := ingest.NewSensorPort(portName)
	if err != nil {
		return err
	}

	go func() {
		if err := port.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("serial monitor: %v", err)
		}
	}()

	builder := track.NewScanBuilder(cfg.GetMaxTimeDiff())
	for m := range port.Measurements() {
		if scan, ok := builder.Add(m); ok {
			processTolerant(loop, scan)
		}
	}
	if scan, ok := builder.Flush(); ok {
		processTolerant(loop, scan)
	}
	return nil
}

// processTolerant applies the same error policy as Loop.Run for a
// single streamed scan: estimation failures are logged and the run
// continues; sink failures are fatal.
func processTolerant(loop *track.Loop, scan track.Scan) {
	err := loop.ProcessScan(scan)
	if err == nil {
		return
	}
	if errors.Is(err, track.ErrNonMonotonicTime) || errors.Is(err, track.ErrSingularInnovation) {
		log.Printf("scan skipped: %v (last valid estimate retained)", err)
		return
	}
	log.Fatalf("tracking run failed: %v", err)
}
