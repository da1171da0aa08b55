// Command trackplot renders PNG report plots from a recorded tracking
// run without re-running the filter.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/trajectory.report/internal/report"
	"github.com/banshee-data/trajectory.report/internal/trackdb"
)

var (
	dbFile = flag.String("db", "track_data.db", "Track database path")
	runID  = flag.String("run", "", "Run ID to plot (latest when empty)")
	outDir = flag.String("out", "reports", "Base directory for plot output")
)

func main() {
	flag.Parse()

	db, err := trackdb.NewTrackDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open track database: %v", err)
	}
	defer db.Close()

	id := *runID
	source := "run"
	if id == "" {
		run, err := db.LatestRun()
		if err != nil {
			log.Fatalf("failed to resolve latest run: %v", err)
		}
		id = run.ID
		source = run.Source
		log.Printf("plotting latest run %s (source %s)", id, source)
	}

	updates, err := db.UpdatesForRun(id, 0)
	if err != nil {
		log.Fatalf("failed to load updates for run %s: %v", id, err)
	}
	if len(updates) == 0 {
		log.Fatalf("run %s has no recorded updates", id)
	}

	dir := report.MakeReportDir(*outDir, source)
	n, err := report.GeneratePlots(updates, dir)
	if err != nil {
		log.Fatalf("failed to generate plots: %v", err)
	}
	log.Printf("wrote %d plots to %s", n, dir)
}
