// Package monitor serves a read-only HTTP view of the track database:
// a JSON API for runs and updates plus HTML charts for quick visual
// inspection without any frontend tooling.
package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/banshee-data/trajectory.report/internal/track"
	"github.com/banshee-data/trajectory.report/internal/trackdb"
)

type WebServer struct {
	db *trackdb.TrackDB
}

func NewWebServer(db *trackdb.TrackDB) *WebServer {
	return &WebServer{db: db}
}

func (ws *WebServer) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/updates", ws.handleUpdates)
	mux.HandleFunc("/api/latest", ws.handleLatest)
	mux.HandleFunc("/charts/range", ws.handleRangeChart)
	mux.HandleFunc("/", ws.handleHome)
	return mux
}

func (ws *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Trajectory Server!"))
}

func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runs, err := ws.db.Runs()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}

	type runJSON struct {
		ID               string `json:"id"`
		Source           string `json:"source"`
		StartedUnixNanos int64  `json:"started_unix_nanos"`
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{ID: run.ID, Source: run.Source, StartedUnixNanos: run.StartedUnixNanos})
	}
	ws.writeJSON(w, out)
}

// resolveRunID returns the run_id query parameter, falling back to the
// most recent run.
func (ws *WebServer) resolveRunID(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("run_id"); id != "" {
		return id, nil
	}
	run, err := ws.db.LatestRun()
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// updateJSON is the wire form of a track update. The covariance is
// reduced to its diagonal: monitor consumers only use it for
// uncertainty bands.
type updateJSON struct {
	TrackID        int        `json:"track_id"`
	ScanIndex      int        `json:"scan_index"`
	Time           float64    `json:"time"`
	State          [6]float64 `json:"state"`
	CovarianceDiag [6]float64 `json:"covariance_diag"`
	Associated     bool       `json:"associated"`
	Candidates     int        `json:"gated_candidates"`
	SpeedMps       float64    `json:"speed_mps"`
}

func toUpdateJSON(u track.Update) updateJSON {
	out := updateJSON{
		TrackID:    u.TrackID,
		ScanIndex:  u.ScanIndex,
		Time:       u.Time,
		State:      u.State,
		Associated: u.Associated,
		Candidates: u.Candidates,
	}
	for i := 0; i < 6; i++ {
		out.CovarianceDiag[i] = u.Covariance[i*6+i]
	}
	out.SpeedMps = math.Sqrt(u.State[3]*u.State[3] + u.State[4]*u.State[4] + u.State[5]*u.State[5])
	return out
}

func (ws *WebServer) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := ws.resolveRunID(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no run available: %v", err))
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	updates, err := ws.db.UpdatesForRun(runID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load updates: %v", err))
		return
	}

	out := make([]updateJSON, 0, len(updates))
	for _, u := range updates {
		out = append(out, toUpdateJSON(u))
	}
	ws.writeJSON(w, out)
}

func (ws *WebServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := ws.resolveRunID(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no run available: %v", err))
		return
	}

	u, err := ws.db.LatestUpdate(runID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load latest update: %v", err))
		return
	}
	if u == nil {
		ws.writeJSONError(w, http.StatusNotFound, "run has no updates yet")
		return
	}
	ws.writeJSON(w, toUpdateJSON(*u))
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
