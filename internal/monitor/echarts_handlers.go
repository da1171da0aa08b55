package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trajectory.report/internal/geo"
)

// handleRangeChart renders a quick scatter (HTML) of filtered and
// measured range over time using go-echarts. This is a debugging
// endpoint to visually check a run without any frontend tooling.
// Query params:
//   - run_id (optional; defaults to the latest run)
//   - limit (optional) to reduce payload size
func (ws *WebServer) handleRangeChart(w http.ResponseWriter, r *http.Request) {
	runID, err := ws.resolveRunID(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no run available: %v", err))
		return
	}

	updates, err := ws.db.UpdatesForRun(runID, queryLimit(r))
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load updates: %v", err))
		return
	}
	if len(updates) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "run has no updates yet")
		return
	}

	filtered := make([]opts.ScatterData, 0, len(updates))
	measured := make([]opts.ScatterData, 0, len(updates))
	for _, u := range updates {
		fr, _, _ := geo.CartToSph(u.State[0], u.State[1], u.State[2])
		filtered = append(filtered, opts.ScatterData{Value: []interface{}{u.Time, fr}})
		if u.Measurement != nil {
			mr, _, _ := geo.CartToSph(u.Measurement.X, u.Measurement.Y, u.Measurement.Z)
			measured = append(measured, opts.ScatterData{Value: []interface{}{u.Time, mr}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Range vs Time", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Range vs. Time", Subtitle: fmt.Sprintf("run=%s updates=%d", runID, len(updates))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Range (m)", NameLocation: "middle", NameGap: 40}),
	)

	scatter.AddSeries("filtered", filtered, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	scatter.AddSeries("measured", measured, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func queryLimit(r *http.Request) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		var v int
		if _, err := fmt.Sscanf(l, "%d", &v); err == nil && v > 0 {
			return v
		}
	}
	return 0
}
