// Package report renders PNG time-series plots of a finished tracking
// run: filtered versus measured range, azimuth and elevation.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/track"
	"github.com/banshee-data/trajectory.report/internal/units"
)

var (
	filteredColor = color.RGBA{R: 0x2e, G: 0x8b, B: 0x57, A: 255} // green
	measuredColor = color.RGBA{R: 0x1f, G: 0x4e, B: 0xb0, A: 255} // blue
)

// series is one plottable quantity extracted from the update stream.
type series struct {
	name     string
	yLabel   string
	filtered plotter.XYs
	measured plotter.XYs
}

// GeneratePlots renders range/azimuth/elevation-vs-time PNGs for the
// given updates into outputDir, creating it if needed. Returns the
// number of plots written.
func GeneratePlots(updates []track.Update, outputDir string) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	sets := extractSeries(updates)
	count := 0
	for _, s := range sets {
		if err := renderSeries(s, outputDir); err != nil {
			return count, fmt.Errorf("%s: %w", s.name, err)
		}
		count++
	}
	return count, nil
}

// extractSeries converts Cartesian states and measurements back to
// polar quantities for plotting. Angles are shown in degrees.
func extractSeries(updates []track.Update) []*series {
	rng := &series{name: "range", yLabel: "Range (m)"}
	azm := &series{name: "azimuth", yLabel: "Azimuth (deg)"}
	elv := &series{name: "elevation", yLabel: "Elevation (deg)"}

	for _, u := range updates {
		r, az, el := geo.CartToSph(u.State[0], u.State[1], u.State[2])
		rng.filtered = append(rng.filtered, plotter.XY{X: u.Time, Y: r})
		azm.filtered = append(azm.filtered, plotter.XY{X: u.Time, Y: units.RadToDeg(az)})
		elv.filtered = append(elv.filtered, plotter.XY{X: u.Time, Y: units.RadToDeg(el)})

		if u.Measurement == nil {
			continue
		}
		mr, maz, mel := geo.CartToSph(u.Measurement.X, u.Measurement.Y, u.Measurement.Z)
		rng.measured = append(rng.measured, plotter.XY{X: u.Time, Y: mr})
		azm.measured = append(azm.measured, plotter.XY{X: u.Time, Y: units.RadToDeg(maz)})
		elv.measured = append(elv.measured, plotter.XY{X: u.Time, Y: units.RadToDeg(mel)})
	}

	return []*series{rng, azm, elv}
}

func renderSeries(s *series, outputDir string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs. Time", titleCase(s.name))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = s.yLabel

	if len(s.filtered) > 0 {
		sc, err := plotter.NewScatter(s.filtered)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = filteredColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("filtered", sc)
	}

	if len(s.measured) > 0 {
		sc, err := plotter.NewScatter(s.measured)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = measuredColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("measured", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	file := filepath.Join(outputDir, s.name+".png")
	if err := p.Save(12*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save %s plot: %w", s.name, err)
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeReportDir returns a timestamped output directory for a run's
// plots: <baseDir>/<source-basename>/<timestamp>.
func MakeReportDir(baseDir, source string) string {
	ts := FormatTimestamp(time.Now())
	if source != "" {
		base := filepath.Base(source)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "run_"+ts)
}
