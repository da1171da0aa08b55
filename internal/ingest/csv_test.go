package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/track"
)

const csvHeader = "id,frame,sensor,quality,power,snr,rcs,meas_range,meas_azimuth,meas_elevation,meas_time\n"

// csvRow pads the leading columns so the measured fields land on the
// export's column offsets.
func csvRow(r, az, el, ts string) string {
	return strings.Join([]string{"0", "0", "0", "0", "0", "0", "0", r, az, el, ts}, ",") + "\n"
}

func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "")), 0o644))
	return path
}

func TestReadMeasurements(t *testing.T) {
	t.Parallel()

	t.Run("converts polar records to Cartesian", func(t *testing.T) {
		// Compass azimuth 90 (due east) maps to the +x axis; compass 0
		// (north) maps to +y.
		path := writeCSV(t,
			csvHeader,
			csvRow("10", "90", "0", "0.5"),
			csvRow("5", "0", "0", "0.6"),
			csvRow("4", "90", "90", "0.7"),
		)

		got, err := ReadMeasurements(path)
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.InDelta(t, 10, got[0].X, 1e-9)
		assert.InDelta(t, 0, got[0].Y, 1e-9)
		assert.InDelta(t, 0, got[0].Z, 1e-9)
		assert.Equal(t, 0.5, got[0].Time)

		assert.InDelta(t, 0, got[1].X, 1e-9)
		assert.InDelta(t, 5, got[1].Y, 1e-9)

		// Straight up: elevation dominates.
		assert.InDelta(t, 0, got[2].X, 1e-9)
		assert.InDelta(t, 0, got[2].Y, 1e-9)
		assert.InDelta(t, 4, got[2].Z, 1e-9)
	})

	t.Run("preserves file order", func(t *testing.T) {
		path := writeCSV(t,
			csvHeader,
			csvRow("1", "90", "0", "0.3"),
			csvRow("2", "90", "0", "0.1"),
		)

		got, err := ReadMeasurements(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0.3, got[0].Time)
		assert.Equal(t, 0.1, got[1].Time)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeCSV(t)
		_, err := ReadMeasurements(path)
		assert.ErrorIs(t, err, track.ErrEmptyInput)
	})

	t.Run("header only", func(t *testing.T) {
		path := writeCSV(t, csvHeader)
		_, err := ReadMeasurements(path)
		assert.ErrorIs(t, err, track.ErrEmptyInput)
	})

	t.Run("short row reports row number", func(t *testing.T) {
		path := writeCSV(t, csvHeader, "1,2,3\n")
		_, err := ReadMeasurements(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("non-positive range rejected", func(t *testing.T) {
		path := writeCSV(t, csvHeader, csvRow("0", "90", "0", "0.5"))
		_, err := ReadMeasurements(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "range must be positive")
	})

	t.Run("unparsable field rejected", func(t *testing.T) {
		path := writeCSV(t, csvHeader, csvRow("10", "north", "0", "0.5"))
		_, err := ReadMeasurements(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse azimuth")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadMeasurements(filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})
}
