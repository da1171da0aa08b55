// Package ingest produces Cartesian measurements from sensor record
// sources: CSV export files and live serial ports. Records carry
// polar readings (range in metres, azimuth/elevation in degrees with
// a north-referenced clockwise azimuth) plus a timestamp in seconds;
// conversion to the world Cartesian frame happens here, at the
// boundary, so the estimation core only ever sees Cartesian input.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/track"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// Sensor export column offsets for the measured range, azimuth,
// elevation and time fields.
const (
	colRange     = 7
	colAzimuth   = 8
	colElevation = 9
	colTime      = 10
)

// ReadMeasurements reads a sensor CSV export, skipping the header row,
// and returns the records converted to Cartesian measurements in file
// order.
func ReadMeasurements(path string) ([]track.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open measurements file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Header row.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("measurements file %s: %w", path, track.ErrEmptyInput)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var measurements []track.Measurement
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		row++

		if len(record) <= colTime {
			return nil, fmt.Errorf("row %d: expected at least %d columns, got %d", row, colTime+1, len(record))
		}

		m, err := polarRecord(record[colRange], record[colAzimuth], record[colElevation], record[colTime])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		measurements = append(measurements, m)
	}

	if len(measurements) == 0 {
		return nil, fmt.Errorf("measurements file %s: %w", path, track.ErrEmptyInput)
	}
	return measurements, nil
}

// polarRecord parses one polar record (range, azimuth deg, elevation
// deg, time) and converts it to a Cartesian measurement.
func polarRecord(mr, ma, me, mt string) (track.Measurement, error) {
	r, err := strconv.ParseFloat(mr, 64)
	if err != nil {
		return track.Measurement{}, fmt.Errorf("parse range %q: %w", mr, err)
	}
	azDeg, err := strconv.ParseFloat(ma, 64)
	if err != nil {
		return track.Measurement{}, fmt.Errorf("parse azimuth %q: %w", ma, err)
	}
	elDeg, err := strconv.ParseFloat(me, 64)
	if err != nil {
		return track.Measurement{}, fmt.Errorf("parse elevation %q: %w", me, err)
	}
	t, err := strconv.ParseFloat(mt, 64)
	if err != nil {
		return track.Measurement{}, fmt.Errorf("parse time %q: %w", mt, err)
	}
	if r <= 0 {
		return track.Measurement{}, fmt.Errorf("range must be positive, got %g", r)
	}

	az := units.CompassToMathAz(units.DegToRad(azDeg))
	el := units.DegToRad(elDeg)
	x, y, z := geo.SphToCart(az, el, r)

	return track.Measurement{X: x, Y: y, Z: z, Time: t}, nil
}
