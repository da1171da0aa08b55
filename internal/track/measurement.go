package track

import "errors"

// DefaultMaxTimeDiff is the default scan window: measurements whose
// timestamps fall within this many seconds of a scan's first
// measurement belong to the same scan.
const DefaultMaxTimeDiff = 0.050

// ErrEmptyInput is returned when a non-empty measurement sequence is
// required but none was supplied.
var ErrEmptyInput = errors.New("empty measurement input")

// Measurement is a single sensor report in the common Cartesian world
// frame. Polar (range/azimuth/elevation) records are converted at the
// ingest boundary before they reach this package.
type Measurement struct {
	X, Y, Z float64 // position (metres)
	Time    float64 // seconds since sensor epoch
}

// Scan is an ordered, non-empty batch of measurements treated as
// simultaneous for association purposes. All timestamps lie within the
// grouping window of the first measurement.
type Scan []Measurement

// BaseTime returns the timestamp of the scan's first measurement.
func (s Scan) BaseTime() float64 {
	return s[0].Time
}

// FormScans partitions a chronologically sorted measurement sequence
// into scans. A measurement joins the current scan while its timestamp
// is within maxTimeDiff of the scan's base time; otherwise it opens a
// new scan with itself as the new base. No measurement is dropped or
// reordered.
func FormScans(measurements []Measurement, maxTimeDiff float64) ([]Scan, error) {
	if len(measurements) == 0 {
		return nil, ErrEmptyInput
	}

	var scans []Scan
	current := Scan{measurements[0]}
	baseTime := measurements[0].Time

	for _, m := range measurements[1:] {
		if m.Time-baseTime <= maxTimeDiff {
			current = append(current, m)
			continue
		}
		scans = append(scans, current)
		current = Scan{m}
		baseTime = m.Time
	}
	scans = append(scans, current)

	return scans, nil
}

// ScanBuilder groups a live measurement stream into scans using the
// same window rule as FormScans. Add returns the completed scan when
// the incoming measurement falls outside the current window; Flush
// returns whatever is buffered at end of stream.
type ScanBuilder struct {
	maxTimeDiff float64
	current     Scan
	baseTime    float64
}

// NewScanBuilder creates a builder with the given window in seconds.
func NewScanBuilder(maxTimeDiff float64) *ScanBuilder {
	return &ScanBuilder{maxTimeDiff: maxTimeDiff}
}

// Add buffers m and returns the previously open scan if m starts a
// new one.
func (b *ScanBuilder) Add(m Measurement) (Scan, bool) {
	if len(b.current) == 0 {
		b.current = Scan{m}
		b.baseTime = m.Time
		return nil, false
	}
	if m.Time-b.baseTime <= b.maxTimeDiff {
		b.current = append(b.current, m)
		return nil, false
	}
	done := b.current
	b.current = Scan{m}
	b.baseTime = m.Time
	return done, true
}

// Flush returns the open scan, if any, and resets the builder.
func (b *ScanBuilder) Flush() (Scan, bool) {
	if len(b.current) == 0 {
		return nil, false
	}
	done := b.current
	b.current = nil
	return done, true
}
