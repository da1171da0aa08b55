package track

import (
	"errors"
	"fmt"
	"log"
)

// Update is the per-scan emission of the tracking loop once the filter
// is in the Tracking phase.
type Update struct {
	TrackID    int
	ScanIndex  int
	Time       float64
	State      [6]float64
	Covariance [36]float64 // row-major 6x6
	// Associated reports whether a gated measurement was folded into
	// the state this cycle. When false the estimate is the coasted
	// prediction.
	Associated bool
	// Candidates is the number of measurements that passed gating.
	Candidates int
	// Measurement is the associated measurement, nil when coasting.
	Measurement *Measurement
}

// UpdateSink receives per-scan track updates. Implementations must not
// retain the pointer fields beyond the call.
type UpdateSink interface {
	RecordUpdate(Update) error
}

// Loop orchestrates the track lifecycle over a scan sequence:
// bootstrap, per-scan prediction, gating, association and update. It
// is the only component with cross-cutting control flow; everything
// runs synchronously on the caller's goroutine.
type Loop struct {
	cfg       Config
	alloc     *Allocator
	filter    *Filter
	sink      UpdateSink
	scanIndex int
}

// NewLoop creates a loop with a fresh allocator and filter. sink may
// be nil to discard emissions.
func NewLoop(cfg Config, sink UpdateSink) *Loop {
	alloc := NewAllocator()
	return &Loop{
		cfg:    cfg,
		alloc:  alloc,
		filter: NewFilter(cfg, alloc),
		sink:   sink,
	}
}

// Filter exposes the loop's filter for inspection.
func (l *Loop) Filter() *Filter { return l.filter }

// Allocator exposes the loop's id arena.
func (l *Loop) Allocator() *Allocator { return l.alloc }

// ProcessScan advances the track by one scan. During bootstrap the
// scan's first measurement drives the phase machine; in the Tracking
// phase a full predict/associate/update cycle runs against the whole
// scan. Estimation errors (non-monotonic time, singular innovation
// covariance) are returned to the caller but never corrupt the last
// valid filter state.
func (l *Loop) ProcessScan(scan Scan) error {
	if len(scan) == 0 {
		return ErrEmptyInput
	}
	l.scanIndex++

	switch l.filter.Phase() {
	case PhaseUninitialized, PhaseBootstrap1:
		return l.filter.Observe(scan[0])
	default:
		// The Bootstrap2 observation transitions into Tracking; both
		// it and steady-state scans run the full cycle.
		if err := l.filter.Observe(scan[0]); err != nil {
			return err
		}
		return l.cycle(scan)
	}
}

// cycle runs predict, gate/associate, and update for one scan, then
// emits the resulting estimate.
func (l *Loop) cycle(scan Scan) error {
	t := scan.BaseTime()
	if err := l.filter.Predict(t); err != nil {
		return err
	}

	best, candidates, err := Associate(l.filter, scan)
	if err != nil {
		// Degenerate innovation covariance: abort this cycle's
		// association, keep the prediction as the estimate, and
		// surface the condition.
		l.filter.Coast()
		if emitErr := l.emit(t, nil, 0); emitErr != nil {
			return emitErr
		}
		return err
	}

	if best == nil {
		// No gated candidate. Expected outcome: the prediction stands
		// as the current best estimate.
		l.filter.Coast()
		return l.emit(t, nil, 0)
	}

	if err := l.filter.Update(best.Measurement); err != nil {
		l.filter.Coast()
		if emitErr := l.emit(t, nil, len(candidates)); emitErr != nil {
			return emitErr
		}
		return err
	}
	return l.emit(t, best, len(candidates))
}

func (l *Loop) emit(t float64, best *Hypothesis, candidates int) error {
	if l.sink == nil {
		return nil
	}

	u := Update{
		TrackID:    l.filter.ID(),
		ScanIndex:  l.scanIndex,
		Time:       t,
		State:      l.filter.State(),
		Associated: best != nil,
		Candidates: candidates,
	}
	cov := l.filter.Covariance()
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			u.Covariance[i*6+j] = cov.At(i, j)
		}
	}
	if best != nil {
		m := best.Measurement
		u.Measurement = &m
	}

	if err := l.sink.RecordUpdate(u); err != nil {
		return fmt.Errorf("record update: %w", err)
	}
	return nil
}

// Run processes scans in order. Estimation failures are local to a
// scan: they are logged and the loop continues with the filter's last
// valid state. Sink failures abort the run.
func (l *Loop) Run(scans []Scan) error {
	for _, scan := range scans {
		err := l.ProcessScan(scan)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNonMonotonicTime) || errors.Is(err, ErrSingularInnovation) {
			log.Printf("scan %d: %v (last valid estimate retained)", l.scanIndex, err)
			continue
		}
		return fmt.Errorf("scan %d: %w", l.scanIndex, err)
	}
	return nil
}
