package track

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records every emitted update for inspection.
type captureSink struct {
	updates []Update
	failOn  int // scan index that triggers a sink error, 0 disables
}

func (s *captureSink) RecordUpdate(u Update) error {
	if s.failOn != 0 && u.ScanIndex == s.failOn {
		return errors.New("sink full")
	}
	s.updates = append(s.updates, u)
	return nil
}

func TestLoopBootstrapScenario(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	loop := NewLoop(DefaultConfig(), sink)

	// Scan 1 seeds position, scan 2 records bootstrap velocity, scan 3
	// runs the first full cycle.
	require.NoError(t, loop.ProcessScan(Scan{{X: 1, Y: 2, Z: 3, Time: 0}}))
	assert.Equal(t, PhaseBootstrap1, loop.Filter().Phase())
	assert.Equal(t, [6]float64{1, 2, 3, 0, 0, 0}, loop.Filter().State())
	assert.Empty(t, sink.updates)

	require.NoError(t, loop.ProcessScan(Scan{{X: 4, Y: 6, Z: 3, Time: 1}}))
	assert.Equal(t, PhaseBootstrap2, loop.Filter().Phase())
	assert.Equal(t, [3]float64{-3, -4, 0}, loop.Filter().BootstrapVelocity())
	assert.Equal(t, [6]float64{1, 2, 3, 0, 0, 0}, loop.Filter().State())
	assert.Empty(t, sink.updates)

	require.NoError(t, loop.ProcessScan(Scan{{X: 7, Y: 10, Z: 3, Time: 2}}))
	assert.Equal(t, PhaseTracking, loop.Filter().Phase())
	require.Len(t, sink.updates, 1)

	u := sink.updates[0]
	assert.Equal(t, 1, u.TrackID)
	assert.Equal(t, 3, u.ScanIndex)
	assert.Equal(t, 2.0, u.Time)
	assert.True(t, u.Associated)
	assert.Equal(t, 1, u.Candidates)
	require.NotNil(t, u.Measurement)
	assert.Equal(t, Measurement{X: 7, Y: 10, Z: 3, Time: 2}, *u.Measurement)
	// The update pulls the estimate from the held position toward the
	// associated measurement.
	assert.Greater(t, u.State[0], 1.0)
	assert.LessOrEqual(t, u.State[0], 7.0)
}

func TestLoopEmptyScan(t *testing.T) {
	t.Parallel()

	loop := NewLoop(DefaultConfig(), nil)
	assert.ErrorIs(t, loop.ProcessScan(nil), ErrEmptyInput)
}

func TestLoopTracksConstantVelocityTarget(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	loop := NewLoop(DefaultConfig(), sink)

	// Noise-free target starting at the origin, moving +1 m/s in x,
	// reported every 0.1 s as single-measurement scans.
	var scans []Scan
	for i := 0; i < 30; i++ {
		ts := float64(i) * 0.1
		scans = append(scans, Scan{{X: ts, Y: 0, Z: 0, Time: ts}})
	}
	require.NoError(t, loop.Run(scans))

	// First two scans are bootstrap-only, the rest all emit.
	require.Len(t, sink.updates, 28)
	for _, u := range sink.updates {
		assert.True(t, u.Associated)
		assert.Equal(t, 1, u.TrackID)
	}

	// After convergence the estimate locks onto the trajectory.
	last := sink.updates[len(sink.updates)-1]
	assert.InDelta(t, 2.9, last.State[0], 0.05)
	assert.InDelta(t, 0, last.State[1], 0.05)
	assert.InDelta(t, 1.0, last.State[3], 0.2)
	assert.InDelta(t, 0, last.State[4], 0.2)
}

func TestLoopCoastsWhenNothingGates(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	loop := NewLoop(DefaultConfig(), sink)

	require.NoError(t, loop.ProcessScan(Scan{{X: 1, Y: 2, Z: 3, Time: 0}}))
	require.NoError(t, loop.ProcessScan(Scan{{X: 1, Y: 2, Z: 3.1, Time: 1}}))
	loop.Filter().SetGateThreshold(1e-9)

	// Outlier scan: nothing passes the gate, so the prediction stands.
	require.NoError(t, loop.ProcessScan(Scan{{X: 500, Y: 500, Z: 500, Time: 2}}))
	require.Len(t, sink.updates, 1)

	u := sink.updates[0]
	assert.False(t, u.Associated)
	assert.Equal(t, 0, u.Candidates)
	assert.Nil(t, u.Measurement)
	assert.Equal(t, loop.Filter().PredictedState(), u.State)
	assert.Equal(t, loop.Filter().PredictedState(), loop.Filter().State())
}

func TestLoopRunSkipsNonMonotonicScan(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	loop := NewLoop(DefaultConfig(), sink)

	scans := []Scan{
		{{X: 0, Y: 0, Z: 0, Time: 0.0}},
		{{X: 0.1, Y: 0, Z: 0, Time: 0.1}},
		{{X: 0.2, Y: 0, Z: 0, Time: 0.2}},
		{{X: 0.15, Y: 0, Z: 0, Time: 0.15}}, // out of order, skipped
		{{X: 0.3, Y: 0, Z: 0, Time: 0.3}},
	}
	require.NoError(t, loop.Run(scans))

	// The bad scan is dropped; the surrounding cycles still emit.
	require.Len(t, sink.updates, 2)
	assert.Equal(t, 0.2, sink.updates[0].Time)
	assert.Equal(t, 0.3, sink.updates[1].Time)
	for _, u := range sink.updates {
		for _, v := range u.State {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestLoopRunAbortsOnSinkError(t *testing.T) {
	t.Parallel()

	sink := &captureSink{failOn: 4}
	loop := NewLoop(DefaultConfig(), sink)

	var scans []Scan
	for i := 0; i < 6; i++ {
		ts := float64(i) * 0.1
		scans = append(scans, Scan{{X: ts, Y: 0, Z: 0, Time: ts}})
	}
	err := loop.Run(scans)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink full")
	assert.Len(t, sink.updates, 1) // scan 3 only
}
