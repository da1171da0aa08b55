package ingest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/track"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	t.Run("valid record", func(t *testing.T) {
		m, err := ParseLine("10,90,0,0.5")
		require.NoError(t, err)
		assert.InDelta(t, 10, m.X, 1e-9)
		assert.InDelta(t, 0, m.Y, 1e-9)
		assert.Equal(t, 0.5, m.Time)
	})

	t.Run("tolerates field whitespace", func(t *testing.T) {
		m, err := ParseLine(" 10 , 90 , 0 , 0.5 ")
		require.NoError(t, err)
		assert.InDelta(t, 10, m.X, 1e-9)
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := ParseLine("10,90,0")
		assert.ErrorContains(t, err, "expected 4 fields")
	})

	t.Run("unparsable field", func(t *testing.T) {
		_, err := ParseLine("10,90,up,0.5")
		assert.Error(t, err)
	})
}

func TestMonitor(t *testing.T) {
	t.Parallel()

	t.Run("streams parsed lines and skips garbage", func(t *testing.T) {
		input := strings.Join([]string{
			"10,90,0,0.5",
			"",
			"bogus line",
			"5,0,0,0.6",
		}, "\n") + "\n"
		port := newSensorPortFromReader(io.NopCloser(strings.NewReader(input)))

		done := make(chan error, 1)
		go func() { done <- port.Monitor(context.Background()) }()

		var got []track.Measurement
		for m := range port.Measurements() {
			got = append(got, m)
		}
		require.NoError(t, <-done)

		require.Len(t, got, 2)
		assert.Equal(t, 0.5, got[0].Time)
		assert.Equal(t, 0.6, got[1].Time)
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		// A blocked pipe keeps the scanner waiting; cancellation must
		// still shut the monitor down once a line is pending delivery.
		pr, pw := io.Pipe()
		port := newSensorPortFromReader(pr)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- port.Monitor(ctx) }()

		go pw.Write([]byte("10,90,0,0.5\n"))
		cancel()

		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
		_, open := <-port.Measurements()
		assert.False(t, open)
	})
}
