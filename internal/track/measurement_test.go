package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormScans(t *testing.T) {
	t.Parallel()

	t.Run("groups by window from base time", func(t *testing.T) {
		measurements := []Measurement{
			{X: 1, Time: 0.00},
			{X: 2, Time: 0.02},
			{X: 3, Time: 0.04},
			{X: 4, Time: 0.10},
		}

		scans, err := FormScans(measurements, 0.05)
		require.NoError(t, err)
		require.Len(t, scans, 2)
		assert.Equal(t, Scan{measurements[0], measurements[1], measurements[2]}, scans[0])
		assert.Equal(t, Scan{measurements[3]}, scans[1])
		assert.Equal(t, 0.00, scans[0].BaseTime())
		assert.Equal(t, 0.10, scans[1].BaseTime())
	})

	t.Run("window is measured from scan base, not previous measurement", func(t *testing.T) {
		// t=0.04 is within 0.05 of t=0.00 but t=0.08 is not, even though
		// each consecutive gap is only 0.04.
		measurements := []Measurement{
			{Time: 0.00},
			{Time: 0.04},
			{Time: 0.08},
		}

		scans, err := FormScans(measurements, 0.05)
		require.NoError(t, err)
		require.Len(t, scans, 2)
		assert.Len(t, scans[0], 2)
		assert.Len(t, scans[1], 1)
	})

	t.Run("boundary timestamp joins the scan", func(t *testing.T) {
		scans, err := FormScans([]Measurement{{Time: 0.00}, {Time: 0.05}}, 0.05)
		require.NoError(t, err)
		require.Len(t, scans, 1)
		assert.Len(t, scans[0], 2)
	})

	t.Run("single measurement", func(t *testing.T) {
		scans, err := FormScans([]Measurement{{X: 7, Time: 1.5}}, 0.05)
		require.NoError(t, err)
		require.Len(t, scans, 1)
		assert.Equal(t, 7.0, scans[0][0].X)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := FormScans(nil, 0.05)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestScanBuilder(t *testing.T) {
	t.Parallel()

	t.Run("matches FormScans on the same stream", func(t *testing.T) {
		measurements := []Measurement{
			{X: 1, Time: 0.00},
			{X: 2, Time: 0.02},
			{X: 3, Time: 0.04},
			{X: 4, Time: 0.10},
			{X: 5, Time: 0.13},
			{X: 6, Time: 0.30},
		}

		want, err := FormScans(measurements, 0.05)
		require.NoError(t, err)

		b := NewScanBuilder(0.05)
		var got []Scan
		for _, m := range measurements {
			if scan, ok := b.Add(m); ok {
				got = append(got, scan)
			}
		}
		if scan, ok := b.Flush(); ok {
			got = append(got, scan)
		}

		assert.Equal(t, want, got)
	})

	t.Run("flush on empty builder", func(t *testing.T) {
		b := NewScanBuilder(0.05)
		_, ok := b.Flush()
		assert.False(t, ok)
	})

	t.Run("flush resets", func(t *testing.T) {
		b := NewScanBuilder(0.05)
		b.Add(Measurement{Time: 0.00})
		_, ok := b.Flush()
		require.True(t, ok)
		_, ok = b.Flush()
		assert.False(t, ok)
	})
}
