package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDrawingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DrawingMode
		wantErr bool
	}{
		{"follow_road", DrawingModeFollowRoad, false},
		{"freehand", DrawingModeFreehand, false},
		{"", "", true},
		{"teleport", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDrawingMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSegmentSetPoints(t *testing.T) {
	start := mustCoord(t, 35.0, 139.0)
	goal := mustCoord(t, 35.1, 139.1)
	mid := mustCoord(t, 35.05, 139.05)

	t.Run("fills an empty segment", func(t *testing.T) {
		seg := NewEmptySegment(start, goal, DrawingModeFollowRoad)
		require.True(t, seg.IsEmpty())
		require.NoError(t, seg.SetPoints([]Coordinate{start, mid, goal}))
		assert.False(t, seg.IsEmpty())
		assert.Len(t, seg.Points, 3)
	})

	t.Run("second call fails", func(t *testing.T) {
		seg := NewEmptySegment(start, goal, DrawingModeFollowRoad)
		require.NoError(t, seg.SetPoints([]Coordinate{start, goal}))
		err := seg.SetPoints([]Coordinate{start, goal})
		require.Error(t, err)
		assert.Equal(t, KindDomain, KindOf(err))
	})

	t.Run("endpoints must match", func(t *testing.T) {
		seg := NewEmptySegment(start, goal, DrawingModeFollowRoad)
		err := seg.SetPoints([]Coordinate{mid, goal})
		require.Error(t, err)

		seg = NewEmptySegment(start, goal, DrawingModeFollowRoad)
		err = seg.SetPoints([]Coordinate{start, mid})
		require.Error(t, err)
	})

	t.Run("empty path rejected", func(t *testing.T) {
		seg := NewEmptySegment(start, goal, DrawingModeFollowRoad)
		assert.Error(t, seg.SetPoints(nil))
	})
}

func TestSegmentDistances(t *testing.T) {
	yokohama := mustCoord(t, 35.46798, 139.62607)
	tokyo := mustCoord(t, 35.68048, 139.76906)

	seg := NewEmptySegment(yokohama, tokyo, DrawingModeFreehand)
	require.NoError(t, seg.SetPoints([]Coordinate{yokohama, tokyo}))

	t.Run("zero before the attach pass", func(t *testing.T) {
		assert.Equal(t, Distance(0), seg.GetDistance())
	})

	seg.CalcDistanceFromStart()

	t.Run("cumulative from zero", func(t *testing.T) {
		require.NotNil(t, seg.Points[0].DistanceFromStart)
		assert.Equal(t, Distance(0), *seg.Points[0].DistanceFromStart)
		assert.InDelta(t, 26936.426, float64(seg.GetDistance()), 1.0)
	})

	t.Run("offset shifts every point", func(t *testing.T) {
		seg.SetDistanceOffset(1000)
		assert.InDelta(t, 1000, float64(*seg.Points[0].DistanceFromStart), 1e-6)
		assert.InDelta(t, 27936.426, float64(seg.GetDistance()), 1.0)
	})
}

func TestSegmentResetEndpoints(t *testing.T) {
	start := mustCoord(t, 35.0, 139.0)
	goal := mustCoord(t, 35.1, 139.1)
	moved := mustCoord(t, 35.2, 139.2)

	seg := NewEmptySegment(start, goal, DrawingModeFollowRoad)
	require.NoError(t, seg.SetPoints([]Coordinate{start, goal}))

	seg.ResetEndpoints(&moved, nil)

	assert.True(t, seg.Start.SamePosition(moved))
	assert.True(t, seg.Goal.SamePosition(goal))
	assert.True(t, seg.IsEmpty(), "reset must clear interpolated points")
}

func TestSegmentEqualIgnoresID(t *testing.T) {
	start := mustCoord(t, 35.0, 139.0)
	goal := mustCoord(t, 35.1, 139.1)

	a := NewEmptySegment(start, goal, DrawingModeFollowRoad)
	b := NewEmptySegment(start, goal, DrawingModeFollowRoad)
	require.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Equal(b))

	c := NewEmptySegment(start, goal, DrawingModeFreehand)
	assert.False(t, a.Equal(c))
}
