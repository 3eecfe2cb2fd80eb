package elevation

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloroute/veloroute_core/internal/domain"
)

func coord(t *testing.T, lat, lon float64) domain.Coordinate {
	t.Helper()
	c, err := domain.NewCoordinate(lat, lon)
	require.NoError(t, err)
	return c
}

// writeTile synthesizes a 3 arc-second tile filled with fill, with
// per-cell overrides keyed by (row, col).
func writeTile(t *testing.T, dir, name string, fill int16, overrides map[[2]int]int16) {
	t.Helper()
	data := make([]byte, srtm3Size*srtm3Size*2)
	for i := 0; i < srtm3Size*srtm3Size; i++ {
		binary.BigEndian.PutUint16(data[i*2:], uint16(fill))
	}
	for cell, value := range overrides {
		idx := (cell[0]*srtm3Size + cell[1]) * 2
		binary.BigEndian.PutUint16(data[idx:], uint16(value))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestTileName(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{35.46798, 139.62607, "N35E139.hgt"},
		{35.0, 139.0, "N35E139.hgt"},
		{-33.86, 151.21, "S34E151.hgt"},
		{51.47, -0.45, "N51W001.hgt"},
		{-22.95, -43.21, "S23W044.hgt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tileName(tt.lat, tt.lon))
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N35E139.hgt", 100, map[[2]int]int16{
		// South-west corner of the tile, i.e. exactly (35.0, 139.0).
		{srtm3Size - 1, 0}: 555,
		// North-east corner, i.e. exactly (36.0, 140.0) on this tile's edge.
		{0, srtm3Size - 1}: voidValue,
	})
	store := NewStore(dir)

	t.Run("interior sample", func(t *testing.T) {
		elev, ok := store.Lookup(coord(t, 35.46798, 139.62607))
		require.True(t, ok)
		assert.Equal(t, domain.Elevation(100), elev)
	})

	t.Run("exact corner", func(t *testing.T) {
		elev, ok := store.Lookup(coord(t, 35.0, 139.0))
		require.True(t, ok)
		assert.Equal(t, domain.Elevation(555), elev)
	})

	t.Run("void cell", func(t *testing.T) {
		_, ok := store.Lookup(coord(t, 35.9999999, 139.9999999))
		assert.False(t, ok)
	})

	t.Run("missing tile", func(t *testing.T) {
		_, ok := store.Lookup(coord(t, 51.47, -0.45))
		assert.False(t, ok)
	})
}

func TestLookupNegativeElevation(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N35E139.hgt", -42, nil)

	elev, ok := NewStore(dir).Lookup(coord(t, 35.5, 139.5))
	require.True(t, ok)
	assert.Equal(t, domain.Elevation(-42), elev)
}

func TestLookupRejectsTruncatedTile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "N35E139.hgt"), make([]byte, 1000), 0o644))

	_, ok := NewStore(dir).Lookup(coord(t, 35.5, 139.5))
	assert.False(t, ok)
}
