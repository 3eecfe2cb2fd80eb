package elevation

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/veloroute/veloroute_core/internal/domain"
)

const (
	// SRTM void marker for cells with no measurement.
	voidValue = -32768

	srtm1Size = 3601 // 1 arc-second tiles
	srtm3Size = 1201 // 3 arc-second tiles
)

// Store reads elevations from SRTM .hgt tiles in a local directory.
// Tiles are loaded lazily and kept in memory; a missing tile is cached
// so repeated lookups outside the dataset stay cheap.
type Store struct {
	dir string

	mu    sync.Mutex
	tiles map[string]*tile
}

// tile is one parsed .hgt file: size*size big-endian int16 samples,
// rows running north to south.
type tile struct {
	data []byte
	size int
}

// NewStore builds a store over the given tile directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir, tiles: make(map[string]*tile)}
}

// NewStoreFromEnv reads the tile directory from ELEVATION_DIR.
func NewStoreFromEnv() *Store {
	dir := os.Getenv("ELEVATION_DIR")
	if dir == "" {
		dir = "./elevation"
	}
	return NewStore(dir)
}

// Lookup returns the elevation at coord, or false when the coordinate
// falls outside the loaded tiles or on a void cell.
func (s *Store) Lookup(coord domain.Coordinate) (domain.Elevation, bool) {
	lat := float64(coord.Latitude)
	lon := float64(coord.Longitude)

	t := s.tile(tileName(lat, lon))
	if t == nil {
		return 0, false
	}

	// Fractional position inside the tile; row 0 is the northern edge.
	fracLat := lat - math.Floor(lat)
	fracLon := lon - math.Floor(lon)
	row := (t.size - 1) - int(math.Round(fracLat*float64(t.size-1)))
	col := int(math.Round(fracLon * float64(t.size-1)))

	idx := (row*t.size + col) * 2
	value := int16(binary.BigEndian.Uint16(t.data[idx : idx+2]))
	if value == voidValue {
		return 0, false
	}
	return domain.Elevation(value), true
}

// tile returns the cached tile, loading it on first use. nil marks a
// tile known to be absent or unreadable.
func (s *Store) tile(name string) *tile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tiles[name]; ok {
		return t
	}
	t := s.load(name)
	s.tiles[name] = t
	return t
}

func (s *Store) load(name string) *tile {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("elevation: failed to read tile %s: %v", name, err)
		}
		return nil
	}
	switch len(data) {
	case srtm1Size * srtm1Size * 2:
		return &tile{data: data, size: srtm1Size}
	case srtm3Size * srtm3Size * 2:
		return &tile{data: data, size: srtm3Size}
	default:
		log.Printf("elevation: tile %s has unexpected size %d", name, len(data))
		return nil
	}
}

// tileName maps a coordinate to its SRTM tile, e.g. N35E139.hgt. The
// tile is named after its south-west corner.
func tileName(lat, lon float64) string {
	latCell := int(math.Floor(lat))
	lonCell := int(math.Floor(lon))

	ns, ew := "N", "E"
	if latCell < 0 {
		ns = "S"
		latCell = -latCell
	}
	if lonCell < 0 {
		ew = "W"
		lonCell = -lonCell
	}
	return fmt.Sprintf("%s%02d%s%03d.hgt", ns, latCell, ew, lonCell)
}
