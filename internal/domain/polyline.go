package domain

import (
	polyline "github.com/twpayne/go-polyline"
)

// The wire polyline is Google's encoded format at precision 5 with each
// point stored as lon,lat. Elevation and cumulative distance are not
// encoded.
var polylineCodec = polyline.Codec{Dim: 2, Scale: 1e5}

// EncodePolyline encodes coordinates as a precision-5 polyline string.
// An empty slice encodes to the empty string.
func EncodePolyline(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	pairs := make([][]float64, len(coords))
	for i, c := range coords {
		pairs[i] = []float64{float64(c.Longitude), float64(c.Latitude)}
	}
	return string(polylineCodec.EncodeCoords(nil, pairs))
}

// DecodePolyline decodes a precision-5 polyline string. The empty string
// decodes to an empty slice.
func DecodePolyline(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return []Coordinate{}, nil
	}
	pairs, rest, err := polylineCodec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, WrapError(KindValidation, "malformed polyline", err)
	}
	if len(rest) != 0 {
		return nil, NewValidationError("trailing bytes after polyline")
	}
	coords := make([]Coordinate, len(pairs))
	for i, p := range pairs {
		c, err := NewCoordinate(p[1], p[0])
		if err != nil {
			return nil, err
		}
		coords[i] = c
	}
	return coords, nil
}

// DecodePolylinePoint decodes a polyline and returns its first point.
// Fails when the polyline is empty.
func DecodePolylinePoint(encoded string) (Coordinate, error) {
	coords, err := DecodePolyline(encoded)
	if err != nil {
		return Coordinate{}, err
	}
	if len(coords) == 0 {
		return Coordinate{}, NewDomainError("polyline contains no points")
	}
	return coords[0], nil
}
