package domain

import "math"

// earthRadiusMeters is the mean Earth radius used for haversine distances.
const earthRadiusMeters = 6371000.0

// Latitude is a latitude in degrees, bounded to [-90, 90].
type Latitude float64

// Longitude is a longitude in degrees, bounded to [-180, 180].
type Longitude float64

// Distance is a non-negative length in meters.
type Distance float64

// Elevation is a height above sea level in whole meters.
type Elevation int

// NewLatitude validates the latitude range.
func NewLatitude(value float64) (Latitude, error) {
	if value < -90 || value > 90 {
		return 0, Errorf(KindValidation, "latitude must be between -90 and 90, got %v", value)
	}
	return Latitude(value), nil
}

// NewLongitude validates the longitude range.
func NewLongitude(value float64) (Longitude, error) {
	if value < -180 || value > 180 {
		return 0, Errorf(KindValidation, "longitude must be between -180 and 180, got %v", value)
	}
	return Longitude(value), nil
}

// NewDistance validates that the distance is non-negative.
func NewDistance(value float64) (Distance, error) {
	if value < 0 {
		return 0, Errorf(KindValidation, "distance must be non-negative, got %v", value)
	}
	return Distance(value), nil
}

// Coordinate is a geographic point. Elevation and DistanceFromStart are
// attached after construction: elevation at most once, the cumulative
// distance on every attach pass.
type Coordinate struct {
	Latitude          Latitude
	Longitude         Longitude
	Elevation         *Elevation
	DistanceFromStart *Distance
}

// NewCoordinate validates both components.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	latitude, err := NewLatitude(lat)
	if err != nil {
		return Coordinate{}, err
	}
	longitude, err := NewLongitude(lon)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Latitude: latitude, Longitude: longitude}, nil
}

// SetElevation attaches an elevation. A coordinate's elevation is written
// at most once; a second call fails.
func (c *Coordinate) SetElevation(elevation Elevation) error {
	if c.Elevation != nil {
		return NewDomainError("elevation is already set")
	}
	c.Elevation = &elevation
	return nil
}

// SetDistanceFromStart attaches the cumulative distance. Unlike elevation
// it is overwritable: the attach pass recomputes it on every edit.
func (c *Coordinate) SetDistanceFromStart(distance Distance) {
	c.DistanceFromStart = &distance
}

// SamePosition compares only latitude and longitude.
func (c Coordinate) SamePosition(other Coordinate) bool {
	return c.Latitude == other.Latitude && c.Longitude == other.Longitude
}

// HaversineTo returns the great-circle distance to other in meters.
func (c Coordinate) HaversineTo(other Coordinate) Distance {
	lat1 := float64(c.Latitude) * math.Pi / 180
	lat2 := float64(other.Latitude) * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (float64(other.Longitude) - float64(c.Longitude)) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return Distance(2 * earthRadiusMeters * math.Asin(math.Sqrt(a)))
}
