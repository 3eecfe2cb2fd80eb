package gpx

import (
	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/veloroute/veloroute_core/internal/domain"
)

// Build renders a route's interpolated path as a GPX 1.1 document with
// one track containing one track segment. Adjacent segments share their
// boundary waypoint, which is emitted once.
func Build(name string, segments []*domain.Segment) ([]byte, error) {
	points := flatten(segments)

	trkseg := gpxgo.GPXTrackSegment{}
	for _, p := range points {
		point := gpxgo.GPXPoint{}
		point.Latitude = float64(p.Latitude)
		point.Longitude = float64(p.Longitude)
		if p.Elevation != nil {
			point.Elevation = *gpxgo.NewNullableFloat64(float64(*p.Elevation))
		}
		trkseg.Points = append(trkseg.Points, point)
	}

	doc := &gpxgo.GPX{
		Version:          "1.1",
		Creator:          "veloroute",
		Name:             name,
		XMLNs:            "http://www.topografix.com/GPX/1/1",
		XmlNsXsi:         "http://www.w3.org/2001/XMLSchema-instance",
		XmlSchemaLoc:     "http://www.topografix.com/GPX/11.xsd",
		Tracks: []gpxgo.GPXTrack{{
			Name:     name,
			Segments: []gpxgo.GPXTrackSegment{trkseg},
		}},
	}

	body, err := doc.ToXml(gpxgo.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, domain.WrapError(domain.KindDomain, "failed to render gpx", err)
	}
	return body, nil
}

func flatten(segments []*domain.Segment) []domain.Coordinate {
	var points []domain.Coordinate
	for _, seg := range segments {
		for _, p := range seg.Points {
			if len(points) > 0 && points[len(points)-1].SamePosition(p) {
				continue
			}
			points = append(points, p)
		}
	}
	return points
}
