package domain

import "github.com/google/uuid"

// DrawingMode selects how a segment connects its endpoints.
type DrawingMode string

const (
	// DrawingModeFollowRoad interpolates the segment along the road network.
	DrawingModeFollowRoad DrawingMode = "follow_road"
	// DrawingModeFreehand keeps a straight line between the endpoints.
	DrawingModeFreehand DrawingMode = "freehand"
)

// ParseDrawingMode validates a wire-format drawing mode.
func ParseDrawingMode(value string) (DrawingMode, error) {
	switch DrawingMode(value) {
	case DrawingModeFollowRoad, DrawingModeFreehand:
		return DrawingMode(value), nil
	default:
		return "", Errorf(KindValidation, "unknown drawing mode %q", value)
	}
}

// SegmentTemplate is the minimal descriptor of a segment before
// interpolation: the two endpoints and the drawing mode.
type SegmentTemplate struct {
	Start Coordinate
	Goal  Coordinate
	Mode  DrawingMode
}

// Expand materializes the template as an empty segment.
func (t SegmentTemplate) Expand() *Segment {
	return NewEmptySegment(t.Start, t.Goal, t.Mode)
}

// Equal compares endpoints by position and the mode.
func (t SegmentTemplate) Equal(other SegmentTemplate) bool {
	return t.Start.SamePosition(other.Start) &&
		t.Goal.SamePosition(other.Goal) &&
		t.Mode == other.Mode
}

// Segment is a directed edge between two waypoints. Points are filled in
// exactly once by interpolation; until then the segment is empty.
type Segment struct {
	ID     string
	Start  Coordinate
	Goal   Coordinate
	Mode   DrawingMode
	Points []Coordinate
}

// NewEmptySegment builds a segment with no interpolated points.
func NewEmptySegment(start, goal Coordinate, mode DrawingMode) *Segment {
	return &Segment{
		ID:    uuid.NewString(),
		Start: start,
		Goal:  goal,
		Mode:  mode,
	}
}

// IsEmpty reports whether the segment has been interpolated yet.
func (s *Segment) IsEmpty() bool {
	return len(s.Points) == 0
}

// SetPoints fills the interpolated path. Only permitted on an empty
// segment, and the path must run from Start to Goal.
func (s *Segment) SetPoints(points []Coordinate) error {
	if !s.IsEmpty() {
		return NewDomainError("segment points are already set")
	}
	if len(points) == 0 {
		return NewDomainError("segment points must not be empty")
	}
	if !points[0].SamePosition(s.Start) || !points[len(points)-1].SamePosition(s.Goal) {
		return NewDomainError("segment points must start at Start and end at Goal")
	}
	s.Points = points
	return nil
}

// GetDistance returns the cumulative distance at the segment's last
// point, or 0 for an empty segment.
func (s *Segment) GetDistance() Distance {
	if s.IsEmpty() {
		return 0
	}
	last := s.Points[len(s.Points)-1]
	if last.DistanceFromStart == nil {
		return 0
	}
	return *last.DistanceFromStart
}

// CalcDistanceFromStart assigns cumulative haversine distances in place,
// starting from 0 at the first point.
func (s *Segment) CalcDistanceFromStart() {
	total := Distance(0)
	for i := range s.Points {
		if i > 0 {
			total += s.Points[i-1].HaversineTo(s.Points[i])
		}
		s.Points[i].SetDistanceFromStart(total)
	}
}

// SetDistanceOffset adds a constant to every point's cumulative distance,
// splicing the segment's local distances into the route-wide scan.
func (s *Segment) SetDistanceOffset(offset Distance) {
	for i := range s.Points {
		local := Distance(0)
		if s.Points[i].DistanceFromStart != nil {
			local = *s.Points[i].DistanceFromStart
		}
		s.Points[i].SetDistanceFromStart(local + offset)
	}
}

// ResetEndpoints replaces either endpoint and clears the interpolated
// points, since they no longer connect the new endpoints.
func (s *Segment) ResetEndpoints(newStart, newGoal *Coordinate) {
	if newStart != nil {
		s.Start = *newStart
	}
	if newGoal != nil {
		s.Goal = *newGoal
	}
	s.Points = nil
}

// Template returns the segment's descriptor.
func (s *Segment) Template() SegmentTemplate {
	return SegmentTemplate{Start: s.Start, Goal: s.Goal, Mode: s.Mode}
}

// Equal compares everything except the id.
func (s *Segment) Equal(other *Segment) bool {
	if !s.Template().Equal(other.Template()) {
		return false
	}
	if len(s.Points) != len(other.Points) {
		return false
	}
	for i := range s.Points {
		if !s.Points[i].SamePosition(other.Points[i]) {
			return false
		}
	}
	return true
}
