package domain

import "sync"

// SpliceRange describes the contiguous block of segment indices replaced
// since the last persist. Start is an index into the current list,
// Removed the number of old rows the block replaced, Inserted the number
// of rows now occupying it.
type SpliceRange struct {
	Start    int
	Removed  int
	Inserted int
}

// SegmentList is the ordered list of segments making up a route.
type SegmentList struct {
	Segments []*Segment

	dirty *SpliceRange
}

// NewSegmentList wraps existing segments with a clean dirty range.
func NewSegmentList(segments []*Segment) *SegmentList {
	return &SegmentList{Segments: segments}
}

// Len returns the number of segments.
func (l *SegmentList) Len() int {
	return len(l.Segments)
}

// Splice replaces Segments[start:end] with newSegs and records the
// replaced range, merging with any earlier dirty range.
func (l *SegmentList) Splice(start, end int, newSegs []*Segment) error {
	if start < 0 || end < start || end > len(l.Segments) {
		return Errorf(KindDomain, "splice range [%d, %d) out of bounds for %d segments", start, end, len(l.Segments))
	}
	spliced := make([]*Segment, 0, len(l.Segments)-(end-start)+len(newSegs))
	spliced = append(spliced, l.Segments[:start]...)
	spliced = append(spliced, newSegs...)
	spliced = append(spliced, l.Segments[end:]...)
	l.Segments = spliced
	l.recordSplice(start, end-start, len(newSegs))
	return nil
}

// recordSplice merges a new splice into the dirty range. b's indices are
// relative to the list state after the existing dirty splice a.
func (l *SegmentList) recordSplice(start, removed, inserted int) {
	b := SpliceRange{Start: start, Removed: removed, Inserted: inserted}
	if l.dirty == nil {
		l.dirty = &b
		return
	}
	a := *l.dirty
	deltaA := a.Inserted - a.Removed

	lo := a.Start
	if b.Start < lo {
		lo = b.Start
	}

	// End of the combined removed block, in pre-a coordinates.
	remEnd := a.Start + a.Removed
	if bEnd := b.Start + b.Removed; bEnd > a.Start+a.Inserted {
		if orig := bEnd - deltaA; orig > remEnd {
			remEnd = orig
		}
	}

	// End of the combined inserted block, in final coordinates.
	insEnd := b.Start + b.Inserted
	aEnd := a.Start + a.Inserted
	if b.Start+b.Removed <= aEnd {
		if shifted := aEnd + b.Inserted - b.Removed; shifted > insEnd {
			insEnd = shifted
		}
	} else if aEnd > insEnd {
		insEnd = aEnd
	}

	l.dirty = &SpliceRange{Start: lo, Removed: remEnd - lo, Inserted: insEnd - lo}
}

// ReplacedRange returns the dirty range, if any splice happened since
// the last persist.
func (l *SegmentList) ReplacedRange() (SpliceRange, bool) {
	if l.dirty == nil {
		return SpliceRange{}, false
	}
	return *l.dirty, true
}

// ClearReplacedRange marks the list clean after a persist.
func (l *SegmentList) ClearReplacedRange() {
	l.dirty = nil
}

// TotalDistance returns the cumulative distance at the route's last
// point, or 0 for an empty route.
func (l *SegmentList) TotalDistance() Distance {
	if len(l.Segments) == 0 {
		return 0
	}
	return l.Segments[len(l.Segments)-1].GetDistance()
}

// AttachDistanceFromStart recomputes cumulative distances route-wide.
// Per-segment local distances are computed in parallel, the running
// offset is established by a sequential left-to-right scan, and the
// offsets are applied in parallel again. The sequential middle phase is
// what keeps the global ordering deterministic.
func (l *SegmentList) AttachDistanceFromStart() {
	var wg sync.WaitGroup
	for _, seg := range l.Segments {
		wg.Add(1)
		go func(s *Segment) {
			defer wg.Done()
			s.CalcDistanceFromStart()
		}(seg)
	}
	wg.Wait()

	offsets := make([]Distance, len(l.Segments))
	running := Distance(0)
	for i, seg := range l.Segments {
		offsets[i] = running
		running += seg.GetDistance()
	}

	for i, seg := range l.Segments {
		wg.Add(1)
		go func(s *Segment, offset Distance) {
			defer wg.Done()
			s.SetDistanceOffset(offset)
		}(seg, offsets[i])
	}
	wg.Wait()
}

// ElevationGain is the pair of summed positive and negative
// consecutive-elevation differences over the whole route.
type ElevationGain struct {
	Ascent  Elevation
	Descent Elevation
}

// Add combines two gains; the operation is associative, so per-segment
// partial sums may be folded in any grouping.
func (g ElevationGain) Add(other ElevationGain) ElevationGain {
	return ElevationGain{Ascent: g.Ascent + other.Ascent, Descent: g.Descent + other.Descent}
}

// CalcElevationGain accumulates per-segment gains and folds them.
// Points without elevation are skipped.
func (l *SegmentList) CalcElevationGain() ElevationGain {
	total := ElevationGain{}
	var last *Elevation
	for _, seg := range l.Segments {
		gain, segLast := segmentElevationGain(seg, last)
		total = total.Add(gain)
		if segLast != nil {
			last = segLast
		}
	}
	return total
}

func segmentElevationGain(seg *Segment, prev *Elevation) (ElevationGain, *Elevation) {
	gain := ElevationGain{}
	last := prev
	for i := range seg.Points {
		e := seg.Points[i].Elevation
		if e == nil {
			continue
		}
		if last != nil {
			diff := *e - *last
			if diff > 0 {
				gain.Ascent += diff
			} else {
				gain.Descent -= diff
			}
		}
		last = e
	}
	return gain, last
}

// BoundingBox is the minimal lat/lon rectangle covering all points.
type BoundingBox struct {
	MinLatitude  Latitude
	MaxLatitude  Latitude
	MinLongitude Longitude
	MaxLongitude Longitude
}

// CalcBoundingBox scans all points of all segments. Fails on a route
// with no points.
func (l *SegmentList) CalcBoundingBox() (BoundingBox, error) {
	first := true
	var box BoundingBox
	for _, seg := range l.Segments {
		for _, p := range seg.Points {
			if first {
				box = BoundingBox{
					MinLatitude:  p.Latitude,
					MaxLatitude:  p.Latitude,
					MinLongitude: p.Longitude,
					MaxLongitude: p.Longitude,
				}
				first = false
				continue
			}
			if p.Latitude < box.MinLatitude {
				box.MinLatitude = p.Latitude
			}
			if p.Latitude > box.MaxLatitude {
				box.MaxLatitude = p.Latitude
			}
			if p.Longitude < box.MinLongitude {
				box.MinLongitude = p.Longitude
			}
			if p.Longitude > box.MaxLongitude {
				box.MaxLongitude = p.Longitude
			}
		}
	}
	if first {
		return BoundingBox{}, NewDomainError("cannot compute bounding box of an empty route")
	}
	return box, nil
}

// GatherWaypoints returns each segment's start, in order. Its length
// always equals the segment count.
func (l *SegmentList) GatherWaypoints() []Coordinate {
	waypoints := make([]Coordinate, len(l.Segments))
	for i, seg := range l.Segments {
		waypoints[i] = seg.Start
	}
	return waypoints
}

// SegmentsInBetween drops the trailing point segment, which by
// construction degenerates to start == goal == the final waypoint.
func (l *SegmentList) SegmentsInBetween() []*Segment {
	if len(l.Segments) == 0 {
		return []*Segment{}
	}
	return l.Segments[:len(l.Segments)-1]
}

// Templates returns the descriptor sequence of the list.
func (l *SegmentList) Templates() []SegmentTemplate {
	templates := make([]SegmentTemplate, len(l.Segments))
	for i, seg := range l.Segments {
		templates[i] = seg.Template()
	}
	return templates
}
