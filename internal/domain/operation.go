package domain

import "github.com/google/uuid"

// OperationCode identifies the kind of edit, as stored in the op log.
type OperationCode string

const (
	OperationAdd    OperationCode = "ad"
	OperationRemove OperationCode = "rm"
	OperationMove   OperationCode = "mv"
	OperationClear  OperationCode = "cl"
)

// ParseOperationCode validates a stored operation code.
func ParseOperationCode(value string) (OperationCode, error) {
	switch OperationCode(value) {
	case OperationAdd, OperationRemove, OperationMove, OperationClear:
		return OperationCode(value), nil
	default:
		return "", Errorf(KindDatabase, "unknown operation code %q", value)
	}
}

// Operation is a reversible splice of the segment list: the templates at
// [Pos, Pos+len(OrgTemplates)) are replaced by NewTemplates.
type Operation struct {
	ID           string
	Code         OperationCode
	Pos          int
	OrgTemplates []SegmentTemplate
	NewTemplates []SegmentTemplate
}

func newOperation(code OperationCode, pos int, org, new []SegmentTemplate) *Operation {
	return &Operation{
		ID:           uuid.NewString(),
		Code:         code,
		Pos:          pos,
		OrgTemplates: org,
		NewTemplates: new,
	}
}

// NewAdd builds the operation inserting a waypoint at index pos.
func NewAdd(segList *SegmentList, pos int, coord Coordinate, mode DrawingMode) (*Operation, error) {
	length := segList.Len()
	if pos > length {
		return nil, Errorf(KindInvalidOperation, "add position %d out of range for %d waypoints", pos, length)
	}

	switch {
	case pos == 0 && length == 0:
		return newOperation(OperationAdd, 0,
			nil,
			[]SegmentTemplate{{Start: coord, Goal: coord, Mode: mode}},
		), nil
	case pos == 0:
		return newOperation(OperationAdd, 0,
			nil,
			[]SegmentTemplate{{Start: coord, Goal: segList.Segments[0].Start, Mode: mode}},
		), nil
	case pos < length:
		prev := segList.Segments[pos-1]
		return newOperation(OperationAdd, pos-1,
			[]SegmentTemplate{prev.Template()},
			[]SegmentTemplate{
				{Start: prev.Start, Goal: coord, Mode: mode},
				{Start: coord, Goal: segList.Segments[pos].Start, Mode: mode},
			},
		), nil
	default: // pos == length: append after the trailing point segment
		prev := segList.Segments[pos-1]
		return newOperation(OperationAdd, pos-1,
			[]SegmentTemplate{prev.Template()},
			[]SegmentTemplate{
				{Start: prev.Start, Goal: coord, Mode: mode},
				{Start: coord, Goal: coord, Mode: mode},
			},
		), nil
	}
}

// NewRemove builds the operation removing the waypoint at index pos.
func NewRemove(segList *SegmentList, pos int, mode DrawingMode) (*Operation, error) {
	length := segList.Len()
	if pos >= length {
		return nil, Errorf(KindInvalidOperation, "remove position %d out of range for %d waypoints", pos, length)
	}

	if pos == 0 {
		return newOperation(OperationRemove, 0,
			[]SegmentTemplate{segList.Segments[0].Template()},
			nil,
		), nil
	}
	prev := segList.Segments[pos-1]
	cur := segList.Segments[pos]
	return newOperation(OperationRemove, pos-1,
		[]SegmentTemplate{prev.Template(), cur.Template()},
		[]SegmentTemplate{{Start: prev.Start, Goal: cur.Goal, Mode: mode}},
	), nil
}

// NewMove builds the operation relocating the waypoint at index pos.
func NewMove(segList *SegmentList, pos int, coord Coordinate, mode DrawingMode) (*Operation, error) {
	length := segList.Len()
	if pos >= length {
		return nil, Errorf(KindInvalidOperation, "move position %d out of range for %d waypoints", pos, length)
	}

	nextStart := coord
	if pos+1 < length {
		nextStart = segList.Segments[pos+1].Start
	}

	if pos == 0 {
		return newOperation(OperationMove, 0,
			[]SegmentTemplate{segList.Segments[0].Template()},
			[]SegmentTemplate{{Start: coord, Goal: nextStart, Mode: mode}},
		), nil
	}
	prev := segList.Segments[pos-1]
	cur := segList.Segments[pos]
	return newOperation(OperationMove, pos-1,
		[]SegmentTemplate{prev.Template(), cur.Template()},
		[]SegmentTemplate{
			{Start: prev.Start, Goal: coord, Mode: mode},
			{Start: coord, Goal: nextStart, Mode: mode},
		},
	), nil
}

// NewClear builds the operation removing every waypoint at once. Its
// reverse restores the full template list.
func NewClear(segList *SegmentList) *Operation {
	org := segList.Templates()
	return newOperation(OperationClear, 0, org, nil)
}

// Apply splices the segment list according to the operation. Each new
// template expands to an empty segment awaiting interpolation.
func (op *Operation) Apply(segList *SegmentList) error {
	newSegs := make([]*Segment, len(op.NewTemplates))
	for i, t := range op.NewTemplates {
		newSegs[i] = t.Expand()
	}
	return segList.Splice(op.Pos, op.Pos+len(op.OrgTemplates), newSegs)
}

// Reverse swaps the removed and inserted template lists and toggles
// Add and Remove. Move and Clear reverse onto themselves.
func (op *Operation) Reverse() *Operation {
	code := op.Code
	switch code {
	case OperationAdd:
		code = OperationRemove
	case OperationRemove:
		code = OperationAdd
	}
	return &Operation{
		ID:           uuid.NewString(),
		Code:         code,
		Pos:          op.Pos,
		OrgTemplates: op.NewTemplates,
		NewTemplates: op.OrgTemplates,
	}
}

// Equal compares everything except the id.
func (op *Operation) Equal(other *Operation) bool {
	if op.Code != other.Code || op.Pos != other.Pos {
		return false
	}
	if len(op.OrgTemplates) != len(other.OrgTemplates) ||
		len(op.NewTemplates) != len(other.NewTemplates) {
		return false
	}
	for i := range op.OrgTemplates {
		if !op.OrgTemplates[i].Equal(other.OrgTemplates[i]) {
			return false
		}
	}
	for i := range op.NewTemplates {
		if !op.NewTemplates[i].Equal(other.NewTemplates[i]) {
			return false
		}
	}
	return true
}
