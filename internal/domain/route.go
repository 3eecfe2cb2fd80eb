package domain

import (
	"time"

	"github.com/google/uuid"
)

// RouteInfo is the persistent header of a route. OpCursor is the length
// of the operation-log prefix currently applied to the segment list;
// ascent, descent and total distance are caches fully derivable from it.
type RouteInfo struct {
	ID            string
	Name          string
	OwnerID       string
	OpCursor      int
	Ascent        Elevation
	Descent       Elevation
	TotalDistance Distance
	IsPublic      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRouteInfo builds the header of a freshly created route.
func NewRouteInfo(name, ownerID string, isPublic bool) (*RouteInfo, error) {
	if name == "" {
		return nil, NewValidationError("route name must not be empty")
	}
	if len(name) > 100 {
		return nil, NewValidationError("route name must be at most 100 characters")
	}
	now := time.Now().UTC()
	return &RouteInfo{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		IsPublic:  isPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rename validates and applies a new name.
func (info *RouteInfo) Rename(name string) error {
	if name == "" {
		return NewValidationError("route name must not be empty")
	}
	if len(name) > 100 {
		return NewValidationError("route name must be at most 100 characters")
	}
	info.Name = name
	return nil
}

// Route is the full aggregate: header, operation log, segment list.
// Invariant: replaying OpLog[0:Info.OpCursor] onto an empty list yields
// SegList's template sequence.
type Route struct {
	Info    *RouteInfo
	OpLog   []*Operation
	SegList *SegmentList
}

// NewRoute builds an empty route owned by ownerID.
func NewRoute(name, ownerID string, isPublic bool) (*Route, error) {
	info, err := NewRouteInfo(name, ownerID, isPublic)
	if err != nil {
		return nil, err
	}
	return &Route{Info: info, SegList: NewSegmentList(nil)}, nil
}

// PushOperation truncates the redo tail, appends op, and applies it.
func (r *Route) PushOperation(op *Operation) error {
	if err := op.Apply(r.SegList); err != nil {
		return err
	}
	r.OpLog = append(r.OpLog[:r.Info.OpCursor], op)
	r.Info.OpCursor++
	return nil
}

// UndoOperation reverses the most recently applied operation.
func (r *Route) UndoOperation() error {
	if r.Info.OpCursor == 0 {
		return NewInvalidOperationError("there is nothing to undo")
	}
	reversed := r.OpLog[r.Info.OpCursor-1].Reverse()
	if err := reversed.Apply(r.SegList); err != nil {
		return err
	}
	r.Info.OpCursor--
	return nil
}

// RedoOperation reapplies the next operation past the cursor.
func (r *Route) RedoOperation() error {
	if r.Info.OpCursor == len(r.OpLog) {
		return NewInvalidOperationError("there is nothing to redo")
	}
	if err := r.OpLog[r.Info.OpCursor].Apply(r.SegList); err != nil {
		return err
	}
	r.Info.OpCursor++
	return nil
}

// RefreshTotals recomputes the cached totals from the segment list.
func (r *Route) RefreshTotals() {
	gain := r.SegList.CalcElevationGain()
	r.Info.Ascent = gain.Ascent
	r.Info.Descent = gain.Descent
	r.Info.TotalDistance = r.SegList.TotalDistance()
}

// Touch bumps the update timestamp.
func (r *Route) Touch() {
	r.Info.UpdatedAt = time.Now().UTC()
}
