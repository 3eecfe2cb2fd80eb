package usecase

import (
	"context"
	"sync"

	"github.com/veloroute/veloroute_core/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RouteDetail is the full read model of a route.
type RouteDetail struct {
	Info          *domain.RouteInfo
	Waypoints     []domain.Coordinate
	Segments      []*domain.Segment
	Gain          domain.ElevationGain
	TotalDistance domain.Distance
}

// RouteOpResult is the read model returned by every edit: the waypoint
// and segment view of the route after the operation.
type RouteOpResult struct {
	Waypoints     []domain.Coordinate
	Segments      []*domain.Segment
	Gain          domain.ElevationGain
	TotalDistance domain.Distance
}

// RouteUseCase drives the edit pipeline: authorize, load under row
// locks, apply the operation, reinterpolate, persist the diff.
type RouteUseCase struct {
	repo     RouteRepository
	interp   Interpolator
	elev     ElevationLookup
	reserved ReservedUserIDChecker
}

func NewRouteUseCase(repo RouteRepository, interp Interpolator, elev ElevationLookup, reserved ReservedUserIDChecker) *RouteUseCase {
	return &RouteUseCase{repo: repo, interp: interp, elev: elev, reserved: reserved}
}

// Create inserts an empty route owned by userID and returns its id.
func (u *RouteUseCase) Create(ctx context.Context, userID, name string, isPublic bool) (string, error) {
	if userID == "" {
		return "", domain.NewAuthenticationError("authentication required")
	}
	if reserved, err := u.reserved.IsReserved(ctx, userID); err != nil {
		return "", err
	} else if reserved {
		return "", domain.NewAuthorizationError("this account may not own routes")
	}

	route, err := domain.NewRoute(name, userID, isPublic)
	if err != nil {
		return "", err
	}
	err = u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		return tx.InsertInfo(ctx, route.Info)
	})
	if err != nil {
		return "", err
	}
	return route.Info.ID, nil
}

// FindAll lists every route visible to the caller.
func (u *RouteUseCase) FindAll(ctx context.Context, callerID string) ([]*domain.RouteInfo, error) {
	return u.repo.FindAllInfos(ctx, callerID)
}

// Search lists routes matching the filters, returning the page and the
// total match count.
func (u *RouteUseCase) Search(ctx context.Context, query SearchQuery) ([]*domain.RouteInfo, int, error) {
	if query.PageSize == 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize < 1 || query.PageSize > maxPageSize {
		return nil, 0, domain.Errorf(domain.KindValidation, "page_size must be between 1 and %d", maxPageSize)
	}
	if query.PageOffset < 0 {
		return nil, 0, domain.NewValidationError("page_offset must be non-negative")
	}
	if query.IsEditable && query.CallerID == "" {
		return nil, 0, domain.NewValidationError("is_editable requires authentication")
	}
	return u.repo.Search(ctx, query)
}

// FindDetail loads the full read model, enforcing view access.
func (u *RouteUseCase) FindDetail(ctx context.Context, routeID, callerID string) (*RouteDetail, error) {
	route, err := u.repo.Find(ctx, routeID)
	if err != nil {
		return nil, err
	}
	stored, err := u.repo.FindPermission(ctx, routeID, callerID)
	if err != nil {
		return nil, err
	}
	if !domain.EffectivePermission(route.Info, callerID, stored).AtLeast(domain.PermissionViewer) {
		return nil, domain.NewAuthorizationError("you are not allowed to view this route")
	}
	// Stored polylines carry positions only; re-attach elevations and
	// cumulative distances before serving.
	if err := u.hydrate(ctx, route); err != nil {
		return nil, err
	}
	return &RouteDetail{
		Info:          route.Info,
		Waypoints:     route.SegList.GatherWaypoints(),
		Segments:      route.SegList.SegmentsInBetween(),
		Gain:          route.SegList.CalcElevationGain(),
		TotalDistance: route.SegList.TotalDistance(),
	}, nil
}

// Rename changes the route name. Editor access required.
func (u *RouteUseCase) Rename(ctx context.Context, routeID, userID, name string) (*domain.RouteInfo, error) {
	var info *domain.RouteInfo
	err := u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		route, err := tx.FindForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if err := u.authorize(ctx, tx, route.Info, userID, domain.PermissionEditor); err != nil {
			return err
		}
		if err := route.Info.Rename(name); err != nil {
			return err
		}
		route.Touch()
		if err := tx.UpdateInfo(ctx, route.Info); err != nil {
			return err
		}
		info = route.Info
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// AddPoint inserts a waypoint at pos.
func (u *RouteUseCase) AddPoint(ctx context.Context, routeID, userID string, pos int, coord domain.Coordinate, mode domain.DrawingMode) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		corrected, err := u.interp.CorrectCoordinate(ctx, coord, mode)
		if err != nil {
			return false, err
		}
		op, err := domain.NewAdd(route.SegList, pos, corrected, mode)
		if err != nil {
			return false, err
		}
		return true, route.PushOperation(op)
	})
}

// RemovePoint deletes the waypoint at pos.
func (u *RouteUseCase) RemovePoint(ctx context.Context, routeID, userID string, pos int, mode domain.DrawingMode) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		op, err := domain.NewRemove(route.SegList, pos, mode)
		if err != nil {
			return false, err
		}
		return true, route.PushOperation(op)
	})
}

// MovePoint relocates the waypoint at pos.
func (u *RouteUseCase) MovePoint(ctx context.Context, routeID, userID string, pos int, coord domain.Coordinate, mode domain.DrawingMode) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		corrected, err := u.interp.CorrectCoordinate(ctx, coord, mode)
		if err != nil {
			return false, err
		}
		op, err := domain.NewMove(route.SegList, pos, corrected, mode)
		if err != nil {
			return false, err
		}
		return true, route.PushOperation(op)
	})
}

// ClearRoute removes every waypoint as a single undoable operation.
func (u *RouteUseCase) ClearRoute(ctx context.Context, routeID, userID string) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		return true, route.PushOperation(domain.NewClear(route.SegList))
	})
}

// Undo reverses the most recent operation.
func (u *RouteUseCase) Undo(ctx context.Context, routeID, userID string) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		return false, route.UndoOperation()
	})
}

// Redo reapplies the operation past the cursor.
func (u *RouteUseCase) Redo(ctx context.Context, routeID, userID string) (*RouteOpResult, error) {
	return u.runEdit(ctx, routeID, userID, func(ctx context.Context, route *domain.Route) (bool, error) {
		return false, route.RedoOperation()
	})
}

// DeleteRoute removes the route and everything hanging off it. Owner
// access required.
func (u *RouteUseCase) DeleteRoute(ctx context.Context, routeID, userID string) error {
	return u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		route, err := tx.FindForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if err := u.authorize(ctx, tx, route.Info, userID, domain.PermissionOwner); err != nil {
			return err
		}
		return tx.DeleteRoute(ctx, routeID)
	})
}

// PutPermission grants viewer or editor access. Owner only.
func (u *RouteUseCase) PutPermission(ctx context.Context, routeID, userID, targetUserID string, ptype domain.PermissionType) error {
	if targetUserID == "" {
		return domain.NewValidationError("user_id must not be empty")
	}
	if reserved, err := u.reserved.IsReserved(ctx, targetUserID); err != nil {
		return err
	} else if reserved {
		return domain.NewValidationError("permissions cannot be granted to a reserved account")
	}
	return u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		route, err := tx.FindForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if err := u.authorize(ctx, tx, route.Info, userID, domain.PermissionOwner); err != nil {
			return err
		}
		if targetUserID == route.Info.OwnerID {
			return domain.NewValidationError("the owner's permission is implicit")
		}
		return tx.UpsertPermission(ctx, domain.Permission{RouteID: routeID, UserID: targetUserID, Type: ptype})
	})
}

// DeletePermission revokes a grant. Owner only.
func (u *RouteUseCase) DeletePermission(ctx context.Context, routeID, userID, targetUserID string) error {
	return u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		route, err := tx.FindForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if err := u.authorize(ctx, tx, route.Info, userID, domain.PermissionOwner); err != nil {
			return err
		}
		return tx.DeletePermission(ctx, routeID, targetUserID)
	})
}

// runEdit is the shared transaction skeleton of every mutating
// operation: load locked, authorize, mutate, interpolate and
// re-annotate, persist the diff.
func (u *RouteUseCase) runEdit(ctx context.Context, routeID, userID string, mutate func(ctx context.Context, route *domain.Route) (appended bool, err error)) (*RouteOpResult, error) {
	var result *RouteOpResult
	err := u.repo.WithTransaction(ctx, func(ctx context.Context, tx RouteTx) error {
		route, err := tx.FindForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if err := u.authorize(ctx, tx, route.Info, userID, domain.PermissionEditor); err != nil {
			return err
		}
		appended, err := mutate(ctx, route)
		if err != nil {
			return err
		}
		if err := u.hydrate(ctx, route); err != nil {
			return err
		}
		route.RefreshTotals()
		route.Touch()

		if appended {
			index := route.Info.OpCursor - 1
			if err := tx.TruncateAndAppendOperation(ctx, routeID, index, route.OpLog[index]); err != nil {
				return err
			}
		}
		if err := tx.SpliceSegments(ctx, routeID, route.SegList); err != nil {
			return err
		}
		if err := tx.UpdateInfo(ctx, route.Info); err != nil {
			return err
		}
		route.SegList.ClearReplacedRange()

		result = &RouteOpResult{
			Waypoints:     route.SegList.GatherWaypoints(),
			Segments:      route.SegList.SegmentsInBetween(),
			Gain:          route.SegList.CalcElevationGain(),
			TotalDistance: route.SegList.TotalDistance(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorize resolves the caller's effective permission inside the
// transaction and enforces the required level.
func (u *RouteUseCase) authorize(ctx context.Context, tx RouteTx, info *domain.RouteInfo, userID string, required domain.PermissionType) error {
	if userID == "" && required.AtLeast(domain.PermissionEditor) {
		return domain.NewAuthenticationError("authentication required")
	}
	stored := domain.PermissionNone
	if userID != "" {
		var err error
		stored, err = tx.FindPermission(ctx, info.ID, userID)
		if err != nil {
			return err
		}
	}
	if !domain.EffectivePermission(info, userID, stored).AtLeast(required) {
		return domain.NewAuthorizationError("insufficient permission for this route")
	}
	return nil
}

// hydrate interpolates the dirty range's empty segments in parallel,
// attaches elevations, and recomputes cumulative distances. The
// interpolation fan-out cancels outstanding calls on the first error;
// the enclosing transaction rolls back either way.
func (u *RouteUseCase) hydrate(ctx context.Context, route *domain.Route) error {
	if dirty, ok := route.SegList.ReplacedRange(); ok && dirty.Inserted > 0 {
		segs := route.SegList.Segments[dirty.Start : dirty.Start+dirty.Inserted]

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup
		errCh := make(chan error, len(segs))
		for _, seg := range segs {
			if !seg.IsEmpty() {
				continue
			}
			wg.Add(1)
			go func(s *domain.Segment) {
				defer wg.Done()
				if err := u.interp.Interpolate(ctx, s); err != nil {
					errCh <- err
					cancel()
				}
			}(seg)
		}
		wg.Wait()
		close(errCh)
		if err := <-errCh; err != nil {
			return err
		}
	}

	for _, seg := range route.SegList.Segments {
		for i := range seg.Points {
			if seg.Points[i].Elevation != nil {
				continue
			}
			if elevation, found := u.elev.Lookup(seg.Points[i]); found {
				if err := seg.Points[i].SetElevation(elevation); err != nil {
					return err
				}
			}
		}
	}

	route.SegList.AttachDistanceFromStart()
	return nil
}
