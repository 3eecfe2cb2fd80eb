package usecase

import (
	"context"

	"github.com/veloroute/veloroute_core/internal/domain"
)

// RouteTx is the set of persistence operations available inside one
// edit transaction. The implementation is expected to hold row locks on
// the route's rows for the transaction's lifetime.
type RouteTx interface {
	// FindForUpdate loads the full aggregate under SELECT ... FOR UPDATE.
	FindForUpdate(ctx context.Context, id string) (*domain.Route, error)
	InsertInfo(ctx context.Context, info *domain.RouteInfo) error
	UpdateInfo(ctx context.Context, info *domain.RouteInfo) error
	// TruncateAndAppendOperation deletes log entries at index and beyond,
	// then inserts op at index.
	TruncateAndAppendOperation(ctx context.Context, routeID string, index int, op *domain.Operation) error
	// SpliceSegments applies the list's dirty range to the segments table.
	SpliceSegments(ctx context.Context, routeID string, list *domain.SegmentList) error
	DeleteRoute(ctx context.Context, id string) error
	FindPermission(ctx context.Context, routeID, userID string) (domain.PermissionType, error)
	UpsertPermission(ctx context.Context, perm domain.Permission) error
	DeletePermission(ctx context.Context, routeID, userID string) error
}

// RouteRepository persists route aggregates. Reads outside an edit go
// through the plain methods; every mutation runs inside WithTransaction.
type RouteRepository interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx RouteTx) error) error
	Find(ctx context.Context, id string) (*domain.Route, error)
	FindAllInfos(ctx context.Context, callerID string) ([]*domain.RouteInfo, error)
	Search(ctx context.Context, query SearchQuery) ([]*domain.RouteInfo, int, error)
	FindPermission(ctx context.Context, routeID, userID string) (domain.PermissionType, error)
}

// Interpolator connects segment endpoints through the routing engine.
type Interpolator interface {
	// CorrectCoordinate snaps a coordinate onto the road network for
	// FollowRoad segments; it is a no-op for Freehand.
	CorrectCoordinate(ctx context.Context, coord domain.Coordinate, mode domain.DrawingMode) (domain.Coordinate, error)
	// Interpolate fills an empty segment's points so that the path runs
	// from Start to Goal.
	Interpolate(ctx context.Context, seg *domain.Segment) error
}

// ElevationLookup resolves a coordinate's elevation from the local
// dataset. The second result is false when the coordinate falls outside
// the loaded tiles.
type ElevationLookup interface {
	Lookup(coord domain.Coordinate) (domain.Elevation, bool)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// ReservedUserIDChecker guards owner and grantee ids against the
// reserved list.
type ReservedUserIDChecker interface {
	IsReserved(ctx context.Context, userID string) (bool, error)
}

// SearchQuery filters the route listing.
type SearchQuery struct {
	OwnerID    string
	IsEditable bool
	CallerID   string
	PageOffset int
	PageSize   int
}
