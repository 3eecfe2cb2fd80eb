package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloroute/veloroute_core/internal/domain"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

const routeColumns = `id, name, owner_id, op_cursor, ascent, descent, total_distance, is_public, created_at, updated_at`

// visibleRoutes filters to routes the caller may at least view: public,
// owned, or explicitly granted.
const visibleRoutes = `(r.is_public
	OR r.owner_id = $1
	OR EXISTS (SELECT 1 FROM permissions p WHERE p.route_id = r.id AND p.user_id = $1))`

// RouteRepository persists route aggregates in PostgreSQL across the
// routes, operations, segments and permissions tables.
type RouteRepository struct {
	pool *pgxpool.Pool
}

func NewRouteRepository(pool *pgxpool.Pool) *RouteRepository {
	return &RouteRepository{pool: pool}
}

// WithTransaction runs fn inside one database transaction. Any error
// from fn rolls the transaction back and is returned unchanged.
func (r *RouteRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx usecase.RouteTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &routeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to commit transaction", err)
	}
	return nil
}

// Find loads the full aggregate without locking.
func (r *RouteRepository) Find(ctx context.Context, id string) (*domain.Route, error) {
	return loadRoute(ctx, r.pool, id, false)
}

// FindAllInfos lists every route visible to the caller, most recently
// updated first.
func (r *RouteRepository) FindAllInfos(ctx context.Context, callerID string) ([]*domain.RouteInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+routeColumns+`
		FROM routes r
		WHERE `+visibleRoutes+`
		ORDER BY updated_at DESC`, callerID)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to list routes", err)
	}
	defer rows.Close()
	return collectInfos(rows)
}

// Search lists routes matching the query and returns the page plus the
// total match count.
func (r *RouteRepository) Search(ctx context.Context, query usecase.SearchQuery) ([]*domain.RouteInfo, int, error) {
	// $1 caller, $2 owner filter, $3 editable filter.
	where := `WHERE ` + visibleRoutes + `
		AND ($2 = '' OR r.owner_id = $2)
		AND (NOT $3::bool
			OR r.owner_id = $1
			OR EXISTS (SELECT 1 FROM permissions p
				WHERE p.route_id = r.id AND p.user_id = $1 AND p.type = 'editor'))`

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM routes r `+where,
		query.CallerID, query.OwnerID, query.IsEditable,
	).Scan(&total)
	if err != nil {
		return nil, 0, domain.WrapError(domain.KindDatabase, "failed to count routes", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+routeColumns+`
		FROM routes r `+where+`
		ORDER BY updated_at DESC
		LIMIT $4 OFFSET $5`,
		query.CallerID, query.OwnerID, query.IsEditable,
		query.PageSize, query.PageOffset*query.PageSize)
	if err != nil {
		return nil, 0, domain.WrapError(domain.KindDatabase, "failed to search routes", err)
	}
	defer rows.Close()

	infos, err := collectInfos(rows)
	if err != nil {
		return nil, 0, err
	}
	return infos, total, nil
}

// FindPermission returns the stored permission, or PermissionNone when
// no grant exists.
func (r *RouteRepository) FindPermission(ctx context.Context, routeID, userID string) (domain.PermissionType, error) {
	return findPermission(ctx, r.pool, routeID, userID)
}

// routeTx implements the in-transaction persistence operations on top of
// a pgx transaction.
type routeTx struct {
	tx pgx.Tx
}

// FindForUpdate loads the aggregate with row locks on all three tables,
// serializing concurrent edits of the same route.
func (t *routeTx) FindForUpdate(ctx context.Context, id string) (*domain.Route, error) {
	return loadRoute(ctx, t.tx, id, true)
}

func (t *routeTx) InsertInfo(ctx context.Context, info *domain.RouteInfo) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO routes (`+routeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		info.ID, info.Name, info.OwnerID, info.OpCursor,
		int(info.Ascent), int(info.Descent), float64(info.TotalDistance),
		info.IsPublic, info.CreatedAt, info.UpdatedAt)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to insert route", err)
	}
	return nil
}

func (t *routeTx) UpdateInfo(ctx context.Context, info *domain.RouteInfo) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE routes
		SET name = $2, op_cursor = $3, ascent = $4, descent = $5,
			total_distance = $6, is_public = $7, updated_at = $8
		WHERE id = $1`,
		info.ID, info.Name, info.OpCursor,
		int(info.Ascent), int(info.Descent), float64(info.TotalDistance),
		info.IsPublic, info.UpdatedAt)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to update route", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewResourceNotFoundError("route not found")
	}
	return nil
}

// TruncateAndAppendOperation drops log entries at index and beyond, then
// inserts op at index. The delete-then-insert pair is what makes a new
// edit discard the redo tail atomically.
func (t *routeTx) TruncateAndAppendOperation(ctx context.Context, routeID string, index int, op *domain.Operation) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM operations WHERE route_id = $1 AND "index" >= $2`,
		routeID, index)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to truncate operation log", err)
	}

	row := encodeOperation(op)
	_, err = t.tx.Exec(ctx, `
		INSERT INTO operations (route_id, "index", id, code, pos, polyline, org_modes, new_modes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		routeID, index, op.ID, string(op.Code), op.Pos,
		row.polyline, row.orgModes, row.newModes)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to append operation", err)
	}
	return nil
}

// SpliceSegments rewrites the segments rows covered by the list's dirty
// range. Surviving tail rows are staged at negative indices first so the
// shift never collides with the (route_id, index) primary key.
func (t *routeTx) SpliceSegments(ctx context.Context, routeID string, list *domain.SegmentList) error {
	dirty, ok := list.ReplacedRange()
	if !ok {
		return nil
	}
	delta := dirty.Inserted - dirty.Removed

	_, err := t.tx.Exec(ctx, `
		UPDATE segments SET "index" = -"index" - 1
		WHERE route_id = $1 AND "index" >= $2`,
		routeID, dirty.Start+dirty.Removed)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to stage segment tail", err)
	}

	_, err = t.tx.Exec(ctx,
		`DELETE FROM segments WHERE route_id = $1 AND "index" >= $2`,
		routeID, dirty.Start)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to delete replaced segments", err)
	}

	_, err = t.tx.Exec(ctx, `
		UPDATE segments SET "index" = -"index" - 1 + $2
		WHERE route_id = $1 AND "index" < 0`,
		routeID, delta)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to shift segment tail", err)
	}

	batch := &pgx.Batch{}
	for i := dirty.Start; i < dirty.Start+dirty.Inserted; i++ {
		seg := list.Segments[i]
		if seg.IsEmpty() {
			return domain.NewDatabaseError("cannot persist a segment without points")
		}
		batch.Queue(`
			INSERT INTO segments (route_id, "index", id, mode, polyline)
			VALUES ($1, $2, $3, $4, $5)`,
			routeID, i, seg.ID, string(seg.Mode), domain.EncodePolyline(seg.Points))
	}
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return domain.WrapError(domain.KindDatabase, "failed to insert segment", err)
		}
	}
	return results.Close()
}

func (t *routeTx) DeleteRoute(ctx context.Context, id string) error {
	for _, stmt := range []string{
		`DELETE FROM operations WHERE route_id = $1`,
		`DELETE FROM segments WHERE route_id = $1`,
		`DELETE FROM permissions WHERE route_id = $1`,
		`DELETE FROM routes WHERE id = $1`,
	} {
		if _, err := t.tx.Exec(ctx, stmt, id); err != nil {
			return domain.WrapError(domain.KindDatabase, "failed to delete route", err)
		}
	}
	return nil
}

func (t *routeTx) FindPermission(ctx context.Context, routeID, userID string) (domain.PermissionType, error) {
	return findPermission(ctx, t.tx, routeID, userID)
}

func (t *routeTx) UpsertPermission(ctx context.Context, perm domain.Permission) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO permissions (route_id, user_id, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (route_id, user_id) DO UPDATE SET type = EXCLUDED.type`,
		perm.RouteID, perm.UserID, perm.Type.String())
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to upsert permission", err)
	}
	return nil
}

func (t *routeTx) DeletePermission(ctx context.Context, routeID, userID string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM permissions WHERE route_id = $1 AND user_id = $2`,
		routeID, userID)
	if err != nil {
		return domain.WrapError(domain.KindDatabase, "failed to delete permission", err)
	}
	return nil
}

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadRoute(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Route, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}

	info, err := scanInfo(q.QueryRow(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewResourceNotFoundError("route not found")
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to load route", err)
	}

	opLog, err := loadOperations(ctx, q, id, lock)
	if err != nil {
		return nil, err
	}
	segments, err := loadSegments(ctx, q, id, lock)
	if err != nil {
		return nil, err
	}
	return &domain.Route{Info: info, OpLog: opLog, SegList: domain.NewSegmentList(segments)}, nil
}

func loadOperations(ctx context.Context, q querier, routeID, lock string) ([]*domain.Operation, error) {
	rows, err := q.Query(ctx, `
		SELECT id, code, pos, polyline, org_modes, new_modes
		FROM operations
		WHERE route_id = $1
		ORDER BY "index"`+lock, routeID)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to load operations", err)
	}
	defer rows.Close()

	var opLog []*domain.Operation
	for rows.Next() {
		var (
			id, code, poly, orgModes, newModes string
			pos                                int
		)
		if err := rows.Scan(&id, &code, &pos, &poly, &orgModes, &newModes); err != nil {
			return nil, domain.WrapError(domain.KindDatabase, "failed to scan operation", err)
		}
		op, err := decodeOperation(id, code, pos, operationRow{polyline: poly, orgModes: orgModes, newModes: newModes})
		if err != nil {
			return nil, err
		}
		opLog = append(opLog, op)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to load operations", err)
	}
	return opLog, nil
}

func loadSegments(ctx context.Context, q querier, routeID, lock string) ([]*domain.Segment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, mode, polyline
		FROM segments
		WHERE route_id = $1
		ORDER BY "index"`+lock, routeID)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to load segments", err)
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		var id, mode, poly string
		if err := rows.Scan(&id, &mode, &poly); err != nil {
			return nil, domain.WrapError(domain.KindDatabase, "failed to scan segment", err)
		}
		seg, err := decodeSegment(id, mode, poly)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to load segments", err)
	}
	return segments, nil
}

func scanInfo(row pgx.Row) (*domain.RouteInfo, error) {
	var (
		info          domain.RouteInfo
		ascent        int
		descent       int
		totalDistance float64
	)
	err := row.Scan(&info.ID, &info.Name, &info.OwnerID, &info.OpCursor,
		&ascent, &descent, &totalDistance,
		&info.IsPublic, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	info.Ascent = domain.Elevation(ascent)
	info.Descent = domain.Elevation(descent)
	info.TotalDistance = domain.Distance(totalDistance)
	return &info, nil
}

func collectInfos(rows pgx.Rows) ([]*domain.RouteInfo, error) {
	var infos []*domain.RouteInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, domain.WrapError(domain.KindDatabase, "failed to scan route", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "failed to list routes", err)
	}
	return infos, nil
}

func findPermission(ctx context.Context, q querier, routeID, userID string) (domain.PermissionType, error) {
	if userID == "" {
		return domain.PermissionNone, nil
	}
	var stored string
	err := q.QueryRow(ctx,
		`SELECT type FROM permissions WHERE route_id = $1 AND user_id = $2`,
		routeID, userID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PermissionNone, nil
	}
	if err != nil {
		return domain.PermissionNone, domain.WrapError(domain.KindDatabase, "failed to load permission", err)
	}
	ptype, err := domain.ParsePermissionType(stored)
	if err != nil {
		return domain.PermissionNone, domain.WrapError(domain.KindDatabase, "corrupt permission row", err)
	}
	return ptype, nil
}

// operationRow is the encoded form of an operation's template lists:
// the org chain and the new chain as polylines joined by one space, with
// each chain's drawing modes in a comma-separated sidecar column.
type operationRow struct {
	polyline string
	orgModes string
	newModes string
}

func encodeOperation(op *domain.Operation) operationRow {
	orgPoly, orgModes := encodeTemplateChain(op.OrgTemplates)
	newPoly, newModes := encodeTemplateChain(op.NewTemplates)
	return operationRow{
		polyline: orgPoly + " " + newPoly,
		orgModes: orgModes,
		newModes: newModes,
	}
}

func decodeOperation(id, code string, pos int, row operationRow) (*domain.Operation, error) {
	opCode, err := domain.ParseOperationCode(code)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(row.polyline, " ", 2)
	if len(parts) != 2 {
		return nil, domain.NewDatabaseError("operation polyline is missing its separator")
	}
	org, err := decodeTemplateChain(parts[0], row.orgModes)
	if err != nil {
		return nil, err
	}
	new_, err := decodeTemplateChain(parts[1], row.newModes)
	if err != nil {
		return nil, err
	}
	return &domain.Operation{
		ID:           id,
		Code:         opCode,
		Pos:          pos,
		OrgTemplates: org,
		NewTemplates: new_,
	}, nil
}

// encodeTemplateChain relies on adjacent templates sharing an endpoint:
// n templates encode as their n starts plus the final goal.
func encodeTemplateChain(templates []domain.SegmentTemplate) (string, string) {
	if len(templates) == 0 {
		return "", ""
	}
	coords := make([]domain.Coordinate, 0, len(templates)+1)
	modes := make([]string, len(templates))
	for i, t := range templates {
		coords = append(coords, t.Start)
		modes[i] = string(t.Mode)
	}
	coords = append(coords, templates[len(templates)-1].Goal)
	return domain.EncodePolyline(coords), strings.Join(modes, ",")
}

func decodeTemplateChain(encoded, modes string) ([]domain.SegmentTemplate, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, err := domain.DecodePolyline(encoded)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "corrupt operation polyline", err)
	}
	if len(coords) < 2 {
		return nil, domain.NewDatabaseError("operation polyline must contain at least two points")
	}
	modeList := strings.Split(modes, ",")
	if len(modeList) != len(coords)-1 {
		return nil, domain.NewDatabaseError("operation modes do not match its polyline")
	}
	templates := make([]domain.SegmentTemplate, len(coords)-1)
	for i := range templates {
		mode, err := domain.ParseDrawingMode(modeList[i])
		if err != nil {
			return nil, domain.WrapError(domain.KindDatabase, "corrupt operation mode", err)
		}
		templates[i] = domain.SegmentTemplate{Start: coords[i], Goal: coords[i+1], Mode: mode}
	}
	return templates, nil
}

// decodeSegment rebuilds a segment from its row. Endpoints are the first
// and last interpolated points; a persisted segment always has points.
func decodeSegment(id, mode, encoded string) (*domain.Segment, error) {
	drawingMode, err := domain.ParseDrawingMode(mode)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "corrupt segment mode", err)
	}
	points, err := domain.DecodePolyline(encoded)
	if err != nil {
		return nil, domain.WrapError(domain.KindDatabase, "corrupt segment polyline", err)
	}
	if len(points) == 0 {
		return nil, domain.NewDatabaseError("segment row contains no points")
	}
	return &domain.Segment{
		ID:     id,
		Start:  points[0],
		Goal:   points[len(points)-1],
		Mode:   drawingMode,
		Points: points,
	}, nil
}
