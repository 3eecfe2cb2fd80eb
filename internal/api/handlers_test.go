package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloroute/veloroute_core/internal/domain"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

// memRepo is a transactional in-memory RouteRepository for handler
// tests. Edits run on clones and are committed only when the
// transaction function succeeds.
type memRepo struct {
	routes      map[string]*domain.Route
	permissions map[string]domain.PermissionType
	staged      map[string]*domain.Route
}

func newMemRepo() *memRepo {
	return &memRepo{
		routes:      map[string]*domain.Route{},
		permissions: map[string]domain.PermissionType{},
	}
}

func cloneRoute(r *domain.Route) *domain.Route {
	info := *r.Info
	opLog := append([]*domain.Operation(nil), r.OpLog...)
	segs := make([]*domain.Segment, len(r.SegList.Segments))
	for i, s := range r.SegList.Segments {
		copied := *s
		copied.Points = append([]domain.Coordinate(nil), s.Points...)
		segs[i] = &copied
	}
	return &domain.Route{Info: &info, OpLog: opLog, SegList: domain.NewSegmentList(segs)}
}

func (m *memRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx usecase.RouteTx) error) error {
	m.staged = map[string]*domain.Route{}
	if err := fn(ctx, m); err != nil {
		m.staged = nil
		return err
	}
	for id, r := range m.staged {
		if r == nil {
			delete(m.routes, id)
		} else {
			m.routes[id] = r
		}
	}
	m.staged = nil
	return nil
}

func (m *memRepo) FindForUpdate(ctx context.Context, id string) (*domain.Route, error) {
	r, ok := m.routes[id]
	if !ok {
		return nil, domain.NewResourceNotFoundError("route not found")
	}
	staged := cloneRoute(r)
	m.staged[id] = staged
	return staged, nil
}

func (m *memRepo) InsertInfo(ctx context.Context, info *domain.RouteInfo) error {
	copied := *info
	m.staged[info.ID] = &domain.Route{Info: &copied, SegList: domain.NewSegmentList(nil)}
	return nil
}

func (m *memRepo) UpdateInfo(ctx context.Context, info *domain.RouteInfo) error { return nil }
func (m *memRepo) TruncateAndAppendOperation(ctx context.Context, routeID string, index int, op *domain.Operation) error {
	return nil
}
func (m *memRepo) SpliceSegments(ctx context.Context, routeID string, list *domain.SegmentList) error {
	return nil
}
func (m *memRepo) DeleteRoute(ctx context.Context, id string) error {
	m.staged[id] = nil
	return nil
}

func (m *memRepo) FindPermission(ctx context.Context, routeID, userID string) (domain.PermissionType, error) {
	return m.permissions[routeID+"/"+userID], nil
}

func (m *memRepo) UpsertPermission(ctx context.Context, perm domain.Permission) error {
	m.permissions[perm.RouteID+"/"+perm.UserID] = perm.Type
	return nil
}

func (m *memRepo) DeletePermission(ctx context.Context, routeID, userID string) error {
	delete(m.permissions, routeID+"/"+userID)
	return nil
}

func (m *memRepo) Find(ctx context.Context, id string) (*domain.Route, error) {
	r, ok := m.routes[id]
	if !ok {
		return nil, domain.NewResourceNotFoundError("route not found")
	}
	return cloneRoute(r), nil
}

func (m *memRepo) FindAllInfos(ctx context.Context, callerID string) ([]*domain.RouteInfo, error) {
	var infos []*domain.RouteInfo
	for _, r := range m.routes {
		if r.Info.IsPublic || r.Info.OwnerID == callerID {
			infos = append(infos, r.Info)
		}
	}
	return infos, nil
}

func (m *memRepo) Search(ctx context.Context, query usecase.SearchQuery) ([]*domain.RouteInfo, int, error) {
	var infos []*domain.RouteInfo
	for _, r := range m.routes {
		if query.OwnerID != "" && r.Info.OwnerID != query.OwnerID {
			continue
		}
		infos = append(infos, r.Info)
	}
	return infos, len(infos), nil
}

// straightLine interpolates every segment as its two endpoints.
type straightLine struct{}

func (straightLine) CorrectCoordinate(ctx context.Context, coord domain.Coordinate, mode domain.DrawingMode) (domain.Coordinate, error) {
	return coord, nil
}

func (straightLine) Interpolate(ctx context.Context, seg *domain.Segment) error {
	return seg.SetPoints([]domain.Coordinate{seg.Start, seg.Goal})
}

type flatElevation struct{}

func (flatElevation) Lookup(coord domain.Coordinate) (domain.Elevation, bool) { return 42, true }

type nobodyReserved struct{}

func (nobodyReserved) IsReserved(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

// tokenMap verifies tokens against a fixed token -> user mapping.
type tokenMap map[string]string

func (m tokenMap) Verify(ctx context.Context, token string) (string, error) {
	if userID, ok := m[token]; ok {
		return userID, nil
	}
	return "", domain.NewAuthenticationError("invalid token")
}

func newTestApp() (*fiber.App, *memRepo) {
	repo := newMemRepo()
	uc := usecase.NewRouteUseCase(repo, straightLine{}, flatElevation{}, nobodyReserved{})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, NewHandler(uc), tokenMap{
		"alice-token": "alice",
		"bob-token":   "bob",
	})
	return app, repo
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out), string(data))
}

func createRoute(t *testing.T, app *fiber.App, token, name string, isPublic bool) string {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPost, "/routes/", token,
		fiber.Map{"name": name, "is_public": isPublic})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func addPoint(t *testing.T, app *fiber.App, token, routeID string, pos int, lat, lon float64) RouteOpResultDTO {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPatch,
		fmt.Sprintf("/routes/%s/add/%d", routeID, pos), token,
		fiber.Map{"mode": "follow_road", "coord": fiber.Map{"latitude": lat, "longitude": lon}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result RouteOpResultDTO
	decodeBody(t, resp, &result)
	return result
}

func TestCreateRequiresToken(t *testing.T) {
	app, _ := newTestApp()

	resp := doJSON(t, app, fiber.MethodPost, "/routes/", "", fiber.Map{"name": "r"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Message)
}

func TestCreateRejectsBadToken(t *testing.T) {
	app, _ := newTestApp()
	resp := doJSON(t, app, fiber.MethodPost, "/routes/", "forged", fiber.Map{"name": "r"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndGetEmptyRoute(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	resp := doJSON(t, app, fiber.MethodGet, "/routes/"+id, "alice-token", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var detail RouteDetailDTO
	decodeBody(t, resp, &detail)
	assert.Equal(t, id, detail.ID)
	assert.Equal(t, "r", detail.Name)
	assert.Empty(t, detail.Waypoints)
	assert.Empty(t, detail.Segments)
	assert.Zero(t, detail.ElevationGain.Ascent)
	assert.Zero(t, detail.TotalDistance)
}

func TestAddTwoWaypoints(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	result := addPoint(t, app, "alice-token", id, 0, 35.46798, 139.62607)
	assert.Len(t, result.Waypoints, 1)
	assert.Empty(t, result.Segments)

	result = addPoint(t, app, "alice-token", id, 1, 35.68048, 139.76906)
	assert.Len(t, result.Waypoints, 2)
	require.Len(t, result.Segments, 1)
	assert.GreaterOrEqual(t, len(result.Segments[0].Points), 2)
	assert.InDelta(t, 26936.426, result.TotalDistance, 1.0)

	first := result.Segments[0].Points[0]
	require.NotNil(t, first.Elevation)
	assert.Equal(t, 42, *first.Elevation)
	require.NotNil(t, first.DistanceFromStart)
	assert.InDelta(t, 0, *first.DistanceFromStart, 1e-9)
}

func TestUndoRedoFlow(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)
	addPoint(t, app, "alice-token", id, 0, 35.46798, 139.62607)
	addPoint(t, app, "alice-token", id, 1, 35.68048, 139.76906)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/undo/", "alice-token", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result RouteOpResultDTO
	decodeBody(t, resp, &result)
	assert.Len(t, result.Waypoints, 1)
	assert.Empty(t, result.Segments)
	assert.Zero(t, result.TotalDistance)

	resp = doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/redo/", "alice-token", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Len(t, result.Waypoints, 2)
	assert.InDelta(t, 26936.426, result.TotalDistance, 1.0)

	resp = doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/redo/", "alice-token", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUndoOnFreshRouteIsBadRequest(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/undo/", "alice-token", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMoveAndRemove(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)
	addPoint(t, app, "alice-token", id, 0, 35.46798, 139.62607)
	addPoint(t, app, "alice-token", id, 1, 35.68048, 139.76906)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/move/0", "alice-token",
		fiber.Map{"mode": "follow_road", "coord": fiber.Map{"latitude": 35.46798, "longitude": 139.62600}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result RouteOpResultDTO
	decodeBody(t, resp, &result)
	require.Len(t, result.Waypoints, 2)
	assert.InDelta(t, 139.62600, result.Waypoints[0].Longitude, 1e-5)

	resp = doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/remove/1", "alice-token",
		fiber.Map{"mode": "follow_road"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Len(t, result.Waypoints, 1)
	assert.Empty(t, result.Segments)
}

func TestClearRoute(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)
	addPoint(t, app, "alice-token", id, 0, 35.46798, 139.62607)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/clear/", "alice-token", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result RouteOpResultDTO
	decodeBody(t, resp, &result)
	assert.Empty(t, result.Waypoints)
}

func TestAddOutOfRangeIsBadRequest(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/add/5", "alice-token",
		fiber.Map{"mode": "follow_road", "coord": fiber.Map{"latitude": 35.0, "longitude": 139.0}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnknownModeIsBadRequest(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/add/0", "alice-token",
		fiber.Map{"mode": "diagonal", "coord": fiber.Map{"latitude": 35.0, "longitude": 139.0}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPermissionEnforcement(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "private", false)

	t.Run("stranger cannot view", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/routes/"+id, "bob-token", nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("stranger cannot edit", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/add/0", "bob-token",
			fiber.Map{"mode": "follow_road", "coord": fiber.Map{"latitude": 35.0, "longitude": 139.0}})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("viewer grant allows reads only", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPut, "/routes/"+id+"/permissions/", "alice-token",
			fiber.Map{"user_id": "bob", "permission_type": "viewer"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = doJSON(t, app, fiber.MethodGet, "/routes/"+id, "bob-token", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/clear/", "bob-token", nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("only the owner can grant", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPut, "/routes/"+id+"/permissions/", "bob-token",
			fiber.Map{"user_id": "bob", "permission_type": "editor"})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("owner permission type is not grantable", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPut, "/routes/"+id+"/permissions/", "alice-token",
			fiber.Map{"user_id": "bob", "permission_type": "owner"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestPublicRouteAnonymousRead(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "shared", true)

	resp := doJSON(t, app, fiber.MethodGet, "/routes/"+id, "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetMissingRoute(t *testing.T) {
	app, _ := newTestApp()
	resp := doJSON(t, app, fiber.MethodGet, "/routes/no-such-id", "alice-token", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteRoute(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "r", false)

	resp := doJSON(t, app, fiber.MethodDelete, "/routes/"+id, "bob-token", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodDelete, "/routes/"+id, "alice-token", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/routes/"+id, "alice-token", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRename(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "before", false)

	resp := doJSON(t, app, fiber.MethodPatch, "/routes/"+id+"/rename/", "alice-token",
		fiber.Map{"name": "after"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var info RouteInfoDTO
	decodeBody(t, resp, &info)
	assert.Equal(t, "after", info.Name)
}

func TestSearchValidation(t *testing.T) {
	app, _ := newTestApp()

	resp := doJSON(t, app, fiber.MethodGet, "/routes/search?page_size=1000", "alice-token", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/routes/search?is_editable=maybe", "alice-token", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/routes/search?page_size=not-a-number", "alice-token", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	app, _ := newTestApp()
	createRoute(t, app, "alice-token", "one", true)
	createRoute(t, app, "alice-token", "two", true)

	resp := doJSON(t, app, fiber.MethodGet, "/routes/search?owner_id=alice", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Routes []RouteInfoDTO `json:"routes"`
		Total  int            `json:"total"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Total)
	assert.Len(t, body.Routes, 2)
}

func TestGPXExport(t *testing.T) {
	app, _ := newTestApp()
	id := createRoute(t, app, "alice-token", "morning loop", true)
	addPoint(t, app, "alice-token", id, 0, 35.46798, 139.62607)
	addPoint(t, app, "alice-token", id, 1, 35.68048, 139.76906)

	resp := doJSON(t, app, fiber.MethodGet, "/routes/"+id+"/gpx/", "alice-token", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/gpx+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="morning loop.gpx"`, resp.Header.Get("Content-Disposition"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	xml := string(data)
	assert.Contains(t, xml, `xmlns="http://www.topografix.com/GPX/1/1"`)
	assert.Contains(t, xml, "<trkseg>")
	assert.GreaterOrEqual(t, strings.Count(xml, "<trkpt"), 2)
}
