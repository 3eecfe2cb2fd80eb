package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veloroute/veloroute_core/internal/cache"
	"github.com/veloroute/veloroute_core/internal/db"
	"github.com/veloroute/veloroute_core/internal/domain"
	"github.com/veloroute/veloroute_core/internal/gpx"
	"github.com/veloroute/veloroute_core/internal/middleware"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

const detailCacheTTL = 10 * time.Minute

// Handler carries the use-case layer into the fiber handlers.
type Handler struct {
	uc *usecase.RouteUseCase
}

func NewHandler(uc *usecase.RouteUseCase) *Handler {
	return &Handler{uc: uc}
}

type createRouteRequest struct {
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type coordinateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type editRequest struct {
	Mode  string             `json:"mode"`
	Coord *coordinateRequest `json:"coord"`
}

type permissionRequest struct {
	UserID         string `json:"user_id"`
	PermissionType string `json:"permission_type"`
}

// ListRoutes handles GET /routes/
func (h *Handler) ListRoutes(c *fiber.Ctx) error {
	infos, err := h.uc.FindAll(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"routes": toInfoDTOs(infos)})
}

// SearchRoutes handles GET /routes/search
func (h *Handler) SearchRoutes(c *fiber.Ctx) error {
	query := usecase.SearchQuery{
		OwnerID:  c.Query("owner_id"),
		CallerID: middleware.UserID(c),
	}

	var err error
	if query.PageOffset, err = queryInt(c, "page_offset", 0); err != nil {
		return err
	}
	if query.PageSize, err = queryInt(c, "page_size", 0); err != nil {
		return err
	}
	if raw := c.Query("is_editable"); raw != "" {
		query.IsEditable, err = strconv.ParseBool(raw)
		if err != nil {
			return domain.Errorf(domain.KindValidation, "is_editable must be a boolean, got %q", raw)
		}
	}

	infos, total, err := h.uc.Search(c.Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"routes":      toInfoDTOs(infos),
		"total":       total,
		"page_offset": query.PageOffset,
		"page_size":   query.PageSize,
	})
}

// GetRoute handles GET /routes/:id. Details of public routes are served
// from the cache; private routes always go through the authorizing read
// path.
func (h *Handler) GetRoute(c *fiber.Ctx) error {
	routeID := c.Params("id")

	// Only public details are ever cached, so a hit is safe to serve
	// without consulting permissions.
	if body, err := cache.GetDetail(c.Context(), routeID); err == nil && body != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(body)
	}

	detail, err := h.uc.FindDetail(c.Context(), routeID, middleware.UserID(c))
	if err != nil {
		return err
	}

	dto := toDetailDTO(detail)
	if detail.Info.IsPublic {
		if body, err := json.Marshal(dto); err == nil {
			if err := cache.SetDetail(c.Context(), routeID, body, detailCacheTTL); err != nil {
				log.Printf("failed to cache route detail: %v", err)
			}
		}
	}
	return c.JSON(dto)
}

// ExportGPX handles GET /routes/:id/gpx/
func (h *Handler) ExportGPX(c *fiber.Ctx) error {
	detail, err := h.uc.FindDetail(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}

	body, err := gpx.Build(detail.Info.Name, detail.Segments)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/gpx+xml")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", gpxFilename(detail.Info.Name)))
	return c.Send(body)
}

// CreateRoute handles POST /routes/
func (h *Handler) CreateRoute(c *fiber.Ctx) error {
	var req createRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}

	id, err := h.uc.Create(c.Context(), middleware.UserID(c), req.Name, req.IsPublic)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// RenameRoute handles PATCH /routes/:id/rename/
func (h *Handler) RenameRoute(c *fiber.Ctx) error {
	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}

	routeID := c.Params("id")
	info, err := h.uc.Rename(c.Context(), routeID, middleware.UserID(c), req.Name)
	if err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(toInfoDTO(info))
}

// AddPoint handles PATCH /routes/:id/add/:pos
func (h *Handler) AddPoint(c *fiber.Ctx) error {
	return h.editWithCoord(c, h.uc.AddPoint)
}

// MovePoint handles PATCH /routes/:id/move/:pos
func (h *Handler) MovePoint(c *fiber.Ctx) error {
	return h.editWithCoord(c, h.uc.MovePoint)
}

// RemovePoint handles PATCH /routes/:id/remove/:pos
func (h *Handler) RemovePoint(c *fiber.Ctx) error {
	pos, err := paramInt(c, "pos")
	if err != nil {
		return err
	}
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}
	mode, err := domain.ParseDrawingMode(req.Mode)
	if err != nil {
		return err
	}

	routeID := c.Params("id")
	result, err := h.uc.RemovePoint(c.Context(), routeID, middleware.UserID(c), pos, mode)
	if err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(toOpResultDTO(result))
}

// ClearRoute handles PATCH /routes/:id/clear/
func (h *Handler) ClearRoute(c *fiber.Ctx) error {
	return h.editPlain(c, h.uc.ClearRoute)
}

// Undo handles PATCH /routes/:id/undo/
func (h *Handler) Undo(c *fiber.Ctx) error {
	return h.editPlain(c, h.uc.Undo)
}

// Redo handles PATCH /routes/:id/redo/
func (h *Handler) Redo(c *fiber.Ctx) error {
	return h.editPlain(c, h.uc.Redo)
}

// DeleteRoute handles DELETE /routes/:id
func (h *Handler) DeleteRoute(c *fiber.Ctx) error {
	routeID := c.Params("id")
	if err := h.uc.DeleteRoute(c.Context(), routeID, middleware.UserID(c)); err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(fiber.Map{"message": "deleted"})
}

// PutPermission handles PUT /routes/:id/permissions/
func (h *Handler) PutPermission(c *fiber.Ctx) error {
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}
	ptype, err := domain.ParsePermissionType(req.PermissionType)
	if err != nil {
		return err
	}

	routeID := c.Params("id")
	if err := h.uc.PutPermission(c.Context(), routeID, middleware.UserID(c), req.UserID, ptype); err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(fiber.Map{"message": "ok"})
}

// DeletePermission handles DELETE /routes/:id/permissions/
func (h *Handler) DeletePermission(c *fiber.Ctx) error {
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}
	if req.UserID == "" {
		return domain.NewValidationError("user_id must not be empty")
	}

	routeID := c.Params("id")
	if err := h.uc.DeletePermission(c.Context(), routeID, middleware.UserID(c), req.UserID); err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(fiber.Map{"message": "ok"})
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	status := "ok"
	checks := fiber.Map{}

	if err := db.HealthCheck(c.Context()); err != nil {
		status = "degraded"
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}
	if err := cache.HealthCheck(c.Context()); err != nil {
		status = "degraded"
		checks["cache"] = err.Error()
	} else {
		checks["cache"] = "ok"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "checks": checks})
}

type coordEdit func(ctx context.Context, routeID, userID string, pos int, coord domain.Coordinate, mode domain.DrawingMode) (*usecase.RouteOpResult, error)

func (h *Handler) editWithCoord(c *fiber.Ctx, edit coordEdit) error {
	pos, err := paramInt(c, "pos")
	if err != nil {
		return err
	}
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.WrapError(domain.KindValidation, "malformed request body", err)
	}
	mode, err := domain.ParseDrawingMode(req.Mode)
	if err != nil {
		return err
	}
	if req.Coord == nil {
		return domain.NewValidationError("coord is required")
	}
	coord, err := domain.NewCoordinate(req.Coord.Latitude, req.Coord.Longitude)
	if err != nil {
		return err
	}

	routeID := c.Params("id")
	result, err := edit(c.Context(), routeID, middleware.UserID(c), pos, coord, mode)
	if err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(toOpResultDTO(result))
}

type plainEdit func(ctx context.Context, routeID, userID string) (*usecase.RouteOpResult, error)

func (h *Handler) editPlain(c *fiber.Ctx, edit plainEdit) error {
	routeID := c.Params("id")
	result, err := edit(c.Context(), routeID, middleware.UserID(c))
	if err != nil {
		return err
	}
	invalidateDetail(c.Context(), routeID)
	return c.JSON(toOpResultDTO(result))
}

func invalidateDetail(ctx context.Context, routeID string) {
	if err := cache.Invalidate(ctx, routeID); err != nil {
		log.Printf("failed to invalidate route detail cache: %v", err)
	}
}

func paramInt(c *fiber.Ctx, name string) (int, error) {
	value, err := strconv.Atoi(c.Params(name))
	if err != nil {
		return 0, domain.Errorf(domain.KindValidation, "%s must be an integer", name)
	}
	return value, nil
}

func queryInt(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Errorf(domain.KindValidation, "%s must be an integer, got %q", name, raw)
	}
	return value, nil
}

// gpxFilename strips characters that would break the header quoting.
func gpxFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\n', '\r':
			return '_'
		default:
			return r
		}
	}, name)
	return clean + ".gpx"
}
