package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veloroute/veloroute_core/internal/middleware"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

// RegisterRoutes wires all endpoints onto the app. Reads take optional
// auth; every mutation requires a verified token.
func RegisterRoutes(app *fiber.App, h *Handler, verifier usecase.TokenVerifier) {
	app.Get("/health", h.Health)

	routes := app.Group("/routes")

	optional := middleware.OptionalAuth(verifier)
	required := middleware.RequireAuth(verifier)

	routes.Get("/", optional, h.ListRoutes)
	routes.Get("/search", optional, h.SearchRoutes)
	routes.Get("/:id", optional, h.GetRoute)
	routes.Get("/:id/gpx/", optional, h.ExportGPX)

	routes.Post("/", required, h.CreateRoute)
	routes.Patch("/:id/rename/", required, h.RenameRoute)
	routes.Patch("/:id/add/:pos", required, h.AddPoint)
	routes.Patch("/:id/remove/:pos", required, h.RemovePoint)
	routes.Patch("/:id/move/:pos", required, h.MovePoint)
	routes.Patch("/:id/clear/", required, h.ClearRoute)
	routes.Patch("/:id/undo/", required, h.Undo)
	routes.Patch("/:id/redo/", required, h.Redo)
	routes.Delete("/:id", required, h.DeleteRoute)

	routes.Put("/:id/permissions/", required, h.PutPermission)
	routes.Delete("/:id/permissions/", required, h.DeletePermission)
}
