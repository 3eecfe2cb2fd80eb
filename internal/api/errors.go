package api

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/veloroute/veloroute_core/internal/domain"
)

// statusOf maps an error kind to its HTTP status code.
func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindAuthentication:
		return fiber.StatusUnauthorized
	case domain.KindAuthorization:
		return fiber.StatusForbidden
	case domain.KindValidation, domain.KindInvalidOperation:
		return fiber.StatusBadRequest
	case domain.KindResourceNotFound:
		return fiber.StatusNotFound
	default: // Domain, Database, External
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the app-level fiber error handler: it serializes every
// error as {"message": ...} with the status its kind maps to.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(domain.KindOf(err))
	message := err.Error()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	} else if status == fiber.StatusInternalServerError {
		// Internal details stay in the log, not on the wire.
		log.Printf("request failed: %v", err)
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			message = domainErr.Message
		}
	}

	body, _ := json.Marshal(fiber.Map{"message": message})
	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	return c.Status(status).Send(body)
}
