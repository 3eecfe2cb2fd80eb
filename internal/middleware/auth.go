package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/veloroute/veloroute_core/internal/domain"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

// UserIDKey is the locals key under which the authenticated user id is
// stored. An empty string means the request is anonymous.
const UserIDKey = "user_id"

// UserID returns the authenticated user id, or "" for anonymous
// requests.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// RequireAuth verifies the bearer token and stores the resolved user id
// in locals. Requests without a valid token are rejected.
func RequireAuth(verifier usecase.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		userID, err := verifier.Verify(c.Context(), token)
		if err != nil {
			return err
		}
		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// OptionalAuth resolves the bearer token when present and continues
// anonymously otherwise. An invalid token is still rejected.
func OptionalAuth(verifier usecase.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			c.Locals(UserIDKey, "")
			return c.Next()
		}
		return RequireAuth(verifier)(c)
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get("Authorization")
	if header == "" {
		return "", domain.NewAuthenticationError("authorization header is required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", domain.NewAuthenticationError("authorization header must be: Bearer <token>")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", domain.NewAuthenticationError("token must not be empty")
	}
	return token, nil
}
