package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-engage-api/internal/utils"
)

// ReviewerRoles are the roles allowed to manage challenges and review submissions.
var ReviewerRoles = []string{"admin", "teacher"}

// RequireUser rejects requests whose token did not carry a usable subject.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch id := c.Locals("user_id").(type) {
		case uint:
			if id > 0 {
				return c.Next()
			}
		case int:
			if id > 0 {
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
}

// RequireRole lets a request through when the token role is one of roles.
// A request without any role is treated as unauthenticated.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRole(c.Locals("user_role"))
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "user role missing")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireReviewer allows admins and teachers through.
func RequireReviewer() fiber.Handler {
	return RequireRole(ReviewerRoles...)
}
