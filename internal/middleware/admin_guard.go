package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meujardineiro/backend/internal/session"
)

// AdminGuard ensures only admin users can access admin routes
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get("role").(string)
		if !ok || session.Role(role) != session.RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "admin access only",
			})
		}
		return next(c)
	}
}
