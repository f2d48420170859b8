package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/utils"
)

// JWTMiddleware resolves the bearer token through gate and stores the
// caller as "user_id" and "role" on the echo context.
func JWTMiddleware(gate session.Gate, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := utils.BearerToken(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			ctx := c.Request().Context()
			id, err := gate.Resolve(ctx, token)
			if err != nil {
				if !errors.Is(err, session.ErrUnauthenticated) {
					log.Error("resolve session", zap.Error(err))
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set("user_id", id.UserID)
			c.Set("role", string(id.Role))
			c.Set("token", token)

			l := logger.FromContext(ctx, log).With(zap.String("user_id", id.UserID))
			c.SetRequest(c.Request().WithContext(logger.WithContext(ctx, l)))
			return next(c)
		}
	}
}

// Identity returns the caller stored by JWTMiddleware.
func Identity(c echo.Context) (session.Identity, bool) {
	userID, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	if userID == "" || role == "" {
		return session.Identity{}, false
	}
	return session.Identity{UserID: userID, Role: session.Role(role)}, true
}
