package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	mware "github.com/meujardineiro/backend/internal/middleware"
	"github.com/meujardineiro/backend/internal/user"
)

// Me returns the currently authenticated user's profile
func (h *Handler) Me(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.users.Get(c.Request().Context(), who.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		logger.FromContext(c.Request().Context(), h.log).Error("load me", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	return c.JSON(http.StatusOK, u)
}
