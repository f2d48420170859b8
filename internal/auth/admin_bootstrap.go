package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

type BootstrapAdminRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// BootstrapAdmin promotes an existing account to admin when the caller
// knows the configured bootstrap secret.
func (h *Handler) BootstrapAdmin(c echo.Context) error {
	req := new(BootstrapAdminRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if h.opts.BootstrapSecret == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
	}
	if req.Secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.opts.BootstrapSecret)) != 1 {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	email := utils.NormalizeEmail(req.Email)
	err := h.users.SetRoleByEmail(c.Request().Context(), email, session.RoleAdmin)
	if errors.Is(err, user.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		logger.FromContext(c.Request().Context(), h.log).Error("promote user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote user"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "email": email})
}
