package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if msg, ok := bindAndValidate(c, req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	log := logger.FromContext(ctx, h.log)

	u, err := h.users.GetByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			log.Error("lookup user", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.Active {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
	}

	resp, err := h.tokenFor(u)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the token the request was made with.
func (h *Handler) Logout(c echo.Context) error {
	token, _ := c.Get("token").(string)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	if err := h.issuer.Revoke(ctx, token); err != nil {
		logger.FromContext(ctx, h.log).Error("revoke token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
