package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

const resetPurpose = "password_reset"

type resetClaims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type RequestPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

const resetRequested = "If the email exists, a reset link has been sent."

// POST /auth/password/request
// Always responds with success message to avoid user enumeration.
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	req := new(RequestPasswordResetRequest)
	if _, ok := bindAndValidate(c, req); !ok {
		return c.JSON(http.StatusOK, echo.Map{"message": resetRequested})
	}
	ctx := c.Request().Context()
	log := logger.FromContext(ctx, h.log)

	u, err := h.users.GetByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil || !u.Active {
		return c.JSON(http.StatusOK, echo.Map{"message": resetRequested})
	}

	token, err := h.resetToken(u.ID)
	if err != nil {
		log.Error("sign reset token", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"message": resetRequested})
	}
	if h.mail != nil {
		if err := h.mail.PasswordReset(ctx, u.ID, u.Email, u.Name, token, h.opts.ResetTTL); err != nil {
			log.Warn("enqueue password reset", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": resetRequested})
}

func (h *Handler) resetToken(userID string) (string, error) {
	now := time.Now()
	claims := resetClaims{
		UserID:  userID,
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.ResetTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.opts.ResetSecret))
}

func (h *Handler) parseResetToken(token string) (string, error) {
	claims := &resetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.opts.ResetSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid or expired token")
	}
	if claims.Purpose != resetPurpose || claims.UserID == "" {
		return "", errors.New("invalid token purpose")
	}
	return claims.UserID, nil
}

// POST /auth/password/reset
func (h *Handler) ResetPassword(c echo.Context) error {
	req := new(ResetPasswordRequest)
	if msg, ok := bindAndValidate(c, req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if problems := utils.PasswordProblems(req.NewPassword); len(problems) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": problems[0]})
	}
	userID, err := h.parseResetToken(req.Token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.opts.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	if err := h.users.SetPassword(ctx, userID, string(hashed)); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		logger.FromContext(ctx, h.log).Error("update password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update password"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated successfully"})
}
