package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	mware "github.com/meujardineiro/backend/internal/middleware"
	"github.com/meujardineiro/backend/internal/session"
)

// PATCH /users/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	var req Update
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	if msg := checkUpdate(who.Role, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx := c.Request().Context()
	u, err := h.store.Update(ctx, who.UserID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		logger.FromContext(ctx, h.log).Error("update profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
		"user":    u,
	})
}

func checkUpdate(role session.Role, req *Update) string {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return "name cannot be empty"
		}
		req.Name = &name
	}
	providerOnly := req.CompanyName != nil || req.Availability != nil || req.Specialties != nil ||
		req.ServiceRadiusKm != nil || req.Latitude != nil || req.Longitude != nil
	if providerOnly && role != session.RoleProvider {
		return "only providers can set service details"
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return "latitude and longitude must be given together"
	}
	for _, s := range req.Specialties {
		if !s.Valid() {
			return "unknown specialty " + string(s)
		}
	}
	return ""
}
