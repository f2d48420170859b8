package admin

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
)

type AdminUser struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      session.Role `json:"role"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// GET /admin/users?role=&page=&limit=
func (h *Handler) ListUsers(c echo.Context) error {
	f := user.ListFilter{Limit: 20}
	if r := c.QueryParam("role"); r != "" {
		f.Role = session.Role(r)
		if !f.Role.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		f.Limit = l
	}
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		if p > math.MaxInt/f.Limit {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "page out of range"})
		}
		page = p
	}
	f.Offset = (page - 1) * f.Limit

	ctx := c.Request().Context()
	list, total, err := h.users.List(ctx, f)
	if err != nil {
		logger.FromContext(ctx, h.log).Error("list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch users"})
	}

	users := make([]AdminUser, 0, len(list))
	for _, u := range list {
		users = append(users, AdminUser{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			IsActive:  u.Active,
			CreatedAt: u.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users": users,
		"pagination": echo.Map{
			"page":  page,
			"limit": f.Limit,
			"total": total,
		},
	})
}

// POST /admin/users/:id/suspend
func (h *Handler) SuspendUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	if who, _ := c.Get("user_id").(string); who == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot suspend yourself"})
	}
	if code, msg := h.setActive(c, userID, false); code != 0 {
		return c.JSON(code, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user suspended", "user_id": userID})
}

// POST /admin/users/:id/activate
func (h *Handler) ActivateUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	if code, msg := h.setActive(c, userID, true); code != 0 {
		return c.JSON(code, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user activated", "user_id": userID})
}

// setActive returns the status and message to send when the update failed,
// or zero when it succeeded.
func (h *Handler) setActive(c echo.Context, userID string, active bool) (int, string) {
	err := h.users.SetActive(c.Request().Context(), userID, active)
	if err == nil {
		return 0, ""
	}
	if errors.Is(err, user.ErrNotFound) {
		return http.StatusNotFound, "user not found"
	}
	logger.FromContext(c.Request().Context(), h.log).Error("set user active",
		zap.String("user_id", userID), zap.Bool("active", active), zap.Error(err))
	return http.StatusInternalServerError, "failed to update user"
}
