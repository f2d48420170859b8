package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx, h.log)

	byStatus, err := h.orders.CountByStatus(ctx)
	if err != nil {
		log.Error("count orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load stats"})
	}
	byRole, err := h.users.CountByRole(ctx)
	if err != nil {
		log.Error("count users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load stats"})
	}

	orders := make(map[string]int, len(marketplace.AllStatuses))
	totalOrders := 0
	for _, s := range marketplace.AllStatuses {
		orders[string(s)] = byStatus[s]
		totalOrders += byStatus[s]
	}
	users := map[string]int{}
	totalUsers := 0
	for _, r := range []session.Role{session.RoleCustomer, session.RoleProvider, session.RoleAdmin} {
		users[string(r)] = byRole[r]
		totalUsers += byRole[r]
	}

	return c.JSON(http.StatusOK, echo.Map{
		"orders":       orders,
		"total_orders": totalOrders,
		"users":        users,
		"total_users":  totalUsers,
	})
}
