package admin

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/user"
)

// OrderCounter is implemented by the order stores.
type OrderCounter interface {
	CountByStatus(ctx context.Context) (map[marketplace.Status]int, error)
}

type Handler struct {
	users  user.Store
	orders OrderCounter
	log    *zap.Logger
}

func NewHandler(users user.Store, orders OrderCounter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, orders: orders, log: log}
}

// Register mounts the admin routes. g must already carry JWTMiddleware and
// AdminGuard.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/stats", h.Stats)
	g.GET("/users", h.ListUsers)
	g.POST("/users/:id/suspend", h.SuspendUser)
	g.POST("/users/:id/activate", h.ActivateUser)
}
