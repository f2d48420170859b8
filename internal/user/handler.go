package user

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, log: log}
}

// Register mounts the profile routes on g. authed must resolve the session.
func (h *Handler) Register(g *echo.Group, authed echo.MiddlewareFunc) {
	g.GET("/:id/profile", h.GetPublicProfile)
	g.PATCH("/profile", h.UpdateProfile, authed)
}
