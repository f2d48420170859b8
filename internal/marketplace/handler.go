package marketplace

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	mware "github.com/meujardineiro/backend/internal/middleware"
	"github.com/meujardineiro/backend/internal/session"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
	log    *zap.Logger
}

func NewHandler(engine *Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

// Register mounts the order routes, which expect JWTMiddleware on the group,
// and the public provider review listing.
func (h *Handler) Register(orders *echo.Group, providers *echo.Group) {
	orders.POST("", h.CreateOrder, mware.RequireRoles(session.RoleCustomer))
	orders.GET("/me", h.ListMyOrders)
	orders.GET("/available", h.ListAvailableOrders, mware.RequireRoles(session.RoleProvider))
	orders.GET("/:id", h.GetOrder)
	orders.GET("/:id/negotiations", h.ListNegotiations)
	orders.POST("/:id/accept", h.AcceptOrder)
	orders.POST("/:id/counter", h.CounterPropose)
	orders.POST("/:id/accept-counter", h.AcceptCounter)
	orders.POST("/:id/status", h.AdvanceStatus)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.POST("/:id/review", h.CreateReview)

	providers.GET("/:id/reviews", h.GetProviderReviews)
}

var errNoCaller = echo.Map{"error": "unauthorized"}

// bind decodes and validates the request body into req. On failure it
// returns the message to send back.
func bind(c echo.Context, req any) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid request", false
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return err.Error(), false
		}
	}
	return "", true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError maps engine errors to HTTP. Anything unexpected is logged and
// hidden behind a generic message.
func (h *Handler) respondError(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.FromContext(c.Request().Context(), h.log).Error("order request failed",
			zap.String("path", c.Path()),
			zap.String("order_id", c.Param("id")),
			zap.Error(err),
		)
		return c.JSON(code, echo.Map{"error": "internal server error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}
