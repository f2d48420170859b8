package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	mware "github.com/meujardineiro/backend/internal/middleware"
)

type CounterRequest struct {
	Value   *decimal.Decimal `json:"value" validate:"required"`
	Message string           `json:"message" validate:"max=500"`
}

type AdvanceStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateOrder - customer opens a new order
func (h *Handler) CreateOrder(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	var req CreateOrderInput
	if msg, ok := bind(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	o, err := h.engine.CreateOrder(c.Request().Context(), who, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order":   o,
		"message": "Order created. Waiting for a provider.",
	})
}

// ListMyOrders - customers see what they placed, providers what they took
func (h *Handler) ListMyOrders(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	orders, err := h.engine.ListMyOrders(c.Request().Context(), who)
	if err != nil {
		return h.respondError(c, err)
	}
	if orders == nil {
		orders = []ServiceOrder{}
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// ListAvailableOrders - pool orders a provider may accept or counter
func (h *Handler) ListAvailableOrders(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	orders, err := h.engine.ListAvailableOrders(c.Request().Context(), who)
	if err != nil {
		return h.respondError(c, err)
	}
	if orders == nil {
		orders = []ServiceOrder{}
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *Handler) GetOrder(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	o, err := h.engine.GetOrder(c.Request().Context(), who, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	actions := Allowed(o, who)
	if actions == nil {
		actions = []Action{}
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "actions": actions})
}

func (h *Handler) ListNegotiations(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	log, err := h.engine.ListNegotiations(c.Request().Context(), who, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if log == nil {
		log = []Negotiation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"negotiations": log})
}

// AcceptOrder - provider takes the order at the value on the table
func (h *Handler) AcceptOrder(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	o, err := h.engine.AcceptOrder(c.Request().Context(), who, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Order accepted."})
}

// CounterPropose - either side puts a new value on the table
func (h *Handler) CounterPropose(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	var req CounterRequest
	if msg, ok := bind(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	o, err := h.engine.CounterPropose(c.Request().Context(), who, c.Param("id"), *req.Value, req.Message)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Proposal sent."})
}

// AcceptCounter - customer takes the provider's latest proposal
func (h *Handler) AcceptCounter(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	o, err := h.engine.AcceptCounter(c.Request().Context(), who, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Proposal accepted."})
}

// AdvanceStatus - bound provider moves the job forward one step
func (h *Handler) AdvanceStatus(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	var req AdvanceStatusRequest
	if msg, ok := bind(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	o, err := h.engine.AdvanceStatus(c.Request().Context(), who, c.Param("id"), req.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Status updated to " + o.Status.Label() + "."})
}

func (h *Handler) CancelOrder(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	var req CancelRequest
	if msg, ok := bind(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	o, err := h.engine.CancelOrder(c.Request().Context(), who, c.Param("id"), req.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Order cancelled."})
}
