package marketplace

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mware "github.com/meujardineiro/backend/internal/middleware"
)

// CreateReview allows a customer to rate a completed order
func (h *Handler) CreateReview(c echo.Context) error {
	who, ok := mware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errNoCaller)
	}
	var req CreateReviewRequest
	if msg, ok := bind(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	o, err := h.engine.RateOrder(c.Request().Context(), who, c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order":   o,
		"message": "Review created successfully",
	})
}

// GetProviderReviews returns the reviews of a provider with a rating summary
func (h *Handler) GetProviderReviews(c echo.Context) error {
	providerID := c.Param("id")
	if providerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing provider id"})
	}

	page := 1
	limit := 10
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
			if p > math.MaxInt/limit {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "page out of range"})
			}
			page = p
		}
	}

	summary, reviews, err := h.engine.ProviderReviews(c.Request().Context(), providerID, page, limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"provider_summary": summary,
		"reviews":          reviews,
		"pagination": echo.Map{
			"page":  page,
			"limit": limit,
			"total": summary.TotalReviews,
		},
	})
}
