package marketplace

import (
	"context"
	"math"
	"sort"
	"time"
)

// Review is the customer's rating of a completed order.
type Review struct {
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	ProviderID  string      `json:"provider_id"`
	ServiceType ServiceType `json:"service_type"`
	Rating      int         `json:"rating"`
	Comment     string      `json:"comment"`
	RatedAt     time.Time   `json:"rated_at"`
}

// ProviderRatingSummary represents aggregated rating data for a provider
type ProviderRatingSummary struct {
	ProviderID        string  `json:"provider_id"`
	TotalReviews      int     `json:"total_reviews"`
	AverageRating     float64 `json:"average_rating"`
	CompletedServices int     `json:"completed_services"`
	RatingCounts      struct {
		FiveStar  int `json:"five_star"`
		FourStar  int `json:"four_star"`
		ThreeStar int `json:"three_star"`
		TwoStar   int `json:"two_star"`
		OneStar   int `json:"one_star"`
	} `json:"rating_counts"`
}

// CreateReviewRequest represents the request payload for rating an order
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func summarize(providerID string, orders []ServiceOrder) ProviderRatingSummary {
	s := ProviderRatingSummary{ProviderID: providerID}
	sum := 0
	for _, o := range orders {
		if o.Status != StatusCompleted {
			continue
		}
		s.CompletedServices++
		if o.Rating == nil {
			continue
		}
		s.TotalReviews++
		sum += *o.Rating
		switch *o.Rating {
		case 5:
			s.RatingCounts.FiveStar++
		case 4:
			s.RatingCounts.FourStar++
		case 3:
			s.RatingCounts.ThreeStar++
		case 2:
			s.RatingCounts.TwoStar++
		case 1:
			s.RatingCounts.OneStar++
		}
	}
	if s.TotalReviews > 0 {
		s.AverageRating = math.Round(float64(sum)/float64(s.TotalReviews)*100) / 100
	}
	return s
}

// ProviderReviews returns the rating summary of a provider and one page of
// reviews, newest first. page starts at 1.
func (e *Engine) ProviderReviews(ctx context.Context, providerID string, page, limit int) (ProviderRatingSummary, []Review, error) {
	orders, err := e.store.ListByProvider(ctx, providerID)
	if err != nil {
		return ProviderRatingSummary{}, nil, err
	}
	summary := summarize(providerID, orders)

	reviews := make([]Review, 0, summary.TotalReviews)
	for _, o := range orders {
		if o.Status != StatusCompleted || o.Rating == nil {
			continue
		}
		r := Review{
			OrderID:     o.ID,
			CustomerID:  o.CustomerID,
			ProviderID:  providerID,
			ServiceType: o.ServiceType,
			Rating:      *o.Rating,
			RatedAt:     o.UpdatedAt,
		}
		if o.Review != nil {
			r.Comment = *o.Review
		}
		reviews = append(reviews, r)
	}
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].RatedAt.After(reviews[j].RatedAt) })

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if page-1 > len(reviews)/limit {
		return summary, []Review{}, nil
	}
	start := (page - 1) * limit
	if start >= len(reviews) {
		return summary, []Review{}, nil
	}
	end := start + min(limit, len(reviews)-start)
	return summary, reviews[start:end], nil
}
