package marketplace

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStore persists orders and their negotiation log.
type OrderStore interface {
	// Create inserts o together with any initial negotiation entries and
	// returns the order id.
	Create(ctx context.Context, o *ServiceOrder, log ...Negotiation) (string, error)
	Get(ctx context.Context, id string) (*ServiceOrder, error)
	ListByCustomer(ctx context.Context, customerID string) ([]ServiceOrder, error)
	ListByProvider(ctx context.Context, providerID string) ([]ServiceOrder, error)
	// ListUnassignedNegotiable returns pool orders newest first.
	ListUnassignedNegotiable(ctx context.Context) ([]ServiceOrder, error)
	// Update applies p atomically. When pre is non-nil the stored status and
	// version must match or ErrConflict is returned. The version is bumped on
	// every successful update.
	Update(ctx context.Context, id string, p Patch, pre *Precondition) (*ServiceOrder, error)
	// ListNegotiations returns the log of an order oldest first.
	ListNegotiations(ctx context.Context, orderID string) ([]Negotiation, error)
}

type Precondition struct {
	Status  Status
	Version int64
}

// Patch lists the fields an update may touch. Nil means unchanged.
type Patch struct {
	Status                *Status
	ProviderID            *string
	CounterProviderID     *string
	CustomerProposedValue *decimal.Decimal
	ProviderProposedValue *decimal.Decimal
	FinalValue            *decimal.Decimal
	Rating                *int
	Review                *string
	UpdatedAt             time.Time

	// Negotiation is appended to the log in the same transaction.
	Negotiation *Negotiation
}

// Apply copies the set fields of p onto o and bumps the version.
func (p Patch) Apply(o *ServiceOrder) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.ProviderID != nil {
		o.ProviderID = cloneString(p.ProviderID)
	}
	if p.CounterProviderID != nil {
		o.CounterProviderID = cloneString(p.CounterProviderID)
	}
	if p.CustomerProposedValue != nil {
		o.CustomerProposedValue = cloneDecimal(p.CustomerProposedValue)
	}
	if p.ProviderProposedValue != nil {
		o.ProviderProposedValue = cloneDecimal(p.ProviderProposedValue)
	}
	if p.FinalValue != nil {
		o.FinalValue = cloneDecimal(p.FinalValue)
	}
	if p.Rating != nil {
		v := *p.Rating
		o.Rating = &v
	}
	if p.Review != nil {
		o.Review = cloneString(p.Review)
	}
	if !p.UpdatedAt.IsZero() {
		o.UpdatedAt = p.UpdatedAt
	}
	o.Version++
}
