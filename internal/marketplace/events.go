package marketplace

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meujardineiro/backend/internal/session"
)

type EventKind string

const (
	EventOrderCreated    EventKind = "order.created"
	EventCounterProposal EventKind = "order.counter_proposal"
	EventOrderAccepted   EventKind = "order.accepted"
	EventStatusAdvanced  EventKind = "order.status_advanced"
	EventOrderCancelled  EventKind = "order.cancelled"
	EventOrderRated      EventKind = "order.rated"
)

// Event describes a committed change to an order.
type Event struct {
	Kind    EventKind        `json:"kind"`
	Order   ServiceOrder     `json:"order"`
	Actor   session.Identity `json:"actor"`
	Value   *decimal.Decimal `json:"value,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Notifier receives events after the write succeeded. It must not block
// for long and its failures never undo a transition.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// ProviderStats receives a provider's recomputed rating after a review or
// completion.
type ProviderStats interface {
	SetProviderStats(ctx context.Context, providerID string, rating float64, totalServices int) error
}
