package marketplace

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meujardineiro/backend/internal/session"
)

// Status of a service order. See policy.go for the allowed moves.
type Status string

const (
	StatusAwaitingAcceptance Status = "awaiting_acceptance"
	StatusNegotiating        Status = "negotiating"
	StatusAccepted           Status = "accepted"
	StatusEnRoute            Status = "en_route"
	StatusInProgress         Status = "in_progress"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{
	StatusAwaitingAcceptance,
	StatusNegotiating,
	StatusAccepted,
	StatusEnRoute,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

var statusLabels = map[Status]string{
	StatusAwaitingAcceptance: "Aguardando aceite",
	StatusNegotiating:        "Em negociação",
	StatusAccepted:           "Aceito",
	StatusEnRoute:            "A caminho",
	StatusInProgress:         "Em andamento",
	StatusCompleted:          "Concluído",
	StatusCancelled:          "Cancelado",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the customer-facing (pt-BR) name of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InPool reports whether orders in this status may still be picked up by
// any provider.
func (s Status) InPool() bool {
	return s == StatusAwaitingAcceptance || s == StatusNegotiating
}

// Assigned reports whether an order in this status must carry a provider.
func (s Status) Assigned() bool {
	switch s {
	case StatusAccepted, StatusEnRoute, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type ServiceType string

const (
	ServiceMowing      ServiceType = "mowing"
	ServicePruning     ServiceType = "pruning"
	ServiceGardening   ServiceType = "gardening"
	ServiceLotCleaning ServiceType = "lot_cleaning"
	ServiceMaintenance ServiceType = "maintenance"
	ServiceOther       ServiceType = "other"
)

var serviceTypeLabels = map[ServiceType]string{
	ServiceMowing:      "Roçagem",
	ServicePruning:     "Poda",
	ServiceGardening:   "Jardinagem",
	ServiceLotCleaning: "Limpeza de terreno",
	ServiceMaintenance: "Manutenção",
	ServiceOther:       "Outro",
}

func (t ServiceType) Valid() bool {
	_, ok := serviceTypeLabels[t]
	return ok
}

func (t ServiceType) Label() string {
	if l, ok := serviceTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// ServiceOrder is a customer's request for garden work.
type ServiceOrder struct {
	ID                    string           `json:"id"`
	CustomerID            string           `json:"customer_id"`
	ProviderID            *string          `json:"provider_id"`
	CounterProviderID     *string          `json:"counter_provider_id,omitempty"`
	ServiceType           ServiceType      `json:"service_type"`
	Description           string           `json:"description"`
	Area                  string           `json:"area,omitempty"`
	Address               string           `json:"address"`
	Latitude              *float64         `json:"latitude,omitempty"`
	Longitude             *float64         `json:"longitude,omitempty"`
	DesiredDate           *time.Time       `json:"desired_date,omitempty"`
	Photos                []string         `json:"photos"`
	Status                Status           `json:"status"`
	CustomerProposedValue *decimal.Decimal `json:"customer_proposed_value"`
	ProviderProposedValue *decimal.Decimal `json:"provider_proposed_value"`
	FinalValue            *decimal.Decimal `json:"final_value"`
	Rating                *int             `json:"rating,omitempty"`
	Review                *string          `json:"review,omitempty"`
	Version               int64            `json:"version"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so stores never hand out their own pointers.
func (o *ServiceOrder) Clone() *ServiceOrder {
	if o == nil {
		return nil
	}
	c := *o
	c.ProviderID = cloneString(o.ProviderID)
	c.CounterProviderID = cloneString(o.CounterProviderID)
	c.Review = cloneString(o.Review)
	c.CustomerProposedValue = cloneDecimal(o.CustomerProposedValue)
	c.ProviderProposedValue = cloneDecimal(o.ProviderProposedValue)
	c.FinalValue = cloneDecimal(o.FinalValue)
	if o.Latitude != nil {
		v := *o.Latitude
		c.Latitude = &v
	}
	if o.Longitude != nil {
		v := *o.Longitude
		c.Longitude = &v
	}
	if o.DesiredDate != nil {
		v := *o.DesiredDate
		c.DesiredDate = &v
	}
	if o.Rating != nil {
		v := *o.Rating
		c.Rating = &v
	}
	c.Photos = append([]string{}, o.Photos...)
	return &c
}

// InvolvedParty reports whether userID is the customer or the bound provider.
func (o *ServiceOrder) InvolvedParty(userID string) bool {
	if o.CustomerID == userID {
		return true
	}
	return o.ProviderID != nil && *o.ProviderID == userID
}

// Negotiation is one entry of the append-only proposal log of an order.
type Negotiation struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Role          session.Role    `json:"role"`
	ProposedValue decimal.Decimal `json:"proposed_value"`
	Message       string          `json:"message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
