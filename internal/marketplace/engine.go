package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/session"
)

const (
	maxMessageLen     = 500
	maxReviewLen      = 1000
	maxDescriptionLen = 2000
)

var maxValue = decimal.NewFromInt(1_000_000)

// Engine runs the order lifecycle. It holds no mutable state of its own;
// every mutation is a read, a policy check and a conditional write.
type Engine struct {
	store      OrderStore
	visibility *Visibility
	notifier   Notifier
	stats      ProviderStats
	log        *zap.Logger
	now        func() time.Time
}

type Option func(*Engine)

func WithVisibility(v *Visibility) Option {
	return func(e *Engine) { e.visibility = v }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithProviderStats keeps provider ratings in sync after reviews.
func WithProviderStats(s ProviderStats) Option {
	return func(e *Engine) { e.stats = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store OrderStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.visibility == nil {
		e.visibility = NewVisibility(store, nil)
	}
	return e
}

// CreateOrderInput is what a customer supplies for a new order.
type CreateOrderInput struct {
	ServiceType   ServiceType      `json:"service_type" validate:"required"`
	Description   string           `json:"description" validate:"required"`
	Area          string           `json:"area"`
	Address       string           `json:"address" validate:"required"`
	Latitude      *float64         `json:"latitude"`
	Longitude     *float64         `json:"longitude"`
	DesiredDate   *time.Time       `json:"desired_date"`
	ProposedValue *decimal.Decimal `json:"proposed_value"`
}

func (in *CreateOrderInput) validate() error {
	if !in.ServiceType.Valid() {
		return validationErr("unknown service type %q", in.ServiceType)
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if in.Description == "" {
		return validationErr("description is required")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return validationErr("description is too long (max %d characters)", maxDescriptionLen)
	}
	if in.Address == "" {
		return validationErr("address is required")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return validationErr("latitude and longitude must be given together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return validationErr("coordinates out of range")
	}
	if in.ProposedValue != nil {
		return checkValue(*in.ProposedValue)
	}
	return nil
}

func checkValue(v decimal.Decimal) error {
	if !v.IsPositive() {
		return validationErr("proposed value must be greater than zero")
	}
	if !v.Equal(v.Round(2)) {
		return validationErr("proposed value must have at most two decimal places")
	}
	if v.GreaterThan(maxValue) {
		return validationErr("proposed value is too large")
	}
	return nil
}

// CreateOrder opens a new order in awaiting_acceptance. A proposed value is
// also written to the negotiation log.
func (e *Engine) CreateOrder(ctx context.Context, who session.Identity, in CreateOrderInput) (*ServiceOrder, error) {
	r, err := authorize(ActionCreate, nil, who)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := e.now()
	o := &ServiceOrder{
		ID:                    uuid.NewString(),
		CustomerID:            who.UserID,
		ServiceType:           in.ServiceType,
		Description:           in.Description,
		Area:                  strings.TrimSpace(in.Area),
		Address:               in.Address,
		Latitude:              in.Latitude,
		Longitude:             in.Longitude,
		DesiredDate:           in.DesiredDate,
		Photos:                []string{},
		Status:                r.to,
		CustomerProposedValue: in.ProposedValue,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var log []Negotiation
	if in.ProposedValue != nil {
		log = append(log, e.negotiation(o.ID, who, *in.ProposedValue, ""))
	}
	if _, err := e.store.Create(ctx, o, log...); err != nil {
		return nil, err
	}

	e.notify(ctx, EventOrderCreated, o, who, in.ProposedValue, "")
	return o, nil
}

// AcceptOrder binds the calling provider at the value currently on the
// table, preferring the customer's.
func (e *Engine) AcceptOrder(ctx context.Context, who session.Identity, orderID string) (*ServiceOrder, error) {
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r, err := authorize(ActionAccept, o, who)
	if err != nil {
		return nil, err
	}

	value := o.CustomerProposedValue
	if value == nil {
		value = o.ProviderProposedValue
	}
	if value == nil {
		return nil, validationErr("there is no value on the table yet, send a proposal instead")
	}

	updated, err := e.commit(ctx, o, Patch{
		Status:     &r.to,
		ProviderID: &who.UserID,
		FinalValue: value,
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventOrderAccepted, updated, who, value, "")
	return updated, nil
}

// CounterPropose records a new value from either side. Providers may counter
// any pool order; customers only their own order once negotiation started.
func (e *Engine) CounterPropose(ctx context.Context, who session.Identity, orderID string, value decimal.Decimal, message string) (*ServiceOrder, error) {
	var action Action
	switch who.Role {
	case session.RoleProvider:
		action = ActionProviderCounter
	case session.RoleCustomer:
		action = ActionCustomerCounter
	default:
		return nil, fmt.Errorf("%w: role %q cannot send proposals", ErrUnauthorized, who.Role)
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxMessageLen {
		return nil, validationErr("message is too long (max %d characters)", maxMessageLen)
	}

	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r, err := authorize(action, o, who)
	if err != nil {
		return nil, err
	}

	n := e.negotiation(o.ID, who, value, message)
	p := Patch{Negotiation: &n}
	if r.to != "" {
		p.Status = &r.to
	}
	if action == ActionProviderCounter {
		p.ProviderProposedValue = &value
		p.CounterProviderID = &who.UserID
	} else {
		p.CustomerProposedValue = &value
	}

	updated, err := e.commit(ctx, o, p)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventCounterProposal, updated, who, &value, message)
	return updated, nil
}

// AcceptCounter lets the owning customer take the latest provider proposal.
func (e *Engine) AcceptCounter(ctx context.Context, who session.Identity, orderID string) (*ServiceOrder, error) {
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r, err := authorize(ActionAcceptCounter, o, who)
	if err != nil {
		return nil, err
	}
	if o.ProviderProposedValue == nil || o.CounterProviderID == nil {
		return nil, validationErr("no provider proposal to accept")
	}

	updated, err := e.commit(ctx, o, Patch{
		Status:     &r.to,
		ProviderID: o.CounterProviderID,
		FinalValue: o.ProviderProposedValue,
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventOrderAccepted, updated, who, updated.FinalValue, "")
	return updated, nil
}

// AdvanceStatus moves an assigned order one step forward. target must be the
// direct successor of the current status.
func (e *Engine) AdvanceStatus(ctx context.Context, who session.Identity, orderID string, target Status) (*ServiceOrder, error) {
	if !target.Valid() {
		return nil, validationErr("unknown status %q", target)
	}
	action, ok := advanceActions[target]
	if !ok {
		return nil, fmt.Errorf("%w: cannot advance an order to %s", ErrInvalidTransition, target)
	}

	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r, err := authorize(action, o, who)
	if err != nil {
		return nil, err
	}

	updated, err := e.commit(ctx, o, Patch{Status: &r.to})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventStatusAdvanced, updated, who, nil, "")
	if updated.Status == StatusCompleted {
		e.refreshProviderStats(ctx, who.UserID)
	}
	return updated, nil
}

// CancelOrder ends a non-terminal order. Either party may cancel.
func (e *Engine) CancelOrder(ctx context.Context, who session.Identity, orderID, reason string) (*ServiceOrder, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxMessageLen {
		return nil, validationErr("reason is too long (max %d characters)", maxMessageLen)
	}
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r, err := authorize(ActionCancel, o, who)
	if err != nil {
		return nil, err
	}

	updated, err := e.commit(ctx, o, Patch{Status: &r.to})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventOrderCancelled, updated, who, nil, reason)
	return updated, nil
}

// RateOrder stores the customer's rating of a completed order. Orders can
// be rated once.
func (e *Engine) RateOrder(ctx context.Context, who session.Identity, orderID string, rating int, review string) (*ServiceOrder, error) {
	if rating < 1 || rating > 5 {
		return nil, validationErr("rating must be between 1 and 5")
	}
	review = strings.TrimSpace(review)
	if utf8.RuneCountInString(review) > maxReviewLen {
		return nil, validationErr("review is too long (max %d characters)", maxReviewLen)
	}

	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(ActionRate, o, who); err != nil {
		return nil, err
	}
	if o.Rating != nil {
		return nil, fmt.Errorf("%w: order already rated", ErrInvalidTransition)
	}

	updated, err := e.commit(ctx, o, Patch{Rating: &rating, Review: &review})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, EventOrderRated, updated, who, nil, review)
	if updated.ProviderID != nil {
		e.refreshProviderStats(ctx, *updated.ProviderID)
	}
	return updated, nil
}

// GetOrder returns an order to its parties, to admins, and to providers
// while it is still in the pool.
func (e *Engine) GetOrder(ctx context.Context, who session.Identity, orderID string) (*ServiceOrder, error) {
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(o, who) {
		return nil, fmt.Errorf("%w: order belongs to someone else", ErrUnauthorized)
	}
	return o, nil
}

func (e *Engine) ListNegotiations(ctx context.Context, who session.Identity, orderID string) ([]Negotiation, error) {
	if _, err := e.GetOrder(ctx, who, orderID); err != nil {
		return nil, err
	}
	return e.store.ListNegotiations(ctx, orderID)
}

// ListMyOrders returns the caller's own orders: placed ones for customers,
// assigned ones for providers.
func (e *Engine) ListMyOrders(ctx context.Context, who session.Identity) ([]ServiceOrder, error) {
	switch who.Role {
	case session.RoleCustomer:
		return e.store.ListByCustomer(ctx, who.UserID)
	case session.RoleProvider:
		return e.store.ListByProvider(ctx, who.UserID)
	}
	return nil, fmt.Errorf("%w: role %q has no orders", ErrUnauthorized, who.Role)
}

// ListAvailableOrders returns the pool as seen by the calling provider.
func (e *Engine) ListAvailableOrders(ctx context.Context, who session.Identity) ([]ServiceOrder, error) {
	if who.Role != session.RoleProvider {
		return nil, fmt.Errorf("%w: only providers browse available orders", ErrUnauthorized)
	}
	return e.visibility.VisibleTo(ctx, who.UserID)
}

func canView(o *ServiceOrder, who session.Identity) bool {
	switch {
	case who.Role == session.RoleAdmin:
		return true
	case o.InvolvedParty(who.UserID):
		return true
	case who.Role == session.RoleProvider && o.ProviderID == nil && o.Status.InPool():
		return true
	}
	return false
}

func (e *Engine) commit(ctx context.Context, o *ServiceOrder, p Patch) (*ServiceOrder, error) {
	p.UpdatedAt = e.now()
	updated, err := e.store.Update(ctx, o.ID, p, &Precondition{Status: o.Status, Version: o.Version})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, e.log).Debug("order updated",
		zap.String("order_id", updated.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(updated.Status)),
		zap.Int64("version", updated.Version),
	)
	return updated, nil
}

func (e *Engine) negotiation(orderID string, who session.Identity, value decimal.Decimal, message string) Negotiation {
	return Negotiation{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		UserID:        who.UserID,
		Role:          who.Role,
		ProposedValue: value,
		Message:       message,
		CreatedAt:     e.now(),
	}
}

func (e *Engine) notify(ctx context.Context, kind EventKind, o *ServiceOrder, who session.Identity, value *decimal.Decimal, message string) {
	e.notifier.Notify(ctx, Event{Kind: kind, Order: *o.Clone(), Actor: who, Value: value, Message: message})
}

// refreshProviderStats recomputes a provider's average rating and completed
// count. Failures are logged only.
func (e *Engine) refreshProviderStats(ctx context.Context, providerID string) {
	if e.stats == nil {
		return
	}
	log := logger.FromContext(ctx, e.log)
	orders, err := e.store.ListByProvider(ctx, providerID)
	if err != nil {
		log.Error("list provider orders for stats", zap.String("provider_id", providerID), zap.Error(err))
		return
	}
	s := summarize(providerID, orders)
	if err := e.stats.SetProviderStats(ctx, providerID, s.AverageRating, s.CompletedServices); err != nil {
		log.Error("update provider stats", zap.String("provider_id", providerID), zap.Error(err))
	}
}
