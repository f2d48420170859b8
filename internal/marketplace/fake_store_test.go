package marketplace

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memStore is a minimal OrderStore for engine tests.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*ServiceOrder
	log    map[string][]Negotiation
	seq    map[string]int
	next   int
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*ServiceOrder),
		log:    make(map[string][]Negotiation),
		seq:    make(map[string]int),
	}
}

func (s *memStore) Create(_ context.Context, o *ServiceOrder, log ...Negotiation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
	s.log[o.ID] = append(s.log[o.ID], log...)
	s.next++
	s.seq[o.ID] = s.next
	return o.ID, nil
}

func (s *memStore) Get(_ context.Context, id string) (*ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *memStore) list(keep func(*ServiceOrder) bool) []ServiceOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ServiceOrder
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] > s.seq[out[j].ID] })
	return out
}

func (s *memStore) ListByCustomer(_ context.Context, customerID string) ([]ServiceOrder, error) {
	return s.list(func(o *ServiceOrder) bool { return o.CustomerID == customerID }), nil
}

func (s *memStore) ListByProvider(_ context.Context, providerID string) ([]ServiceOrder, error) {
	return s.list(func(o *ServiceOrder) bool { return o.ProviderID != nil && *o.ProviderID == providerID }), nil
}

func (s *memStore) ListUnassignedNegotiable(context.Context) ([]ServiceOrder, error) {
	return s.list(func(o *ServiceOrder) bool { return o.ProviderID == nil && o.Status.InPool() }), nil
}

func (s *memStore) Update(_ context.Context, id string, p Patch, pre *Precondition) (*ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if pre != nil && (o.Status != pre.Status || o.Version != pre.Version) {
		return nil, fmt.Errorf("order %s: %w", id, ErrConflict)
	}
	p.Apply(o)
	if p.Negotiation != nil {
		s.log[id] = append(s.log[id], *p.Negotiation)
	}
	return o.Clone(), nil
}

func (s *memStore) ListNegotiations(_ context.Context, orderID string) ([]Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Negotiation(nil), s.log[orderID]...), nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type statsRecorder struct {
	mu     sync.Mutex
	rating map[string]float64
	total  map[string]int
}

func (s *statsRecorder) SetProviderStats(_ context.Context, providerID string, rating float64, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rating == nil {
		s.rating = make(map[string]float64)
		s.total = make(map[string]int)
	}
	s.rating[providerID] = rating
	s.total[providerID] = total
	return nil
}
