package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/meujardineiro/backend/internal/marketplace"
)

// MemoryOrders keeps orders in process. It gives the same compare-and-swap
// guarantees as the Postgres store and backs tests and database-less runs.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]*marketplace.ServiceOrder
	seq    map[string]int
	log    map[string][]marketplace.Negotiation
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{
		orders: make(map[string]*marketplace.ServiceOrder),
		seq:    make(map[string]int),
		log:    make(map[string][]marketplace.Negotiation),
	}
}

func (s *MemoryOrders) Create(_ context.Context, o *marketplace.ServiceOrder, log ...marketplace.Negotiation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, ok := s.orders[o.ID]; ok {
		return "", fmt.Errorf("order %s already exists", o.ID)
	}
	if o.Version == 0 {
		o.Version = 1
	}
	s.orders[o.ID] = o.Clone()
	s.seq[o.ID] = len(s.seq)
	for _, n := range log {
		n.OrderID = o.ID
		s.log[o.ID] = append(s.log[o.ID], n)
	}
	return o.ID, nil
}

func (s *MemoryOrders) Get(_ context.Context, id string) (*marketplace.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryOrders) ListByCustomer(_ context.Context, customerID string) ([]marketplace.ServiceOrder, error) {
	return s.filter(func(o *marketplace.ServiceOrder) bool { return o.CustomerID == customerID }), nil
}

func (s *MemoryOrders) ListByProvider(_ context.Context, providerID string) ([]marketplace.ServiceOrder, error) {
	return s.filter(func(o *marketplace.ServiceOrder) bool {
		return o.ProviderID != nil && *o.ProviderID == providerID
	}), nil
}

func (s *MemoryOrders) ListUnassignedNegotiable(_ context.Context) ([]marketplace.ServiceOrder, error) {
	return s.filter(func(o *marketplace.ServiceOrder) bool {
		return o.ProviderID == nil && o.Status.InPool()
	}), nil
}

// filter returns matching orders newest first; ties keep the later insert first.
func (s *MemoryOrders) filter(keep func(o *marketplace.ServiceOrder) bool) []marketplace.ServiceOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []marketplace.ServiceOrder
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out
}

func (s *MemoryOrders) Update(_ context.Context, id string, p marketplace.Patch, pre *marketplace.Precondition) (*marketplace.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[id]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	if pre != nil && (cur.Status != pre.Status || cur.Version != pre.Version) {
		return nil, fmt.Errorf("%w: expected %s@%d, found %s@%d",
			marketplace.ErrConflict, pre.Status, pre.Version, cur.Status, cur.Version)
	}

	next := cur.Clone()
	p.Apply(next)
	s.orders[id] = next
	if p.Negotiation != nil {
		n := *p.Negotiation
		n.OrderID = id
		s.log[id] = append(s.log[id], n)
	}
	return next.Clone(), nil
}

func (s *MemoryOrders) ListNegotiations(_ context.Context, orderID string) ([]marketplace.Negotiation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]marketplace.Negotiation{}, s.log[orderID]...), nil
}

// CountByStatus reports how many orders sit in each status.
func (s *MemoryOrders) CountByStatus(_ context.Context) (map[marketplace.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[marketplace.Status]int, len(marketplace.AllStatuses))
	for _, o := range s.orders {
		counts[o.Status]++
	}
	return counts, nil
}
