package store

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
)

func newOrder(id, customer string, created time.Time) *marketplace.ServiceOrder {
	return &marketplace.ServiceOrder{
		ID:          id,
		CustomerID:  customer,
		ServiceType: marketplace.ServiceMowing,
		Description: "front lawn",
		Address:     "Rua A, 1",
		Status:      marketplace.StatusAwaitingAcceptance,
		Version:     1,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMemoryOrdersUpdateCAS(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	_, err := s.Create(ctx, newOrder("o1", "c1", time.Now()))
	require.NoError(t, err)

	accepted := marketplace.StatusAccepted
	provider := "p1"
	pre := &marketplace.Precondition{Status: marketplace.StatusAwaitingAcceptance, Version: 1}

	o, err := s.Update(ctx, "o1", marketplace.Patch{Status: &accepted, ProviderID: &provider}, pre)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.Version)
	assert.Equal(t, marketplace.StatusAccepted, o.Status)

	_, err = s.Update(ctx, "o1", marketplace.Patch{Status: &accepted}, pre)
	assert.ErrorIs(t, err, marketplace.ErrConflict)

	_, err = s.Update(ctx, "missing", marketplace.Patch{}, nil)
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
}

func TestMemoryOrdersConcurrentCASHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	_, err := s.Create(ctx, newOrder("o1", "c1", time.Now()))
	require.NoError(t, err)

	accepted := marketplace.StatusAccepted
	pre := &marketplace.Precondition{Status: marketplace.StatusAwaitingAcceptance, Version: 1}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update(ctx, "o1", marketplace.Patch{Status: &accepted}, pre); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryOrdersNegotiationLog(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	initial := marketplace.Negotiation{ID: "n1", UserID: "c1", Role: session.RoleCustomer, ProposedValue: decimal.NewFromInt(100)}
	_, err := s.Create(ctx, newOrder("o1", "c1", time.Now()), initial)
	require.NoError(t, err)

	v := decimal.NewFromInt(120)
	n := marketplace.Negotiation{ID: "n2", UserID: "p1", Role: session.RoleProvider, ProposedValue: v}
	_, err = s.Update(ctx, "o1", marketplace.Patch{ProviderProposedValue: &v, Negotiation: &n}, nil)
	require.NoError(t, err)

	log, err := s.ListNegotiations(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "n1", log[0].ID)
	assert.Equal(t, "o1", log[1].OrderID)
}

func TestMemoryOrdersPoolNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		_, err := s.Create(ctx, newOrder(id, "c1", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	cancelled := marketplace.StatusCancelled
	_, err := s.Update(ctx, "mid", marketplace.Patch{Status: &cancelled}, nil)
	require.NoError(t, err)

	pool, err := s.ListUnassignedNegotiable(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "new", pool[0].ID)
	assert.Equal(t, "old", pool[1].ID)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[marketplace.StatusAwaitingAcceptance])
	assert.Equal(t, 1, counts[marketplace.StatusCancelled])
}

func TestMemoryOrdersReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	_, err := s.Create(ctx, newOrder("o1", "c1", time.Now()))
	require.NoError(t, err)

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	o.Status = marketplace.StatusCompleted

	again, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusAwaitingAcceptance, again.Status)
}

func TestMemoryUsersUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUsers()
	require.NoError(t, s.Create(ctx, &user.User{Email: "Ana@Example.com", Role: session.RoleCustomer, Active: true}))

	err := s.Create(ctx, &user.User{Email: "ana@example.com", Role: session.RoleProvider})
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	require.NoError(t, s.Create(ctx, &user.User{Email: "joao@example.com", Role: session.RoleProvider, CPFCNPJ: "52998224725"}))
	err = s.Create(ctx, &user.User{Email: "maria@example.com", Role: session.RoleProvider, CPFCNPJ: "52998224725"})
	assert.ErrorIs(t, err, user.ErrDocumentTaken)

	u, err := s.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	counts, err := s.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[session.RoleCustomer])
	assert.Equal(t, 1, counts[session.RoleProvider])
}

func TestMemoryUsersListPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUsers()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, s.Create(ctx, &user.User{Email: email, Role: session.RoleCustomer, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	page, total, err := s.List(ctx, user.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c@x.com", page[0].Email)

	page, _, err = s.List(ctx, user.ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a@x.com", page[0].Email)

	for _, tt := range []struct {
		name string
		f    user.ListFilter
		want int
	}{
		{"negative offset", user.ListFilter{Limit: 2, Offset: -4}, 2},
		{"huge offset", user.ListFilter{Limit: 2, Offset: math.MaxInt}, 0},
		{"huge limit", user.ListFilter{Limit: math.MaxInt, Offset: 1}, 2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			page, total, err := s.List(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			assert.Len(t, page, tt.want)
		})
	}
}
