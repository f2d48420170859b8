package marketplace

import (
	"context"
	"math"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meujardineiro/backend/internal/session"
)

var (
	customer  = session.Identity{UserID: "c1", Role: session.RoleCustomer}
	stranger  = session.Identity{UserID: "c2", Role: session.RoleCustomer}
	providerA = session.Identity{UserID: "pA", Role: session.RoleProvider}
	providerB = session.Identity{UserID: "pB", Role: session.RoleProvider}
	admin     = session.Identity{UserID: "a1", Role: session.RoleAdmin}
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memStore, *recorder) {
	t.Helper()
	s := newMemStore()
	rec := &recorder{}
	e := NewEngine(s, append([]Option{WithNotifier(rec)}, opts...)...)
	return e, s, rec
}

func createOrder(t *testing.T, e *Engine, value *decimal.Decimal) *ServiceOrder {
	t.Helper()
	o, err := e.CreateOrder(context.Background(), customer, CreateOrderInput{
		ServiceType:   ServiceMowing,
		Description:   "Cortar a grama do quintal",
		Address:       "Rua das Flores, 10",
		ProposedValue: value,
	})
	require.NoError(t, err)
	return o
}

func assertProviderMatchesStatus(t *testing.T, o *ServiceOrder) {
	t.Helper()
	if o.Status == StatusCancelled {
		return
	}
	assert.Equal(t, o.Status.Assigned(), o.ProviderID != nil, "status %s with provider %v", o.Status, o.ProviderID)
}

func TestAcceptAtCustomerValueThenSecondProviderConflicts(t *testing.T) {
	ctx := context.Background()
	e, s, rec := newTestEngine(t)
	o := createOrder(t, e, moneyPtr("150.00"))
	assert.Equal(t, StatusAwaitingAcceptance, o.Status)
	assert.Nil(t, o.ProviderID)
	assert.Equal(t, int64(1), o.Version)

	got, err := e.AcceptOrder(ctx, providerA, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	require.NotNil(t, got.ProviderID)
	assert.Equal(t, "pA", *got.ProviderID)
	require.NotNil(t, got.FinalValue)
	assert.True(t, got.FinalValue.Equal(money("150")))
	assertProviderMatchesStatus(t, got)

	_, err = e.AcceptOrder(ctx, providerB, o.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "pA", *stored.ProviderID)
	assert.Equal(t, []EventKind{EventOrderCreated, EventOrderAccepted}, rec.kinds())

	neg, err := s.ListNegotiations(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, neg, 1)
	assert.Equal(t, session.RoleCustomer, neg[0].Role)
}

func TestCounterThenAcceptCounter(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)
	o := createOrder(t, e, nil)

	_, err := e.AcceptOrder(ctx, providerA, o.ID)
	assert.ErrorIs(t, err, ErrValidation, "nothing on the table yet")

	got, err := e.CounterPropose(ctx, providerA, o.ID, money("80.00"), "posso ir amanhã")
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiating, got.Status)
	assert.Nil(t, got.ProviderID)
	assert.True(t, got.ProviderProposedValue.Equal(money("80")))
	assert.Nil(t, got.FinalValue)
	assertProviderMatchesStatus(t, got)

	_, err = e.AcceptCounter(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err = e.AcceptCounter(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	require.NotNil(t, got.ProviderID)
	assert.Equal(t, "pA", *got.ProviderID)
	assert.True(t, got.FinalValue.Equal(money("80")))

	neg, err := s.ListNegotiations(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, neg, 1)
	assert.Equal(t, "posso ir amanhã", neg[0].Message)
}

func TestCustomerCounterOnlyWhileNegotiating(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, moneyPtr("100"))

	_, err := e.CounterPropose(ctx, customer, o.ID, money("90"), "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.CounterPropose(ctx, providerA, o.ID, money("130"), "")
	require.NoError(t, err)
	got, err := e.CounterPropose(ctx, customer, o.ID, money("115.50"), "meio termo")
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiating, got.Status)
	assert.True(t, got.CustomerProposedValue.Equal(money("115.5")))

	_, err = e.CounterPropose(ctx, stranger, o.ID, money("10"), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a provider accept now takes the customer's latest value
	got, err = e.AcceptOrder(ctx, providerB, o.ID)
	require.NoError(t, err)
	assert.True(t, got.FinalValue.Equal(money("115.50")))
}

func TestProposalValueRules(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, nil)

	for _, v := range []string{"0", "-5", "10.001", "1000000.01"} {
		_, err := e.CounterPropose(ctx, providerA, o.ID, money(v), "")
		assert.ErrorIs(t, err, ErrValidation, v)
	}
	_, err := e.CounterPropose(ctx, admin, o.ID, money("10"), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdvanceSequence(t *testing.T) {
	ctx := context.Background()
	stats := &statsRecorder{}
	e, _, rec := newTestEngine(t, WithProviderStats(stats))
	o := createOrder(t, e, moneyPtr("200"))
	_, err := e.AcceptOrder(ctx, providerA, o.ID)
	require.NoError(t, err)

	_, err = e.AdvanceStatus(ctx, providerA, o.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot skip steps")
	_, err = e.AdvanceStatus(ctx, providerA, o.ID, StatusInProgress)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.AdvanceStatus(ctx, providerB, o.ID, StatusEnRoute)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.AdvanceStatus(ctx, customer, o.ID, StatusEnRoute)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.AdvanceStatus(ctx, providerA, o.ID, StatusNegotiating)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.AdvanceStatus(ctx, providerA, o.ID, Status("done"))
	assert.ErrorIs(t, err, ErrValidation)

	var last *ServiceOrder
	for _, next := range []Status{StatusEnRoute, StatusInProgress, StatusCompleted} {
		last, err = e.AdvanceStatus(ctx, providerA, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, last.Status)
		assertProviderMatchesStatus(t, last)
	}
	assert.True(t, last.FinalValue.Equal(money("200")))
	assert.Equal(t, 1, stats.total["pA"])

	_, err = e.AdvanceStatus(ctx, providerA, o.ID, StatusEnRoute)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.CancelOrder(ctx, customer, o.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []EventKind{
		EventOrderCreated, EventOrderAccepted,
		EventStatusAdvanced, EventStatusAdvanced, EventStatusAdvanced,
	}, rec.kinds())
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)
	o := createOrder(t, e, moneyPtr("150.00"))

	providers := []session.Identity{providerA, providerB}
	for i := 0; i < 8; i++ {
		providers = append(providers, session.Identity{UserID: "p" + string(rune('0'+i)), Role: session.RoleProvider})
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   []string
		losses int
	)
	start := make(chan struct{})
	for _, p := range providers {
		wg.Add(1)
		go func(p session.Identity) {
			defer wg.Done()
			<-start
			_, err := e.AcceptOrder(ctx, p, o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, p.UserID)
			case errors.Is(err, ErrConflict):
				losses++
			default:
				t.Errorf("unexpected error for %s: %v", p.UserID, err)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, len(providers)-1, losses)

	stored, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], *stored.ProviderID)
	assert.Equal(t, int64(2), stored.Version)
}

func TestCounterAfterAcceptIsRejected(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, moneyPtr("150"))
	_, err := e.AcceptOrder(ctx, providerA, o.ID)
	require.NoError(t, err)

	for _, who := range []session.Identity{providerA, providerB} {
		_, err = e.CounterPropose(ctx, who, o.ID, money("120"), "")
		assert.ErrorIs(t, err, ErrInvalidTransition, who.UserID)
		_, err = e.AcceptOrder(ctx, who, o.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition, who.UserID)
	}
	_, err = e.CounterPropose(ctx, customer, o.ID, money("120"), "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.AcceptCounter(ctx, customer, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := e.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.True(t, got.FinalValue.Equal(money("150")))
}

func TestCancelFromEveryOpenStatus(t *testing.T) {
	ctx := context.Background()
	steps := map[Status]func(t *testing.T, e *Engine, id string){
		StatusAwaitingAcceptance: func(*testing.T, *Engine, string) {},
		StatusNegotiating: func(t *testing.T, e *Engine, id string) {
			_, err := e.CounterPropose(ctx, providerA, id, money("90"), "")
			require.NoError(t, err)
		},
		StatusAccepted: func(t *testing.T, e *Engine, id string) {
			_, err := e.AcceptOrder(ctx, providerA, id)
			require.NoError(t, err)
		},
		StatusEnRoute: func(t *testing.T, e *Engine, id string) {
			_, err := e.AcceptOrder(ctx, providerA, id)
			require.NoError(t, err)
			_, err = e.AdvanceStatus(ctx, providerA, id, StatusEnRoute)
			require.NoError(t, err)
		},
		StatusInProgress: func(t *testing.T, e *Engine, id string) {
			_, err := e.AcceptOrder(ctx, providerA, id)
			require.NoError(t, err)
			_, err = e.AdvanceStatus(ctx, providerA, id, StatusEnRoute)
			require.NoError(t, err)
			_, err = e.AdvanceStatus(ctx, providerA, id, StatusInProgress)
			require.NoError(t, err)
		},
	}

	for status, reach := range steps {
		for _, who := range []session.Identity{customer, providerA} {
			t.Run(string(status)+"/"+string(who.Role), func(t *testing.T) {
				e, _, _ := newTestEngine(t)
				o := createOrder(t, e, moneyPtr("100"))
				reach(t, e, o.ID)

				got, err := e.CancelOrder(ctx, who, o.ID, "mudei de ideia")
				if who.Role == session.RoleProvider && !status.Assigned() {
					assert.ErrorIs(t, err, ErrUnauthorized, "unbound provider cannot cancel")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, StatusCancelled, got.Status)
				if !status.Assigned() {
					assert.Nil(t, got.ProviderID)
				}

				_, err = e.CancelOrder(ctx, customer, o.ID, "")
				assert.ErrorIs(t, err, ErrInvalidTransition)
				_, err = e.AcceptOrder(ctx, providerB, o.ID)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				_, err = e.AdvanceStatus(ctx, providerA, o.ID, StatusEnRoute)
				assert.Error(t, err)
			})
		}
	}
}

func TestCancelByStranger(t *testing.T) {
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, nil)
	_, err := e.CancelOrder(context.Background(), stranger, o.ID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRateOnce(t *testing.T) {
	ctx := context.Background()
	stats := &statsRecorder{}
	e, _, _ := newTestEngine(t, WithProviderStats(stats))
	o := createOrder(t, e, moneyPtr("60"))

	_, err := e.RateOrder(ctx, customer, o.ID, 5, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "not completed yet")

	_, err = e.AcceptOrder(ctx, providerA, o.ID)
	require.NoError(t, err)
	for _, s := range []Status{StatusEnRoute, StatusInProgress, StatusCompleted} {
		_, err = e.AdvanceStatus(ctx, providerA, o.ID, s)
		require.NoError(t, err)
	}

	_, err = e.RateOrder(ctx, customer, o.ID, 6, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.RateOrder(ctx, stranger, o.ID, 4, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.RateOrder(ctx, providerA, o.ID, 4, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := e.RateOrder(ctx, customer, o.ID, 4, "Ótimo serviço")
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4, *got.Rating)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 4.0, stats.rating["pA"])

	_, err = e.RateOrder(ctx, customer, o.ID, 5, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	summary, reviews, err := e.ProviderReviews(ctx, "pA", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalReviews)
	assert.Equal(t, 1, summary.RatingCounts.FourStar)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Ótimo serviço", reviews[0].Comment)

	for _, tt := range []struct {
		name        string
		page, limit int
		want        int
	}{
		{"past the end", 2, 10, 0},
		{"largest page", math.MaxInt, 10, 0},
		{"largest page and limit", math.MaxInt, math.MaxInt, 0},
		{"largest limit", 1, math.MaxInt, 1},
		{"zero values fall back", 0, 0, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, reviews, err := e.ProviderReviews(ctx, "pA", tt.page, tt.limit)
			require.NoError(t, err)
			assert.Len(t, reviews, tt.want)
		})
	}
}

func TestVersionAndStatusAreMonotonic(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)
	o := createOrder(t, e, nil)

	rank := map[Status]int{}
	for i, st := range AllStatuses {
		rank[st] = i
	}

	prev := o
	check := func(next *ServiceOrder) {
		assert.Greater(t, next.Version, prev.Version)
		assert.GreaterOrEqual(t, rank[next.Status], rank[prev.Status])
		prev = next
	}

	got, err := e.CounterPropose(ctx, providerA, o.ID, money("70"), "")
	require.NoError(t, err)
	check(got)
	got, err = e.CounterPropose(ctx, customer, o.ID, money("65"), "")
	require.NoError(t, err)
	check(got)
	got, err = e.CounterPropose(ctx, providerB, o.ID, money("68"), "")
	require.NoError(t, err)
	check(got)
	assert.Equal(t, "pB", *got.CounterProviderID)
	got, err = e.AcceptCounter(ctx, customer, o.ID)
	require.NoError(t, err)
	check(got)
	assert.Equal(t, "pB", *got.ProviderID)

	neg, err := s.ListNegotiations(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, neg, 3)
	assert.True(t, neg[2].ProposedValue.Equal(money("68")))
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	lat := -23.5

	tests := []struct {
		name string
		who  session.Identity
		in   CreateOrderInput
		want error
	}{
		{"provider cannot create", providerA, CreateOrderInput{ServiceType: ServiceMowing, Description: "x", Address: "y"}, ErrUnauthorized},
		{"unknown type", customer, CreateOrderInput{ServiceType: "painting", Description: "x", Address: "y"}, ErrValidation},
		{"blank description", customer, CreateOrderInput{ServiceType: ServicePruning, Description: "  ", Address: "y"}, ErrValidation},
		{"missing address", customer, CreateOrderInput{ServiceType: ServicePruning, Description: "x"}, ErrValidation},
		{"half coordinates", customer, CreateOrderInput{ServiceType: ServicePruning, Description: "x", Address: "y", Latitude: &lat}, ErrValidation},
		{"zero value", customer, CreateOrderInput{ServiceType: ServicePruning, Description: "x", Address: "y", ProposedValue: moneyPtr("0")}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateOrder(ctx, tt.who, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetOrderVisibility(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, moneyPtr("50"))

	for _, who := range []session.Identity{customer, providerA, providerB, admin} {
		_, err := e.GetOrder(ctx, who, o.ID)
		assert.NoError(t, err, who.UserID)
	}
	_, err := e.GetOrder(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.AcceptOrder(ctx, providerA, o.ID)
	require.NoError(t, err)
	_, err = e.GetOrder(ctx, providerB, o.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.GetOrder(ctx, providerA, o.ID)
	assert.NoError(t, err)

	_, err = e.GetOrder(ctx, customer, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMyAndAvailable(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	tick := 0
	e, _, _ := newTestEngine(t, WithClock(func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	}))
	first := createOrder(t, e, moneyPtr("10"))
	second := createOrder(t, e, moneyPtr("20"))

	pool, err := e.ListAvailableOrders(ctx, providerA)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, second.ID, pool[0].ID, "newest first")

	_, err = e.AcceptOrder(ctx, providerA, first.ID)
	require.NoError(t, err)

	pool, err = e.ListAvailableOrders(ctx, providerB)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, second.ID, pool[0].ID)

	mine, err := e.ListMyOrders(ctx, providerA)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	mine, err = e.ListMyOrders(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = e.ListAvailableOrders(ctx, customer)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.ListMyOrders(ctx, admin)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAllowedActions(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	o := createOrder(t, e, nil)

	assert.ElementsMatch(t, []Action{ActionProviderCounter}, Allowed(o, providerA))
	assert.ElementsMatch(t, []Action{ActionCancel}, Allowed(o, customer))

	o, err := e.CounterPropose(ctx, providerA, o.ID, money("40"), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Action{ActionCustomerCounter, ActionAcceptCounter, ActionCancel}, Allowed(o, customer))
	assert.ElementsMatch(t, []Action{ActionAccept, ActionProviderCounter}, Allowed(o, providerB))
	assert.Empty(t, Allowed(o, stranger))
}
