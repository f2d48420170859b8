package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/user"
)

const orderID = "3f1c2b9e-8d2a-4c1e-9b7a-2f4d6e8a0c11"

func TestBuildOrderUpdate(t *testing.T) {
	accepted := marketplace.StatusAccepted
	negotiating := marketplace.StatusNegotiating
	provider := "a7d0c5e2-1b3f-4e6a-8c9d-0e1f2a3b4c5d"
	value := decimal.RequireFromString("150.00")
	rating := 5
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		patch     marketplace.Patch
		pre       *marketplace.Precondition
		wantSet   string
		wantWhere string
		wantArgs  []any
	}{
		{
			name: "accept with precondition",
			patch: marketplace.Patch{
				Status:     &accepted,
				ProviderID: &provider,
				FinalValue: &value,
				UpdatedAt:  at,
			},
			pre:       &marketplace.Precondition{Status: marketplace.StatusAwaitingAcceptance, Version: 3},
			wantSet:   "status = $1, provider_id = $2, final_value = $3, updated_at = $4, version = version + 1",
			wantWhere: "id = $5 AND status = $6 AND version = $7",
			wantArgs:  []any{"accepted", provider, value, at, orderID, "awaiting_acceptance", int64(3)},
		},
		{
			name: "counter keeps numbering after values",
			patch: marketplace.Patch{
				Status:                &negotiating,
				CounterProviderID:     &provider,
				ProviderProposedValue: &value,
			},
			pre:       &marketplace.Precondition{Status: marketplace.StatusNegotiating, Version: 7},
			wantSet:   "status = $1, counter_provider_id = $2, provider_proposed_value = $3, updated_at = NOW(), version = version + 1",
			wantWhere: "id = $4 AND status = $5 AND version = $6",
			wantArgs:  []any{"negotiating", provider, value, orderID, "negotiating", int64(7)},
		},
		{
			name:      "rating without precondition",
			patch:     marketplace.Patch{Rating: &rating},
			wantSet:   "rating = $1, updated_at = NOW(), version = version + 1",
			wantWhere: "id = $2",
			wantArgs:  []any{rating, orderID},
		},
		{
			name:      "empty patch still bumps version",
			pre:       &marketplace.Precondition{Status: marketplace.StatusAccepted, Version: 1},
			wantSet:   "updated_at = NOW(), version = version + 1",
			wantWhere: "id = $1 AND status = $2 AND version = $3",
			wantArgs:  []any{orderID, "accepted", int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildOrderUpdate(orderID, tt.patch, tt.pre)

			require.True(t, strings.HasPrefix(query, "UPDATE service_orders SET "), query)
			set, rest, ok := strings.Cut(strings.TrimPrefix(query, "UPDATE service_orders SET "), " WHERE ")
			require.True(t, ok, query)
			where, returning, ok := strings.Cut(rest, " RETURNING ")
			require.True(t, ok, query)

			assert.Equal(t, tt.wantSet, set)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, orderColumns, returning)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{orderID, true},
		{strings.ToUpper(orderID), true},
		{"", false},
		{"not-a-uuid", false},
		{"1", false},
		{orderID + "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, validID(tt.id))
		})
	}
}

// Malformed ids must resolve before reaching the pool, so a zero store works.
func TestPostgresMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	orders := &PostgresOrders{}
	users := &PostgresUsers{}
	status := marketplace.StatusCancelled

	_, err := orders.Get(ctx, "abc")
	assert.ErrorIs(t, err, marketplace.ErrNotFound)

	_, err = orders.Update(ctx, "abc", marketplace.Patch{Status: &status}, nil)
	assert.ErrorIs(t, err, marketplace.ErrNotFound)

	log, err := orders.ListNegotiations(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, log)

	list, err := orders.ListByProvider(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = orders.ListByCustomer(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = users.Get(ctx, "abc")
	assert.ErrorIs(t, err, user.ErrNotFound)

	name := "x"
	_, err = users.Update(ctx, "abc", user.Update{Name: &name})
	assert.ErrorIs(t, err, user.ErrNotFound)

	assert.ErrorIs(t, users.SetActive(ctx, "abc", false), user.ErrNotFound)
	assert.ErrorIs(t, users.SetPassword(ctx, "abc", "hash"), user.ErrNotFound)
	assert.ErrorIs(t, users.SetProviderStats(ctx, "abc", 4.5, 2), user.ErrNotFound)
}
