package user

import (
	"context"
	"errors"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
)

// Directory serves provider profiles to the order visibility filter.
type Directory struct {
	Store Store
}

func (d Directory) ProviderProfile(ctx context.Context, providerID string) (*marketplace.ProviderProfile, error) {
	u, err := d.Store.Get(ctx, providerID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.Role != session.RoleProvider {
		return nil, nil
	}
	return &marketplace.ProviderProfile{
		ID:          u.ID,
		Specialties: u.Specialties,
		Latitude:    u.Latitude,
		Longitude:   u.Longitude,
		RadiusKm:    u.ServiceRadiusKm,
	}, nil
}
