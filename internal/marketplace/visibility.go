package marketplace

import (
	"context"
	"fmt"
	"slices"

	"github.com/meujardineiro/backend/internal/utils"
)

// ProviderProfile is the slice of a provider's profile the match stages read.
type ProviderProfile struct {
	ID          string
	Specialties []ServiceType
	Latitude    *float64
	Longitude   *float64
	RadiusKm    float64
}

// ProviderDirectory looks up provider profiles. A nil profile with a nil
// error means the provider has none yet.
type ProviderDirectory interface {
	ProviderProfile(ctx context.Context, providerID string) (*ProviderProfile, error)
}

// MatchStage narrows the pool shown to a provider.
type MatchStage interface {
	Name() string
	Match(p *ProviderProfile, o *ServiceOrder) bool
}

// Visibility decides which pool orders a provider sees.
type Visibility struct {
	store  OrderStore
	dir    ProviderDirectory
	stages []MatchStage
}

// NewVisibility builds a filter. With no stages every pool order is visible
// and dir is never consulted.
func NewVisibility(store OrderStore, dir ProviderDirectory, stages ...MatchStage) *Visibility {
	return &Visibility{store: store, dir: dir, stages: stages}
}

// Stages returns the names of the enabled stages in order.
func (v *Visibility) Stages() []string {
	names := make([]string, 0, len(v.stages))
	for _, s := range v.stages {
		names = append(names, s.Name())
	}
	return names
}

// VisibleTo returns unassigned orders still open for negotiation, newest
// first, that pass every stage.
func (v *Visibility) VisibleTo(ctx context.Context, providerID string) ([]ServiceOrder, error) {
	pool, err := v.store.ListUnassignedNegotiable(ctx)
	if err != nil {
		return nil, err
	}
	if len(v.stages) == 0 || v.dir == nil {
		return pool, nil
	}

	profile, err := v.dir.ProviderProfile(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load provider profile: %w", err)
	}
	if profile == nil {
		return pool, nil
	}

	out := pool[:0]
	for i := range pool {
		if v.matches(profile, &pool[i]) {
			out = append(out, pool[i])
		}
	}
	return out, nil
}

func (v *Visibility) matches(p *ProviderProfile, o *ServiceOrder) bool {
	for _, s := range v.stages {
		if !s.Match(p, o) {
			return false
		}
	}
	return true
}

// SpecialtyStage keeps orders whose service type is one of the provider's
// specialties. Providers without specialties see everything.
type SpecialtyStage struct{}

func (SpecialtyStage) Name() string { return "specialty" }

func (SpecialtyStage) Match(p *ProviderProfile, o *ServiceOrder) bool {
	if len(p.Specialties) == 0 {
		return true
	}
	return slices.Contains(p.Specialties, o.ServiceType)
}

// RadiusStage keeps orders within the provider's service radius. Missing
// coordinates on either side, or a zero radius, let the order through.
type RadiusStage struct{}

func (RadiusStage) Name() string { return "radius" }

func (RadiusStage) Match(p *ProviderProfile, o *ServiceOrder) bool {
	if p.RadiusKm <= 0 || p.Latitude == nil || p.Longitude == nil || o.Latitude == nil || o.Longitude == nil {
		return true
	}
	return utils.DistanceKm(*p.Latitude, *p.Longitude, *o.Latitude, *o.Longitude) <= p.RadiusKm
}
