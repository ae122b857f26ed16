package billing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// PlanMap resolves a provider's price/product identifier to an internal plan
// ID. Interpreters consult it during normalization so canonical events are
// provider-agnostic from that point forward.
type PlanMap struct {
	mu    sync.RWMutex
	plans map[Provider]map[string]string
}

// PlanMapSource loads the provider-to-plan mapping table.
type PlanMapSource interface {
	Load(ctx context.Context) (map[Provider]map[string]string, error)
}

// NewPlanMap builds a PlanMap from the given source.
func NewPlanMap(ctx context.Context, src PlanMapSource) (*PlanMap, error) {
	if src == nil {
		panic("billing: PlanMapSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlanMap, err)
	}

	copied := make(map[Provider]map[string]string, len(plans))
	for provider, mapping := range plans {
		copied[provider] = maps.Clone(mapping)
	}

	return &PlanMap{plans: copied}, nil
}

// Resolve returns the internal plan ID for a provider price identifier.
// Returns ErrPlanNotMapped when no mapping exists; this is a permanent
// failure since redelivery cannot create a missing mapping.
func (m *PlanMap) Resolve(provider Provider, priceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.plans[provider]
	if !ok {
		return "", fmt.Errorf("%w: provider %s price %s", ErrPlanNotMapped, provider, priceID)
	}

	planID, ok := mapping[priceID]
	if !ok {
		return "", fmt.Errorf("%w: provider %s price %s", ErrPlanNotMapped, provider, priceID)
	}

	return planID, nil
}

// PriceFor returns the provider price identifier for an internal plan ID.
// Used by checkout creation, which travels the mapping in reverse.
func (m *PlanMap) PriceFor(provider Provider, planID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for priceID, mapped := range m.plans[provider] {
		if mapped == planID {
			return priceID, nil
		}
	}

	return "", fmt.Errorf("%w: provider %s plan %s", ErrPlanNotMapped, provider, planID)
}

// ErrFailedToLoadPlanMap wraps plan map source failures.
var ErrFailedToLoadPlanMap = errors.New("failed to load provider plan mapping")

type inMemPlanSource struct {
	plans map[Provider]map[string]string
}

// NewInMemPlanSource returns a PlanMapSource backed by a static map,
// primarily for tests and single-binary deployments.
func NewInMemPlanSource(plans map[Provider]map[string]string) PlanMapSource {
	copied := make(map[Provider]map[string]string, len(plans))
	for provider, mapping := range plans {
		copied[provider] = maps.Clone(mapping)
	}
	return &inMemPlanSource{plans: copied}
}

func (s *inMemPlanSource) Load(_ context.Context) (map[Provider]map[string]string, error) {
	copied := make(map[Provider]map[string]string, len(s.plans))
	for provider, mapping := range s.plans {
		copied[provider] = maps.Clone(mapping)
	}
	return copied, nil
}

type yamlPlanSource struct {
	path string
}

// NewYAMLPlanSource returns a PlanMapSource that reads the mapping from a
// YAML file of the form:
//
//	stripe:
//	  price_1NxYz: premium_monthly
//	revenuecat:
//	  rc_premium_annual: premium_annual
func NewYAMLPlanSource(path string) PlanMapSource {
	return &yamlPlanSource{path: path}
}

func (s *yamlPlanSource) Load(_ context.Context) (map[Provider]map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan map file %s: %w", s.path, err)
	}

	var parsed map[Provider]map[string]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse plan map file %s: %w", s.path, err)
	}

	for provider := range parsed {
		if !provider.Valid() {
			return nil, fmt.Errorf("plan map file %s: unknown provider %q", s.path, provider)
		}
	}

	return parsed, nil
}
