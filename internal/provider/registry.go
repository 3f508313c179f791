package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/myclaw-dev/myclaw/internal/failover"
	"github.com/myclaw-dev/myclaw/pkg/types"
)

// Registry manages provider instances keyed by credential-profile ID.
// A single logical provider (anthropic, openai, ark) may be registered
// more than once under distinct profile IDs so the failover chain can
// rotate between credentials for the same backing service.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own ID. Use RegisterProfile when
// more than one credential profile backs the same provider type.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// RegisterProfile adds a provider under an explicit profile ID,
// distinct from the provider's own ID, so the same backing service can
// be registered multiple times under different credentials.
func (r *Registry) RegisterProfile(profileID string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[profileID] = provider
}

// Get retrieves a provider by ID or profile ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return provider, nil
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, m := range provider.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all registered providers, sorted
// by a rough quality/recency priority.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	default:
		return 50
	}
}

// ProfileSpec names one credential profile to instantiate: which
// backing service (anthropic/openai/ark), which credentials, and which
// model. RunConfig carries a list of these, one per failover profile.
type ProfileSpec struct {
	ID        string // profile ID, used as the failover.Profile.ID and registry key
	Kind      string // "anthropic", "openai", or "ark"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// BuildProviders instantiates one Provider per spec and registers it
// under spec.ID, returning the registry alongside the corresponding
// failover.Profile list in the same order as specs.
func BuildProviders(ctx context.Context, specs []ProfileSpec) (*Registry, []failover.Profile, error) {
	registry := NewRegistry()
	profiles := make([]failover.Profile, 0, len(specs))

	for _, spec := range specs {
		var p Provider
		var err error

		switch spec.Kind {
		case "anthropic":
			p, err = NewAnthropicProvider(ctx, &AnthropicConfig{
				ID:        spec.ID,
				APIKey:    spec.APIKey,
				BaseURL:   spec.BaseURL,
				Model:     spec.Model,
				MaxTokens: orDefault(spec.MaxTokens, 8192),
			})
		case "openai":
			p, err = NewOpenAIProvider(ctx, &OpenAIConfig{
				ID:        spec.ID,
				APIKey:    spec.APIKey,
				BaseURL:   spec.BaseURL,
				Model:     spec.Model,
				MaxTokens: orDefault(spec.MaxTokens, 4096),
			})
		case "ark":
			p, err = NewArkProvider(ctx, &ArkConfig{
				APIKey:    spec.APIKey,
				BaseURL:   spec.BaseURL,
				Model:     spec.Model,
				MaxTokens: orDefault(spec.MaxTokens, 4096),
			})
		default:
			err = fmt.Errorf("unknown provider kind: %s", spec.Kind)
		}

		if err != nil {
			return nil, nil, fmt.Errorf("provider profile %s: %w", spec.ID, err)
		}

		registry.RegisterProfile(spec.ID, p)
		profiles = append(profiles, failover.Profile{ID: spec.ID, APIKey: spec.APIKey})
	}

	return registry, profiles, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
