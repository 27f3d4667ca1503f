package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrProviderNotFound is returned when a provider name is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// Repository defines the interface for provider configuration storage
type Repository interface {
	GetProvider(name string) (*Provider, error)
	ListProviders() ([]*Provider, error)
	AddProvider(provider *Provider) error
}

// InMemRepository implements Repository using an in-memory map
type InMemRepository struct {
	providers map[string]*Provider
	mu        sync.RWMutex
}

// NewInMemRepository creates a new in-memory provider repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		providers: make(map[string]*Provider),
	}
}

// AddProvider validates and registers a provider
func (r *InMemRepository) AddProvider(provider *Provider) error {
	if err := provider.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid provider config: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name] = provider
	return nil
}

// GetProvider retrieves a provider by name
func (r *InMemRepository) GetProvider(name string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// ListProviders returns all registered providers sorted by name
func (r *InMemRepository) ListProviders() ([]*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]*Provider, 0, len(r.providers))
	for _, provider := range r.providers {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	return providers, nil
}

// LoadFromFile loads provider configurations from a JSON file into a
// repository.
func LoadFromFile(path string) (*InMemRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider file: %w", err)
	}

	var providers []*Provider
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("failed to parse provider file: %w", err)
	}

	repo := NewInMemRepository()
	for _, provider := range providers {
		if err := repo.AddProvider(provider); err != nil {
			return nil, fmt.Errorf("provider %q: %w", provider.Name, err)
		}
	}
	return repo, nil
}
