package storage

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// MemoryStorage implements Storage interface with in-memory storage
type MemoryStorage struct {
	mu          sync.RWMutex
	specs       map[string]*models.Specification
	authConfigs map[string]*models.AuthConfig
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		specs:       make(map[string]*models.Specification),
		authConfigs: make(map[string]*models.AuthConfig),
	}
}

func cloneSpec(spec *models.Specification) *models.Specification {
	c := *spec
	return &c
}

func cloneAuthConfig(cfg *models.AuthConfig) *models.AuthConfig {
	c := *cfg
	c.Config = maps.Clone(cfg.Config)
	return &c
}

// sortSpecs orders by name, then version
func sortSpecs(specs []*models.Specification) {
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Name != specs[j].Name {
			return specs[i].Name < specs[j].Name
		}
		return specs[i].Version < specs[j].Version
	})
}

// sortAuthConfigs orders by priority, then insertion sequence
func sortAuthConfigs(cfgs []*models.AuthConfig) {
	sort.Slice(cfgs, func(i, j int) bool {
		if cfgs[i].Priority != cfgs[j].Priority {
			return cfgs[i].Priority < cfgs[j].Priority
		}
		return cfgs[i].Sequence < cfgs[j].Sequence
	})
}

// CreateSpec creates a new spec
func (m *MemoryStorage) CreateSpec(spec *models.Specification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.specs[spec.ID]; exists {
		return fmt.Errorf("specification with ID %s already exists", spec.ID)
	}

	m.specs[spec.ID] = cloneSpec(spec)
	return nil
}

// GetSpec retrieves a spec by ID
func (m *MemoryStorage) GetSpec(id string) (*models.Specification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spec, exists := m.specs[id]
	if !exists {
		return nil, &gwerrors.NotFoundError{Entity: "specification", ID: id}
	}

	return cloneSpec(spec), nil
}

// GetAllSpecs retrieves all specs
func (m *MemoryStorage) GetAllSpecs() ([]*models.Specification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	specs := make([]*models.Specification, 0, len(m.specs))
	for _, spec := range m.specs {
		specs = append(specs, cloneSpec(spec))
	}

	sortSpecs(specs)
	return specs, nil
}

// GetSpecsByName retrieves every version registered under name, oldest first
func (m *MemoryStorage) GetSpecsByName(name string) ([]*models.Specification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	specs := make([]*models.Specification, 0)
	for _, spec := range m.specs {
		if spec.Name == name {
			specs = append(specs, cloneSpec(spec))
		}
	}

	sortSpecs(specs)
	return specs, nil
}

// UpdateSpec updates a spec
func (m *MemoryStorage) UpdateSpec(spec *models.Specification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.specs[spec.ID]; !exists {
		return &gwerrors.NotFoundError{Entity: "specification", ID: spec.ID}
	}

	m.specs[spec.ID] = cloneSpec(spec)
	return nil
}

// DeleteSpec deletes a spec
func (m *MemoryStorage) DeleteSpec(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.specs[id]; !exists {
		return &gwerrors.NotFoundError{Entity: "specification", ID: id}
	}

	delete(m.specs, id)
	return nil
}

// CreateAuthConfig creates a new auth config
func (m *MemoryStorage) CreateAuthConfig(cfg *models.AuthConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.authConfigs[cfg.ID]; exists {
		return fmt.Errorf("auth config with ID %s already exists", cfg.ID)
	}

	m.authConfigs[cfg.ID] = cloneAuthConfig(cfg)
	return nil
}

// GetAuthConfig retrieves an auth config by ID
func (m *MemoryStorage) GetAuthConfig(id string) (*models.AuthConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, exists := m.authConfigs[id]
	if !exists {
		return nil, &gwerrors.NotFoundError{Entity: "auth config", ID: id}
	}

	return cloneAuthConfig(cfg), nil
}

// GetAuthConfigsBySpec retrieves the auth configs of a spec, endpoint-scoped
// ones included
func (m *MemoryStorage) GetAuthConfigsBySpec(specID string) ([]*models.AuthConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfgs := make([]*models.AuthConfig, 0)
	for _, cfg := range m.authConfigs {
		if cfg.SpecID == specID {
			cfgs = append(cfgs, cloneAuthConfig(cfg))
		}
	}

	sortAuthConfigs(cfgs)
	return cfgs, nil
}

// GetAllAuthConfigs retrieves all auth configs
func (m *MemoryStorage) GetAllAuthConfigs() ([]*models.AuthConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfgs := make([]*models.AuthConfig, 0, len(m.authConfigs))
	for _, cfg := range m.authConfigs {
		cfgs = append(cfgs, cloneAuthConfig(cfg))
	}

	sortAuthConfigs(cfgs)
	return cfgs, nil
}

// UpdateAuthConfig updates an auth config
func (m *MemoryStorage) UpdateAuthConfig(cfg *models.AuthConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.authConfigs[cfg.ID]; !exists {
		return &gwerrors.NotFoundError{Entity: "auth config", ID: cfg.ID}
	}

	m.authConfigs[cfg.ID] = cloneAuthConfig(cfg)
	return nil
}

// DeleteAuthConfig deletes an auth config
func (m *MemoryStorage) DeleteAuthConfig(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.authConfigs[id]; !exists {
		return &gwerrors.NotFoundError{Entity: "auth config", ID: id}
	}

	delete(m.authConfigs, id)
	return nil
}

// DeleteAuthConfigsBySpec deletes all auth configs for a spec
func (m *MemoryStorage) DeleteAuthConfigsBySpec(specID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cfg := range m.authConfigs {
		if cfg.SpecID == specID {
			delete(m.authConfigs, id)
		}
	}

	return nil
}

// Close closes the storage
func (m *MemoryStorage) Close() error {
	return nil
}
