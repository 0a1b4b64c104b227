// Package storage persists specifications and auth configs. Endpoints and
// DTOs are derived from specification content and never stored.
package storage

import (
	"github.com/prasenjit/go-gateway/internal/models"
)

// Storage defines the interface for data persistence. Returned values are
// copies; callers must Update to change stored state.
type Storage interface {
	// Specification operations
	CreateSpec(spec *models.Specification) error
	GetSpec(id string) (*models.Specification, error)
	GetAllSpecs() ([]*models.Specification, error)
	GetSpecsByName(name string) ([]*models.Specification, error)
	UpdateSpec(spec *models.Specification) error
	DeleteSpec(id string) error

	// AuthConfig operations
	CreateAuthConfig(cfg *models.AuthConfig) error
	GetAuthConfig(id string) (*models.AuthConfig, error)
	GetAuthConfigsBySpec(specID string) ([]*models.AuthConfig, error)
	GetAllAuthConfigs() ([]*models.AuthConfig, error)
	UpdateAuthConfig(cfg *models.AuthConfig) error
	DeleteAuthConfig(id string) error
	DeleteAuthConfigsBySpec(specID string) error

	// Utility
	Close() error
}
