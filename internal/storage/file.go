package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prasenjit/go-gateway/internal/models"
)

const (
	specsDir = "specs"
	authDir  = "auth"
)

// FileStorage implements Storage interface with file-based persistence
type FileStorage struct {
	mu       sync.RWMutex
	basePath string
	memory   *MemoryStorage
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(basePath string) (*FileStorage, error) {
	// Create directories if they don't exist
	dirs := []struct {
		path string
		perm os.FileMode
	}{
		{basePath, 0755},
		{filepath.Join(basePath, specsDir), 0755},
		{filepath.Join(basePath, authDir), 0700},
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir.path, dir.perm); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir.path, err)
		}
	}

	fs := &FileStorage{
		basePath: basePath,
		memory:   NewMemoryStorage(),
	}

	// Load existing data
	if err := fs.loadAll(); err != nil {
		return nil, err
	}

	return fs, nil
}

// loadAll loads all data from disk. Unreadable files are skipped.
func (f *FileStorage) loadAll() error {
	err := loadDir(filepath.Join(f.basePath, specsDir), func(data []byte) {
		var spec models.Specification
		if json.Unmarshal(data, &spec) == nil && spec.ID != "" {
			f.memory.specs[spec.ID] = &spec
		}
	})
	if err != nil {
		return err
	}

	return loadDir(filepath.Join(f.basePath, authDir), func(data []byte) {
		var cfg models.AuthConfig
		if json.Unmarshal(data, &cfg) == nil && cfg.ID != "" {
			f.memory.authConfigs[cfg.ID] = &cfg
		}
	})
}

func loadDir(dir string, load func([]byte)) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		load(data)
	}
	return nil
}

// filePerm returns the mode files in dir are written with. Auth configs
// may carry credentials, so only the owner can read them.
func filePerm(dir string) os.FileMode {
	if dir == authDir {
		return 0600
	}
	return 0644
}

// save writes v as indented JSON to dir/id.json
func (f *FileStorage) save(dir, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(f.basePath, dir, id+".json")
	perm := filePerm(dir)
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	// WriteFile keeps the mode of a file that already exists
	return os.Chmod(path, perm)
}

// remove deletes dir/id.json
func (f *FileStorage) remove(dir, id string) error {
	path := filepath.Join(f.basePath, dir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CreateSpec creates a new spec
func (f *FileStorage) CreateSpec(spec *models.Specification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateSpec(spec); err != nil {
		return err
	}

	return f.save(specsDir, spec.ID, spec)
}

// GetSpec retrieves a spec by ID
func (f *FileStorage) GetSpec(id string) (*models.Specification, error) {
	return f.memory.GetSpec(id)
}

// GetAllSpecs retrieves all specs
func (f *FileStorage) GetAllSpecs() ([]*models.Specification, error) {
	return f.memory.GetAllSpecs()
}

// GetSpecsByName retrieves every version registered under name
func (f *FileStorage) GetSpecsByName(name string) ([]*models.Specification, error) {
	return f.memory.GetSpecsByName(name)
}

// UpdateSpec updates a spec
func (f *FileStorage) UpdateSpec(spec *models.Specification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateSpec(spec); err != nil {
		return err
	}

	return f.save(specsDir, spec.ID, spec)
}

// DeleteSpec deletes a spec
func (f *FileStorage) DeleteSpec(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.DeleteSpec(id); err != nil {
		return err
	}

	return f.remove(specsDir, id)
}

// CreateAuthConfig creates a new auth config
func (f *FileStorage) CreateAuthConfig(cfg *models.AuthConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateAuthConfig(cfg); err != nil {
		return err
	}

	return f.save(authDir, cfg.ID, cfg)
}

// GetAuthConfig retrieves an auth config by ID
func (f *FileStorage) GetAuthConfig(id string) (*models.AuthConfig, error) {
	return f.memory.GetAuthConfig(id)
}

// GetAuthConfigsBySpec retrieves the auth configs of a spec
func (f *FileStorage) GetAuthConfigsBySpec(specID string) ([]*models.AuthConfig, error) {
	return f.memory.GetAuthConfigsBySpec(specID)
}

// GetAllAuthConfigs retrieves all auth configs
func (f *FileStorage) GetAllAuthConfigs() ([]*models.AuthConfig, error) {
	return f.memory.GetAllAuthConfigs()
}

// UpdateAuthConfig updates an auth config
func (f *FileStorage) UpdateAuthConfig(cfg *models.AuthConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateAuthConfig(cfg); err != nil {
		return err
	}

	return f.save(authDir, cfg.ID, cfg)
}

// DeleteAuthConfig deletes an auth config
func (f *FileStorage) DeleteAuthConfig(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.DeleteAuthConfig(id); err != nil {
		return err
	}

	return f.remove(authDir, id)
}

// DeleteAuthConfigsBySpec deletes all auth configs for a spec
func (f *FileStorage) DeleteAuthConfigsBySpec(specID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Get configs to delete
	cfgs, _ := f.memory.GetAuthConfigsBySpec(specID)

	// Delete from memory
	if err := f.memory.DeleteAuthConfigsBySpec(specID); err != nil {
		return err
	}

	// Delete files
	for _, cfg := range cfgs {
		f.remove(authDir, cfg.ID)
	}

	return nil
}

// Close closes the storage
func (f *FileStorage) Close() error {
	return nil
}

// New returns the storage selected by kind: "memory" or "file".
func New(kind, path string) (Storage, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(path)
	}
	return nil, fmt.Errorf("unknown storage type %q", kind)
}
