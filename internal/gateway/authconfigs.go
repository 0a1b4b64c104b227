package gateway

import (
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// UpsertAuthConfig creates or updates the auth config identified by
// (specification, endpoint, auth type). An update keeps the config's ID and
// insertion sequence, so its position among equal priorities is stable.
// Giving only an endpoint ID scopes the config to that endpoint of its
// specification.
func (g *Gateway) UpsertAuthConfig(in models.AuthConfigInput) (*models.AuthConfig, error) {
	authType := models.AuthType(strings.ToLower(strings.TrimSpace(in.AuthType)))
	if !auth.Supported(authType) {
		return nil, &gwerrors.AuthError{Kind: gwerrors.UnsupportedAuthType, AuthType: string(authType)}
	}

	snap, err := g.scope(in.SpecID, in.EndpointID)
	if err != nil {
		return nil, err
	}
	specID := snap.spec.ID

	lock := g.lockFor(snap.spec.Name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := g.store.GetAuthConfigsBySpec(specID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth configs: %w", err)
	}

	values := maps.Clone(in.Config)
	if values == nil {
		values = map[string]string{}
	}

	now := g.now()
	var cfg *models.AuthConfig
	for _, c := range existing {
		if c.EndpointID == in.EndpointID && c.AuthType == authType {
			cfg = c
			break
		}
	}

	if cfg != nil {
		cfg.Config = values
		cfg.Required = in.Required
		cfg.Priority = in.Priority
		cfg.UpdatedAt = now
		if err := g.store.UpdateAuthConfig(cfg); err != nil {
			return nil, err
		}
		if g.tokens != nil {
			g.tokens.Forget(cfg.ID)
		}
	} else {
		cfg = &models.AuthConfig{
			ID:         uuid.New().String(),
			SpecID:     specID,
			EndpointID: in.EndpointID,
			AuthType:   authType,
			Config:     values,
			Required:   in.Required,
			Priority:   in.Priority,
			Sequence:   g.seq.Add(1),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := g.store.CreateAuthConfig(cfg); err != nil {
			return nil, err
		}
	}

	if err := g.refreshAuth(specID); err != nil {
		return nil, err
	}

	g.logger.Info("upserted auth config",
		"id", cfg.ID, "spec", specID, "endpoint", cfg.EndpointID,
		"type", cfg.AuthType, "priority", cfg.Priority, "required", cfg.Required)
	return cfg, nil
}

// scope finds the snapshot an auth config targets.
func (g *Gateway) scope(specID, endpointID string) (*snapshot, error) {
	switch {
	case endpointID != "":
		snap, err := g.snapshotOfEndpoint(endpointID)
		if err != nil {
			return nil, err
		}
		if specID != "" && specID != snap.spec.ID {
			return nil, &gwerrors.ValidationError{
				Path:    "endpointId",
				Message: fmt.Sprintf("endpoint %s does not belong to specification %s", endpointID, specID),
			}
		}
		return snap, nil
	case specID != "":
		return g.snapshot(specID)
	}
	return nil, &gwerrors.ValidationError{Path: "specId", Message: "specId or endpointId is required"}
}

// refreshAuth republishes the auth configs of a specification from storage.
// Callers hold the specification's writer lock.
func (g *Gateway) refreshAuth(specID string) error {
	stored, err := g.store.GetAuthConfigsBySpec(specID)
	if err != nil {
		return fmt.Errorf("failed to load auth configs: %w", err)
	}
	cfgs := make([]models.AuthConfig, len(stored))
	for i, c := range stored {
		cfgs[i] = *c
	}
	cfgs = auth.Sort(cfgs)

	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.snapshots[specID]
	if !ok {
		return nil
	}
	next := *old
	next.auth = cfgs
	g.snapshots[specID] = &next
	return nil
}

// GetAuthConfig returns one auth config
func (g *Gateway) GetAuthConfig(id string) (*models.AuthConfig, error) {
	return g.store.GetAuthConfig(id)
}

// ListAuthConfigs returns the auth configs of a specification, or every
// config when specID is empty, in application order.
func (g *Gateway) ListAuthConfigs(specID string) ([]models.AuthConfig, error) {
	var (
		stored []*models.AuthConfig
		err    error
	)
	if specID == "" {
		stored, err = g.store.GetAllAuthConfigs()
	} else {
		if _, err := g.snapshot(specID); err != nil {
			return nil, err
		}
		stored, err = g.store.GetAuthConfigsBySpec(specID)
	}
	if err != nil {
		return nil, err
	}

	cfgs := make([]models.AuthConfig, len(stored))
	for i, c := range stored {
		cfgs[i] = *c
	}
	return auth.Sort(cfgs), nil
}

// DeleteAuthConfig removes one auth config
func (g *Gateway) DeleteAuthConfig(id string) error {
	cfg, err := g.store.GetAuthConfig(id)
	if err != nil {
		return err
	}

	if snap, err := g.snapshot(cfg.SpecID); err == nil {
		lock := g.lockFor(snap.spec.Name)
		lock.Lock()
		defer lock.Unlock()
	}

	if err := g.store.DeleteAuthConfig(id); err != nil {
		return err
	}
	if g.tokens != nil {
		g.tokens.Forget(id)
	}
	if err := g.refreshAuth(cfg.SpecID); err != nil {
		return err
	}

	g.logger.Info("deleted auth config", "id", id, "spec", cfg.SpecID)
	return nil
}
