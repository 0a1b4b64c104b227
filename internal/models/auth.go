package models

import "time"

// AuthType names a credential strategy
type AuthType string

const (
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
	AuthOAuth2 AuthType = "oauth2"
)

// AuthConfig is a stored credential-injection rule. It applies to every
// endpoint of SpecID, or only to EndpointID when that is set.
type AuthConfig struct {
	ID         string            `json:"id"`
	SpecID     string            `json:"specId,omitempty"`
	EndpointID string            `json:"endpointId,omitempty"`
	AuthType   AuthType          `json:"authType"`
	Config     map[string]string `json:"config"` // values may contain {{...}} templates
	Required   bool              `json:"required"`
	Priority   int               `json:"priority"` // Lower = applied first, wins conflicts
	Sequence   int64             `json:"sequence"` // insertion order, breaks priority ties
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// AuthConfigInput represents input for upsertAuthConfig
type AuthConfigInput struct {
	SpecID     string            `json:"specId"`
	EndpointID string            `json:"endpointId"`
	AuthType   string            `json:"authType" binding:"required"`
	Config     map[string]string `json:"config"`
	Required   bool              `json:"required"`
	Priority   int               `json:"priority"`
}

// Redacted returns a copy of the config with secret values masked
func (a *AuthConfig) Redacted() AuthConfig {
	out := *a
	out.Config = make(map[string]string, len(a.Config))
	for k, v := range a.Config {
		switch k {
		case "password", "token", "value", "access_token", "client_secret":
			if v != "" {
				v = "***"
			}
		}
		out.Config[k] = v
	}
	return out
}

// AppliesTo reports whether the config is in scope for an endpoint
func (a *AuthConfig) AppliesTo(specID, endpointID string) bool {
	if a.EndpointID != "" {
		return a.EndpointID == endpointID
	}
	return a.SpecID == specID
}
