package auth

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// DefaultAPIKeyName is used when an api_key config names no header.
const DefaultAPIKeyName = "X-API-Key"

// strategy turns expanded config values into slot writes. A strategy that
// finds no credential material returns a MissingCredential AuthError.
type strategy func(ctx context.Context, a *Applier, cfg models.AuthConfig, values map[string]string) ([]slot, error)

var strategies = map[models.AuthType]strategy{
	models.AuthBasic:  applyBasic,
	models.AuthBearer: applyBearer,
	models.AuthAPIKey: applyAPIKey,
	models.AuthOAuth2: applyOAuth2,
}

// Supported reports whether t names a known strategy.
func Supported(t models.AuthType) bool {
	_, ok := strategies[t]
	return ok
}

func missing(field string) error {
	return &gwerrors.AuthError{Kind: gwerrors.MissingCredential, Field: field}
}

func applyBasic(_ context.Context, _ *Applier, _ models.AuthConfig, values map[string]string) ([]slot, error) {
	user := values["username"]
	if user == "" {
		return nil, missing("username")
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + values["password"]))
	return []slot{{in: InHeader, name: "Authorization", value: "Basic " + encoded}}, nil
}

func applyBearer(_ context.Context, _ *Applier, _ models.AuthConfig, values map[string]string) ([]slot, error) {
	token := values["token"]
	if token == "" {
		return nil, missing("token")
	}
	return []slot{{in: InHeader, name: "Authorization", value: "Bearer " + token}}, nil
}

func applyAPIKey(_ context.Context, _ *Applier, _ models.AuthConfig, values map[string]string) ([]slot, error) {
	in := strings.ToLower(values["in"])
	if in == "" {
		in = InHeader
	}
	if in != InHeader && in != InQuery && in != InCookie {
		return nil, &gwerrors.AuthError{Kind: gwerrors.UnsupportedAuthType, Field: "in=" + in}
	}

	name := values["name"]
	if name == "" {
		name = DefaultAPIKeyName
	}
	value := values["value"]
	if value == "" {
		return nil, missing("value")
	}
	return []slot{{in: in, name: name, value: value}}, nil
}

func applyOAuth2(ctx context.Context, a *Applier, cfg models.AuthConfig, values map[string]string) ([]slot, error) {
	if a.tokens == nil {
		return nil, missing("access_token")
	}
	tok, err := a.tokens.Token(ctx, cfg.ID, values)
	if err != nil {
		return nil, &gwerrors.AuthError{Kind: gwerrors.MissingCredential, Field: "access_token", Cause: err}
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, missing("access_token")
	}

	header := values["header"]
	if header == "" {
		header = "Authorization"
	}
	return []slot{{in: InHeader, name: header, value: tok.Type() + " " + tok.AccessToken}}, nil
}
