// Package auth applies stored credential configs to outbound requests.
package auth

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prasenjit/go-gateway/internal/credential"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
)

// Slot locations a strategy can write to.
const (
	InHeader = "header"
	InQuery  = "query"
	InCookie = "cookie"
)

// slot is one credential write. Two writes with the same key conflict.
type slot struct {
	in    string
	name  string
	value string
}

func (s slot) key() string {
	if s.in == InHeader {
		return InHeader + ":" + http.CanonicalHeaderKey(s.name)
	}
	return s.in + ":" + s.name
}

func (s slot) write(req *protocol.Request) {
	switch s.in {
	case InHeader:
		req.Header.Set(s.name, s.value)
	case InQuery:
		req.Query.Set(s.name, s.value)
	case InCookie:
		req.SetCookie(s.name, s.value)
	}
}

// Result tells the caller what Apply changed, so the written values can be
// redacted before the request is logged.
type Result struct {
	Applied  []string // config IDs, in application order
	Headers  []string // canonical header names
	Query    []string
	Cookies  []string
	Warnings []string
}

// Applier applies auth configs to request skeletons
type Applier struct {
	creds  *credential.Engine
	tokens TokenProvider
	logger *slog.Logger
}

// NewApplier creates an applier. tokens resolves oauth2 access tokens.
func NewApplier(creds *credential.Engine, tokens TokenProvider, logger *slog.Logger) *Applier {
	if creds == nil {
		creds = credential.NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{creds: creds, tokens: tokens, logger: logger}
}

// Sort orders configs by ascending priority, ties broken by insertion
// sequence. The input is not modified.
func Sort(configs []models.AuthConfig) []models.AuthConfig {
	out := slices.Clone(configs)
	slices.SortStableFunc(out, func(a, b models.AuthConfig) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return out
}

// Apply writes the credentials of every config into req, lowest priority
// number first. Configs are cumulative; when two target the same header,
// query parameter or cookie the first one keeps it and the later one is
// recorded as a warning.
//
// A required config without credential material fails with a
// MissingCredential error and req must not be sent. An optional one is
// skipped with a warning.
func (a *Applier) Apply(ctx context.Context, configs []models.AuthConfig, req *protocol.Request, cctx *credential.Context) (*Result, error) {
	res := &Result{}
	owners := make(map[string]string)

	for _, cfg := range Sort(configs) {
		strategy, ok := strategies[cfg.AuthType]
		if !ok {
			return nil, &gwerrors.AuthError{
				Kind:     gwerrors.UnsupportedAuthType,
				AuthType: string(cfg.AuthType),
				ConfigID: cfg.ID,
			}
		}

		values := a.creds.ExpandAll(cfg.Config, cctx)
		slots, err := strategy(ctx, a, cfg, values)
		if err != nil {
			var authErr *gwerrors.AuthError
			if errors.As(err, &authErr) {
				authErr.AuthType = string(cfg.AuthType)
				authErr.ConfigID = cfg.ID
			}
			if errors.Is(err, gwerrors.ErrMissingCredential) && !cfg.Required {
				res.Warnings = append(res.Warnings, fmt.Sprintf("auth config %s skipped: %v", cfg.ID, err))
				continue
			}
			return nil, err
		}

		wrote := false
		for _, s := range slots {
			k := s.key()
			if owner, taken := owners[k]; taken {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("auth config %s not applied to %s: already set by %s", cfg.ID, k, owner))
				continue
			}
			owners[k] = cfg.ID
			s.write(req)
			wrote = true
			switch s.in {
			case InHeader:
				res.Headers = append(res.Headers, http.CanonicalHeaderKey(s.name))
			case InQuery:
				res.Query = append(res.Query, s.name)
			case InCookie:
				res.Cookies = append(res.Cookies, s.name)
			}
		}
		if wrote {
			res.Applied = append(res.Applied, cfg.ID)
		}
	}

	if len(res.Warnings) > 0 {
		a.logger.Warn("auth configs conflicted or were skipped", "warnings", len(res.Warnings))
	}
	return res, nil
}
