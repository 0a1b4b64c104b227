package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider resolves the access token of an oauth2 config.
// A nil token without error means the config carries no token material.
type TokenProvider interface {
	Token(ctx context.Context, configID string, values map[string]string) (*oauth2.Token, error)
}

// OAuth2Tokens serves a pre-resolved access_token as is, and otherwise runs
// the client-credentials grant against token_url. Fetched tokens are cached
// and refreshed when they expire.
type OAuth2Tokens struct {
	client *http.Client

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewOAuth2Tokens creates a provider. client is used for token requests;
// nil means http.DefaultClient.
func NewOAuth2Tokens(client *http.Client) *OAuth2Tokens {
	if client == nil {
		client = http.DefaultClient
	}
	return &OAuth2Tokens{client: client, sources: make(map[string]oauth2.TokenSource)}
}

// Token implements TokenProvider
func (p *OAuth2Tokens) Token(_ context.Context, configID string, values map[string]string) (*oauth2.Token, error) {
	if access := values["access_token"]; access != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: access,
			TokenType:   values["token_type"],
		}).Token()
	}

	cc := &clientcredentials.Config{
		ClientID:     values["client_id"],
		ClientSecret: values["client_secret"],
		TokenURL:     values["token_url"],
		Scopes:       strings.Fields(strings.ReplaceAll(values["scopes"], ",", " ")),
	}
	if cc.TokenURL == "" || cc.ClientID == "" {
		return nil, nil
	}
	if audience := values["audience"]; audience != "" {
		cc.EndpointParams = url.Values{"audience": {audience}}
	}

	return p.source(configID, cc).Token()
}

// source returns the cached token source for a config, creating it on first
// use. The key covers every grant input so an updated config starts fresh.
func (p *OAuth2Tokens) source(configID string, cc *clientcredentials.Config) oauth2.TokenSource {
	key := strings.Join([]string{
		configID, cc.TokenURL, cc.ClientID, cc.ClientSecret,
		strings.Join(cc.Scopes, " "), cc.EndpointParams.Encode(),
	}, "\x00")

	p.mu.Lock()
	defer p.mu.Unlock()
	if ts, ok := p.sources[key]; ok {
		return ts
	}
	// Token refreshes outlive any single inbound call, so they do not use
	// the caller's context.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.client)
	ts := cc.TokenSource(ctx)
	p.sources[key] = ts
	return ts
}

// Forget drops cached tokens of a config, e.g. after it is deleted.
func (p *OAuth2Tokens) Forget(configID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := configID + "\x00"
	for key := range p.sources {
		if strings.HasPrefix(key, prefix) {
			delete(p.sources, key)
		}
	}
}
