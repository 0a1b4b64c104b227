package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-gateway/internal/credential"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
)

func newTestApplier() *Applier {
	env := map[string]string{"TOKEN": "from-env"}
	creds := credential.NewEngine().WithEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	return NewApplier(creds, NewOAuth2Tokens(nil), nil)
}

func newRequest() *protocol.Request {
	return protocol.NewRequest(http.MethodGet, "https://api.example.com", "/pets")
}

func cfg(id string, t models.AuthType, priority int, seq int64, required bool, values map[string]string) models.AuthConfig {
	return models.AuthConfig{ID: id, AuthType: t, Priority: priority, Sequence: seq, Required: required, Config: values}
}

func TestApply_Strategies(t *testing.T) {
	tests := []struct {
		name   string
		config models.AuthConfig
		check  func(t *testing.T, req *protocol.Request, res *Result)
	}{
		{
			name:   "basic",
			config: cfg("b", models.AuthBasic, 0, 1, true, map[string]string{"username": "user", "password": "pass"}),
			check: func(t *testing.T, req *protocol.Request, res *Result) {
				want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
				assert.Equal(t, want, req.Header.Get("Authorization"))
				assert.Equal(t, []string{"Authorization"}, res.Headers)
			},
		},
		{
			name:   "bearer from env template",
			config: cfg("t", models.AuthBearer, 0, 1, true, map[string]string{"token": "{{env.TOKEN}}"}),
			check: func(t *testing.T, req *protocol.Request, _ *Result) {
				assert.Equal(t, "Bearer from-env", req.Header.Get("Authorization"))
			},
		},
		{
			name:   "api key header default name",
			config: cfg("k", models.AuthAPIKey, 0, 1, true, map[string]string{"value": "k1"}),
			check: func(t *testing.T, req *protocol.Request, _ *Result) {
				assert.Equal(t, "k1", req.Header.Get(DefaultAPIKeyName))
			},
		},
		{
			name:   "api key query",
			config: cfg("k", models.AuthAPIKey, 0, 1, true, map[string]string{"in": "query", "name": "api_key", "value": "k2"}),
			check: func(t *testing.T, req *protocol.Request, res *Result) {
				assert.Equal(t, "k2", req.Query.Get("api_key"))
				assert.Equal(t, []string{"api_key"}, res.Query)
			},
		},
		{
			name:   "api key cookie",
			config: cfg("k", models.AuthAPIKey, 0, 1, true, map[string]string{"in": "cookie", "name": "sid", "value": "k3"}),
			check: func(t *testing.T, req *protocol.Request, res *Result) {
				require.Len(t, req.Cookies, 1)
				assert.Equal(t, "k3", req.Cookies[0].Value)
				assert.Equal(t, []string{"sid"}, res.Cookies)
			},
		},
		{
			name:   "oauth2 pre-resolved token",
			config: cfg("o", models.AuthOAuth2, 0, 1, true, map[string]string{"access_token": "at"}),
			check: func(t *testing.T, req *protocol.Request, _ *Result) {
				assert.Equal(t, "Bearer at", req.Header.Get("Authorization"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest()
			res, err := newTestApplier().Apply(context.Background(), []models.AuthConfig{tt.config}, req, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.config.ID}, res.Applied)
			tt.check(t, req, res)
		})
	}
}

func TestApply_RequiredBasicWithoutUsername(t *testing.T) {
	req := newRequest()
	config := cfg("b1", models.AuthBasic, 0, 1, true, map[string]string{"username": "", "password": "x"})

	_, err := newTestApplier().Apply(context.Background(), []models.AuthConfig{config}, req, nil)
	require.ErrorIs(t, err, gwerrors.ErrMissingCredential)

	var authErr *gwerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "b1", authErr.ConfigID)
	assert.Equal(t, "username", authErr.Field)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestApply_OptionalWithoutMaterialIsSkipped(t *testing.T) {
	req := newRequest()
	configs := []models.AuthConfig{
		cfg("opt", models.AuthBearer, 0, 1, false, map[string]string{"token": "{{env.MISSING}}"}),
		cfg("key", models.AuthAPIKey, 1, 2, true, map[string]string{"value": "v"}),
	}

	res, err := newTestApplier().Apply(context.Background(), configs, req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "opt")
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestApply_ConflictsAndOrdering(t *testing.T) {
	req := newRequest()
	configs := []models.AuthConfig{
		cfg("late-bearer", models.AuthBearer, 5, 1, true, map[string]string{"token": "low"}),
		cfg("basic", models.AuthBasic, 1, 3, true, map[string]string{"username": "u"}),
		cfg("tie-second", models.AuthAPIKey, 2, 9, true, map[string]string{"name": "X-Key", "value": "second"}),
		cfg("tie-first", models.AuthAPIKey, 2, 4, true, map[string]string{"name": "x-key", "value": "first"}),
	}

	res, err := newTestApplier().Apply(context.Background(), configs, req, nil)
	require.NoError(t, err)

	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("u:")), req.Header.Get("Authorization"))
	assert.Equal(t, "first", req.Header.Get("X-Key"))
	assert.Equal(t, []string{"basic", "tie-first"}, res.Applied)
	assert.Len(t, res.Warnings, 2)
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := newTestApplier().Apply(context.Background(),
		[]models.AuthConfig{cfg("x", "digest", 0, 1, false, nil)}, newRequest(), nil)
	assert.ErrorIs(t, err, gwerrors.ErrUnsupportedAuthType)

	_, err = newTestApplier().Apply(context.Background(),
		[]models.AuthConfig{cfg("y", models.AuthAPIKey, 0, 1, true, map[string]string{"in": "body", "value": "v"})}, newRequest(), nil)
	assert.ErrorIs(t, err, gwerrors.ErrUnsupportedAuthType)
}

func TestSortIsStable(t *testing.T) {
	in := []models.AuthConfig{
		cfg("c", models.AuthBearer, 1, 3, false, nil),
		cfg("a", models.AuthBearer, 1, 1, false, nil),
		cfg("z", models.AuthBearer, 0, 7, false, nil),
	}
	out := Sort(in)
	assert.Equal(t, []string{"z", "a", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "c", in[0].ID)
}

func TestOAuth2ClientCredentials(t *testing.T) {
	var hits atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"cc-token","token_type":"bearer","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	a := newTestApplier()
	config := cfg("o", models.AuthOAuth2, 0, 1, true, map[string]string{
		"token_url":     tokenServer.URL,
		"client_id":     "id",
		"client_secret": "secret",
		"scopes":        "read,write",
	})

	for i := 0; i < 2; i++ {
		req := newRequest()
		_, err := a.Apply(context.Background(), []models.AuthConfig{config}, req, nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer cc-token", req.Header.Get("Authorization"))
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestOAuth2FailureIsMissingCredential(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer tokenServer.Close()

	config := cfg("o", models.AuthOAuth2, 0, 1, true, map[string]string{
		"token_url": tokenServer.URL,
		"client_id": "id",
	})
	_, err := newTestApplier().Apply(context.Background(), []models.AuthConfig{config}, newRequest(), nil)
	assert.ErrorIs(t, err, gwerrors.ErrMissingCredential)
}
