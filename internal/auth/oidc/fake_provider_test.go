package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "notes"
	testKeyID    = "test-key"
	goodCode     = "good-code"
	goodRefresh  = "refresh-1"
)

// fakeProvider is a minimal OIDC provider: discovery, JWKS and token endpoint.
type fakeProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	discoveryHits atomic.Int32
	tokenHits     atomic.Int32

	mu        sync.Mutex
	nonce     string
	lastForm  url.Values
	noIDToken bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := &fakeProvider{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", fp.handleDiscovery)
	mux.HandleFunc("/jwks", fp.handleJWKS)
	mux.HandleFunc("/token", fp.handleToken)

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)

	return fp
}

func (fp *fakeProvider) issuer() string {
	return fp.server.URL
}

func (fp *fakeProvider) setNonce(nonce string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.nonce = nonce
}

func (fp *fakeProvider) form() url.Values {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.lastForm
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (fp *fakeProvider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	fp.discoveryHits.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                fp.issuer(),
		"authorization_endpoint":                fp.issuer() + "/auth",
		"token_endpoint":                        fp.issuer() + "/token",
		"jwks_uri":                              fp.issuer() + "/jwks",
		"end_session_endpoint":                  fp.issuer() + "/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (fp *fakeProvider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	b64 := base64.RawURLEncoding.EncodeToString
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   b64(fp.key.N.Bytes()),
			"e":   b64(big.NewInt(int64(fp.key.E)).Bytes()),
		}},
	})
}

func (fp *fakeProvider) idToken(nonce string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   fp.issuer(),
		"aud":   testClientID,
		"sub":   "user-1",
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		"nonce": nonce,
	})
	token.Header["kid"] = testKeyID

	raw, err := token.SignedString(fp.key)
	if err != nil {
		panic(err)
	}
	return raw
}

func (fp *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	fp.tokenHits.Add(1)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	fp.mu.Lock()
	fp.lastForm = r.PostForm
	nonce, noIDToken := fp.nonce, fp.noIDToken
	fp.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != goodCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp := map[string]any{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": goodRefresh,
			"expires_in":    300,
		}
		if !noIDToken {
			resp["id_token"] = fp.idToken(nonce)
		}
		writeJSON(w, http.StatusOK, resp)

	case "refresh_token":
		if r.PostForm.Get("refresh_token") != goodRefresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "access-2",
			"token_type":   "Bearer",
			"expires_in":   300,
		})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}
