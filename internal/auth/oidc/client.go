package oidc

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/marcogenualdo/notes-gate/pkg/security"
	"golang.org/x/oauth2"
)

// actionParam carries a provider-specific action hint (Keycloak required actions).
const actionParam = "kc_action"

// Client is bound to one discovered provider and one client id. All methods
// except NewClient are safe for concurrent use.
type Client struct {
	issuer             string
	endSessionEndpoint string

	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

var _ auth.Provider = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.OIDCConfig) (*Client, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrDiscovery, err)
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("%w: failed to parse provider metadata: %w", auth.ErrDiscovery, err)
	}

	endpoint := provider.Endpoint()
	if cfg.ClientSecret == "" {
		// public client, token_endpoint_auth_method=none
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	return &Client{
		issuer:             cfg.Issuer,
		endSessionEndpoint: metadata.EndSessionEndpoint,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
		}),
	}, nil
}

func (c *Client) Issuer() string {
	return c.issuer
}

// configFor returns a copy of the oauth2 config bound to redirectURI.
func (c *Client) configFor(redirectURI string) *oauth2.Config {
	conf := c.oauth2Config
	conf.RedirectURL = redirectURI
	return &conf
}

func (c *Client) AuthorizationURL(flow auth.FlowState, redirectURI, action string) string {
	opts := []oauth2.AuthCodeOption{
		oidc.Nonce(flow.Nonce),
		oauth2.SetAuthURLParam("code_challenge", security.CodeChallengeS256(flow.CodeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("response_mode", "query"),
	}
	if action != "" {
		opts = append(opts, oauth2.SetAuthURLParam(actionParam, action))
	}

	return c.configFor(redirectURI).AuthCodeURL(flow.State, opts...)
}

func (c *Client) Exchange(ctx context.Context, callbackURL *url.URL, redirectURI string, flow auth.FlowState) (*auth.TokenSet, error) {
	query := callbackURL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		return nil, fmt.Errorf("%w: provider returned %q", auth.ErrCallback, providerErr)
	}

	if flow.State == "" || flow.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: no login in progress", auth.ErrCallback)
	}

	state := query.Get("state")
	if subtle.ConstantTimeCompare([]byte(state), []byte(flow.State)) != 1 {
		return nil, fmt.Errorf("%w: state mismatch", auth.ErrCallback)
	}

	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code parameter", auth.ErrCallback)
	}

	oauth2Token, err := c.configFor(redirectURI).Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", flow.CodeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange code: %w", auth.ErrCallback, err)
	}

	tokenSet := tokenSetFrom(oauth2Token, nil)

	if tokenSet.IDToken != "" {
		idToken, err := c.verifier.Verify(ctx, tokenSet.IDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to verify ID token: %w", auth.ErrCallback, err)
		}
		if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(flow.Nonce)) != 1 {
			return nil, fmt.Errorf("%w: nonce mismatch", auth.ErrCallback)
		}
	}

	return tokenSet, nil
}

func (c *Client) Refresh(ctx context.Context, tokenSet *auth.TokenSet) (*auth.TokenSet, error) {
	if tokenSet.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", auth.ErrRefresh)
	}

	tokenSource := c.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: tokenSet.RefreshToken,
	})

	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrRefresh, err)
	}

	next := tokenSetFrom(newToken, tokenSet)

	if next.IDToken != tokenSet.IDToken {
		if _, err := c.verifier.Verify(ctx, next.IDToken); err != nil {
			return nil, fmt.Errorf("%w: failed to verify refreshed ID token: %w", auth.ErrRefresh, err)
		}
	}

	return next, nil
}

func (c *Client) EndSessionURL(postLogoutRedirectURI, idTokenHint string) (string, error) {
	if c.endSessionEndpoint == "" {
		return "", fmt.Errorf("provider does not advertise an end_session_endpoint")
	}

	u, err := url.Parse(c.endSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid end_session_endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", c.oauth2Config.ClientID)
	if postLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// tokenSetFrom converts an oauth2 token, keeping the refresh and ID tokens of
// previous when the provider did not rotate them.
func tokenSetFrom(token *oauth2.Token, previous *auth.TokenSet) *auth.TokenSet {
	ts := &auth.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = rawIDToken
	}

	if previous != nil {
		if ts.RefreshToken == "" {
			ts.RefreshToken = previous.RefreshToken
		}
		if ts.IDToken == "" {
			ts.IDToken = previous.IDToken
		}
	}

	return ts
}
