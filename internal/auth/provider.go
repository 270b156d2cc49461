package auth

import (
	"context"
	"net/url"
)

// Provider is the relying-party view of the single configured identity provider.
type Provider interface {
	Issuer() string

	AuthorizationURL(flow FlowState, redirectURI, action string) string
	Exchange(ctx context.Context, callbackURL *url.URL, redirectURI string, flow FlowState) (*TokenSet, error)
	Refresh(ctx context.Context, tokenSet *TokenSet) (*TokenSet, error)
	EndSessionURL(postLogoutRedirectURI, idTokenHint string) (string, error)
}
