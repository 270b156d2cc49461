package auth

import "errors"

var (
	// ErrDiscovery means the provider metadata could not be fetched or parsed.
	ErrDiscovery = errors.New("oidc discovery failed")
	// ErrCallback covers state mismatch, rejected code exchange and malformed responses.
	ErrCallback = errors.New("oidc callback failed")
	// ErrRefresh means the refresh token was missing, expired or revoked.
	ErrRefresh = errors.New("token refresh failed")
	// ErrStore means the token store backend is unavailable.
	ErrStore = errors.New("token store unavailable")
	// ErrTamperedCookie means the session cookie failed verification.
	ErrTamperedCookie = errors.New("session cookie failed verification")
)
