package auth

import "time"

// TokenSet is what the identity provider issued for one login.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// A token set without an expiry never expires on its own.
func (t *TokenSet) Expired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Before(t.Expiry)
}

// FlowState is the anti-forgery and PKCE material for one login attempt.
// It only ever lives inside the signed browser cookie.
type FlowState struct {
	State        string `json:"state"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"code_verifier"`
	RedirectTo   string `json:"redirect_to"`
}

func (f FlowState) IsZero() bool {
	return f.State == "" && f.Nonce == "" && f.CodeVerifier == "" && f.RedirectTo == ""
}

// Principal is the request-scoped identity derived from a valid token set.
type Principal struct {
	Subject     string
	Email       string
	Username    string
	DisplayName string
	Roles       []string
	Authorized  bool
}
