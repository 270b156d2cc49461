// Package session signs and verifies the browser cookie that carries the
// login flow state and the opaque token store session id.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/pkg/security"
)

const cookieIssuer = "notes-gate"

var ErrEmptySecret = errors.New("session secret is empty")

// Payload is everything the cookie carries. Flow fields are set between login
// initiation and callback; SessionID and CSRFToken after a successful login.
type Payload struct {
	auth.FlowState
	SessionID string
	CSRFToken string
}

// WithoutFlow returns a copy of p with the single-use flow fields erased.
func (p Payload) WithoutFlow() Payload {
	p.FlowState = auth.FlowState{}
	return p
}

type cookieClaims struct {
	jwt.RegisteredClaims

	State        string `json:"st,omitempty"`
	Nonce        string `json:"nc,omitempty"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectTo   string `json:"rt,omitempty"`
	SessionID    string `json:"sid,omitempty"`
	CSRFToken    string `json:"csrf,omitempty"`
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Encode signs p into a cookie value valid for ttl.
func (c *Codec) Encode(p Payload, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrEmptySecret
	}

	now := c.now()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		State:        p.State,
		Nonce:        p.Nonce,
		CodeVerifier: p.CodeVerifier,
		RedirectTo:   p.RedirectTo,
		SessionID:    p.SessionID,
		CSRFToken:    p.CSRFToken,
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return value, nil
}

// Decode verifies value and returns its payload. Any verification failure,
// expiry included, wraps auth.ErrTamperedCookie.
func (c *Codec) Decode(value string) (Payload, error) {
	var claims cookieClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", auth.ErrTamperedCookie, err)
	}

	return Payload{
		FlowState: auth.FlowState{
			State:        claims.State,
			Nonce:        claims.Nonce,
			CodeVerifier: claims.CodeVerifier,
			RedirectTo:   claims.RedirectTo,
		},
		SessionID: claims.SessionID,
		CSRFToken: claims.CSRFToken,
	}, nil
}

// Read decodes the named cookie from r. A missing cookie is an empty payload
// and no error; a cookie that fails verification is an empty payload and the
// verification error.
func (c *Codec) Read(r *http.Request, name string) (Payload, error) {
	cookie, err := security.GetSessionCookie(r, name)
	if err != nil || cookie.Value == "" {
		return Payload{}, nil
	}
	return c.Decode(cookie.Value)
}
