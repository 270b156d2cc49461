// Package tokenstore persists OIDC token sets under opaque session ids.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/marcogenualdo/notes-gate/pkg/security"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session id already exists")
)

const (
	sessionIDBytes = 32
	maxPutAttempts = 3
)

// Record is the persisted shape of one server-side session.
type Record struct {
	SessionID string        `json:"session_id"`
	TokenSet  auth.TokenSet `json:"token_set"`
	ExpiresAt int64         `json:"expires_at"`
}

// Expired reports whether the record is eligible for reaping at now.
func (r *Record) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// Store is implemented by every backend. Get reports a missing or expired
// record as (nil, false, nil); backend failures wrap auth.ErrStore.
type Store interface {
	Put(ctx context.Context, tokenSet *auth.TokenSet) (string, error)
	Get(ctx context.Context, sessionID string) (*Record, bool, error)
	Update(ctx context.Context, sessionID string, tokenSet *auth.TokenSet) error
	Remove(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}

func New(ctx context.Context, cfg config.TokenStoreConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.GracePeriod), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis config is required for redis token store")
		}
		return NewRedisStore(*cfg.Redis, cfg.GracePeriod)
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return nil, errors.New("dynamodb config is required for dynamodb token store")
		}
		return NewDynamoDBStore(ctx, *cfg.DynamoDB, cfg.GracePeriod)
	default:
		return nil, errors.New("unsupported token store type: " + cfg.Type)
	}
}

// expiry computes record lifetimes: token expiry (or now, when the provider
// sent none) plus a fixed grace window.
type expiry struct {
	grace time.Duration
	now   func() time.Time
}

func newExpiry(grace time.Duration) expiry {
	return expiry{grace: grace, now: time.Now}
}

func (e expiry) expiresAt(ts *auth.TokenSet) time.Time {
	base := e.now()
	if ts.Expiry.After(base) {
		base = ts.Expiry
	}
	return base.Add(e.grace)
}

// insert generates session ids until create stops reporting ErrConflict.
func insert(ctx context.Context, create func(ctx context.Context, sessionID string) error) (string, error) {
	var lastErr error
	for range maxPutAttempts {
		sessionID, err := security.GenerateRandomString(sessionIDBytes)
		if err != nil {
			return "", err
		}

		err = create(ctx, sessionID)
		if err == nil {
			return sessionID, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", maxPutAttempts, lastErr)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", auth.ErrStore, op, err)
}
