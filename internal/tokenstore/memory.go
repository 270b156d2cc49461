package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/marcogenualdo/notes-gate/internal/auth"
)

// MemoryStore keeps records in process memory; ttlcache reaps expired ones.
type MemoryStore struct {
	cache  *ttlcache.Cache[string, Record]
	expiry expiry

	// serializes check-then-set in Put and Update
	mu sync.Mutex
}

func NewMemoryStore(grace time.Duration) *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, Record](),
	)

	go cache.Start()

	return &MemoryStore{
		cache:  cache,
		expiry: newExpiry(grace),
	}
}

func (ms *MemoryStore) Put(ctx context.Context, tokenSet *auth.TokenSet) (string, error) {
	return insert(ctx, func(_ context.Context, sessionID string) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()

		if _, ok := ms.lookup(sessionID); ok {
			return ErrConflict
		}
		ms.set(sessionID, tokenSet)
		return nil
	})
}

func (ms *MemoryStore) Get(_ context.Context, sessionID string) (*Record, bool, error) {
	rec, ok := ms.lookup(sessionID)
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (ms *MemoryStore) Update(_ context.Context, sessionID string, tokenSet *auth.TokenSet) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.lookup(sessionID); !ok {
		return ErrNotFound
	}
	ms.set(sessionID, tokenSet)
	return nil
}

func (ms *MemoryStore) Remove(_ context.Context, sessionID string) error {
	ms.cache.Delete(sessionID)
	return nil
}

func (ms *MemoryStore) Ping(context.Context) error {
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.cache.Stop()
	return nil
}

func (ms *MemoryStore) lookup(sessionID string) (Record, bool) {
	item := ms.cache.Get(sessionID)
	if item == nil {
		return Record{}, false
	}

	rec := item.Value()
	if rec.Expired(ms.expiry.now()) {
		return Record{}, false
	}
	return rec, true
}

func (ms *MemoryStore) set(sessionID string, tokenSet *auth.TokenSet) {
	expiresAt := ms.expiry.expiresAt(tokenSet)
	ms.cache.Set(sessionID, Record{
		SessionID: sessionID,
		TokenSet:  *tokenSet,
		ExpiresAt: expiresAt.Unix(),
	}, expiresAt.Sub(ms.expiry.now()))
}
