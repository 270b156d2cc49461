package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGrace = 30 * time.Minute

type backend struct {
	name string
	new  func(t *testing.T) (Store, *expiry)
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) (Store, *expiry) {
			s := NewMemoryStore(testGrace)
			t.Cleanup(func() { s.Close() })
			return s, &s.expiry
		}},
		{"redis", func(t *testing.T) (Store, *expiry) {
			mr := miniredis.RunT(t)
			s := newRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", testGrace)
			t.Cleanup(func() { s.Close() })
			return s, &s.expiry
		}},
		{"dynamodb", func(t *testing.T) (Store, *expiry) {
			s := newDynamoDBStore(newFakeDynamo(), "sessions", testGrace)
			return s, &s.expiry
		}},
	}
}

func tokenSet(access string, expiresIn time.Duration) *auth.TokenSet {
	return &auth.TokenSet{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		IDToken:      "id-" + access,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(expiresIn).UTC().Truncate(time.Second),
	}
}

func assertTokenSet(t *testing.T, want *auth.TokenSet, got auth.TokenSet) {
	t.Helper()
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.IDToken, got.IDToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	assert.True(t, want.Expiry.Equal(got.Expiry), "expiry: want %s got %s", want.Expiry, got.Expiry)
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("put then get", func(t *testing.T) {
				s, _ := b.new(t)
				ts := tokenSet("a1", time.Hour)

				id, err := s.Put(ctx, ts)
				require.NoError(t, err)
				assert.Len(t, id, 43)

				rec, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, id, rec.SessionID)
				assertTokenSet(t, ts, rec.TokenSet)
				assert.Equal(t, ts.Expiry.Add(testGrace).Unix(), rec.ExpiresAt)
			})

			t.Run("put generates distinct ids", func(t *testing.T) {
				s, _ := b.new(t)
				a, err := s.Put(ctx, tokenSet("a", time.Hour))
				require.NoError(t, err)
				c, err := s.Put(ctx, tokenSet("c", time.Hour))
				require.NoError(t, err)
				assert.NotEqual(t, a, c)
			})

			t.Run("missing key is absent", func(t *testing.T) {
				s, _ := b.new(t)
				rec, ok, err := s.Get(ctx, "nope")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Nil(t, rec)
			})

			t.Run("update replaces token set and extends expiry", func(t *testing.T) {
				s, _ := b.new(t)
				id, err := s.Put(ctx, tokenSet("old", time.Hour))
				require.NoError(t, err)

				next := tokenSet("new", 2*time.Hour)
				next.RefreshToken = ""
				require.NoError(t, s.Update(ctx, id, next))

				rec, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, ok)
				assertTokenSet(t, next, rec.TokenSet)
				assert.Equal(t, next.Expiry.Add(testGrace).Unix(), rec.ExpiresAt)
			})

			t.Run("update of missing key", func(t *testing.T) {
				s, _ := b.new(t)
				err := s.Update(ctx, "gone", tokenSet("x", time.Hour))
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("remove is idempotent", func(t *testing.T) {
				s, _ := b.new(t)
				id, err := s.Put(ctx, tokenSet("a", time.Hour))
				require.NoError(t, err)

				require.NoError(t, s.Remove(ctx, id))
				require.NoError(t, s.Remove(ctx, id))

				_, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				assert.False(t, ok)

				require.ErrorIs(t, s.Update(ctx, id, tokenSet("b", time.Hour)), ErrNotFound)
			})

			t.Run("expired record is absent", func(t *testing.T) {
				s, clock := b.new(t)
				id, err := s.Put(ctx, tokenSet("a", -time.Minute))
				require.NoError(t, err)

				later := time.Now().Add(testGrace + time.Minute)
				clock.now = func() time.Time { return later }

				_, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("update of an expired record", func(t *testing.T) {
				s, clock := b.new(t)
				id, err := s.Put(ctx, tokenSet("a", -time.Minute))
				require.NoError(t, err)

				later := time.Now().Add(testGrace + time.Minute)
				clock.now = func() time.Time { return later }

				require.ErrorIs(t, s.Update(ctx, id, tokenSet("b", 2*time.Hour)), ErrNotFound)

				_, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("token without expiry gets grace from now", func(t *testing.T) {
				s, _ := b.new(t)
				ts := tokenSet("a", 0)
				ts.Expiry = time.Time{}

				before := time.Now()
				id, err := s.Put(ctx, ts)
				require.NoError(t, err)

				rec, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.GreaterOrEqual(t, rec.ExpiresAt, before.Add(testGrace).Unix())
			})

			t.Run("ping", func(t *testing.T) {
				s, _ := b.new(t)
				require.NoError(t, s.Ping(ctx))
			})
		})
	}
}

func TestInsert_RetriesOnConflict(t *testing.T) {
	var seen []string
	id, err := insert(context.Background(), func(_ context.Context, sessionID string) error {
		seen = append(seen, sessionID)
		if len(seen) == 1 {
			return ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[1], id)
	assert.NotEqual(t, seen[0], seen[1])
}

func TestInsert_GivesUp(t *testing.T) {
	calls := 0
	_, err := insert(context.Background(), func(context.Context, string) error {
		calls++
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxPutAttempts, calls)
}

func TestInsert_BackendErrorIsNotRetried(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := insert(context.Background(), func(context.Context, string) error {
		calls++
		return storeError("put", boom)
	})
	require.ErrorIs(t, err, auth.ErrStore)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRedisStore_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "test", testGrace)
	t.Cleanup(func() { s.Close() })
	mr.Close()

	ctx := context.Background()
	_, _, err := s.Get(ctx, "x")
	require.ErrorIs(t, err, auth.ErrStore)
	_, err = s.Put(ctx, tokenSet("a", time.Hour))
	require.ErrorIs(t, err, auth.ErrStore)
	require.ErrorIs(t, s.Ping(ctx), auth.ErrStore)
}

func TestDynamoDBStore_BackendDown(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = errors.New("service unavailable")
	s := newDynamoDBStore(fake, "sessions", testGrace)

	ctx := context.Background()
	_, _, err := s.Get(ctx, "x")
	require.ErrorIs(t, err, auth.ErrStore)
	_, err = s.Put(ctx, tokenSet("a", time.Hour))
	require.ErrorIs(t, err, auth.ErrStore)
	require.ErrorIs(t, s.Update(ctx, "x", tokenSet("a", time.Hour)), auth.ErrStore)
	require.ErrorIs(t, s.Remove(ctx, "x"), auth.ErrStore)
}
