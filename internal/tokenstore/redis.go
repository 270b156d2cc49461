package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string whose key TTL matches the
// record expiry, so Redis does the reaping.
type RedisStore struct {
	client *redis.Client
	prefix string
	expiry expiry
}

func NewRedisStore(cfg config.RedisConfig, grace time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg.KeyPrefix, grace), nil
}

func newRedisStore(client *redis.Client, prefix string, grace time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, expiry: newExpiry(grace)}
}

func (rs *RedisStore) key(sessionID string) string {
	return rs.prefix + ":session:" + sessionID
}

func (rs *RedisStore) Put(ctx context.Context, tokenSet *auth.TokenSet) (string, error) {
	return insert(ctx, func(ctx context.Context, sessionID string) error {
		data, ttl, err := rs.encode(sessionID, tokenSet)
		if err != nil {
			return err
		}

		created, err := rs.client.SetNX(ctx, rs.key(sessionID), data, ttl).Result()
		if err != nil {
			return storeError("put", err)
		}
		if !created {
			return ErrConflict
		}
		return nil
	})
}

func (rs *RedisStore) Get(ctx context.Context, sessionID string) (*Record, bool, error) {
	data, err := rs.client.Get(ctx, rs.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, storeError("get", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, storeError("get", err)
	}

	if rec.Expired(rs.expiry.now()) {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (rs *RedisStore) Update(ctx context.Context, sessionID string, tokenSet *auth.TokenSet) error {
	data, ttl, err := rs.encode(sessionID, tokenSet)
	if err != nil {
		return err
	}

	updated, err := updateLiveScript.Run(ctx, rs.client, []string{rs.key(sessionID)},
		data, rs.expiry.now().Unix(), ttl.Milliseconds()).Int()
	if err != nil {
		return storeError("update", err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// updateLiveScript replaces a record only while its stored expires_at is still
// ahead of ARGV[2]. A key that has outlived its record but not its Redis TTL
// counts as missing.
//
// KEYS[1] = record key
// ARGV[1] = encoded record
// ARGV[2] = current unix time
// ARGV[3] = TTL in milliseconds
var updateLiveScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return 0
end
local ok, rec = pcall(cjson.decode, data)
if not ok or type(rec) ~= "table" then
	return 0
end
local expiresAt = tonumber(rec.expires_at)
if expiresAt == nil or expiresAt <= tonumber(ARGV[2]) then
	return 0
end
local ttlMs = tonumber(ARGV[3])
if ttlMs > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttlMs)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (rs *RedisStore) Remove(ctx context.Context, sessionID string) error {
	if err := rs.client.Del(ctx, rs.key(sessionID)).Err(); err != nil {
		return storeError("remove", err)
	}
	return nil
}

func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) encode(sessionID string, tokenSet *auth.TokenSet) ([]byte, time.Duration, error) {
	expiresAt := rs.expiry.expiresAt(tokenSet)

	data, err := json.Marshal(Record{
		SessionID: sessionID,
		TokenSet:  *tokenSet,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, expiresAt.Sub(rs.expiry.now()), nil
}
