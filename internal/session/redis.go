package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

const redisKeyPrefix = "dreamlink:session:"

// Redis is a redis-backed Store for multi-process deployments. Expiry is
// delegated to redis key TTLs.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the given redis URL and verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client, for tests.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)

// Issue creates a session under a fresh token. SetNX guards against the
// (unlikely) token collision.
func (r *Redis) Issue(ctx context.Context, userID, service, branch string) (Credentials, error) {
	challenge := crypto.Challenge(challengeLength)
	s := Session{
		UserID:        userID,
		Service:       service,
		Branch:        branch,
		ChallengeHash: crypto.MD5Hex(challenge),
		ExpiresAt:     time.Now().Add(r.ttl),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return Credentials{}, fmt.Errorf("session: marshal: %w", err)
	}

	for {
		token := crypto.AuthToken()
		ok, err := r.client.SetNX(ctx, redisKeyPrefix+token, data, r.ttl).Result()
		if err != nil {
			return Credentials{}, fmt.Errorf("session: store: %w", err)
		}
		if ok {
			return Credentials{Token: token, Challenge: challenge}, nil
		}
	}
}

// Get resolves a token for the given service.
func (r *Redis) Get(ctx context.Context, token, service string) (*Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: lookup: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	if s.Service != service {
		return nil, nil
	}
	return &s, nil
}

// Remove drops a session if present.
func (r *Redis) Remove(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}
