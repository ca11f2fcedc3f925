package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenCache holds short-lived registration and forgot-password credential
// hashes keyed by an opaque one-shot token.
type TokenCache struct {
	rdb redis.UniversalClient
}

func NewTokenCache(rdb redis.UniversalClient) *TokenCache { return &TokenCache{rdb: rdb} }

func (c *TokenCache) set(ctx context.Context, key string, mapping map[string]string, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, mapping)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *TokenCache) get(ctx context.Context, key string) (map[string]string, error) {
	h, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	return h, nil
}

func newToken() string { return strings.ReplaceAll(uuid.New().String(), "-", "") }

// SetRegistration stashes pending registration credentials; returns the
// verification token and its expiry instant.
func (c *TokenCache) SetRegistration(ctx context.Context, mapping map[string]string, ttl time.Duration) (string, time.Time, error) {
	token := newToken()
	if err := c.set(ctx, keyRegistrationToken(token), mapping, ttl); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().UTC().Add(ttl), nil
}

// Registration 未找到返回 (nil, nil)
func (c *TokenCache) Registration(ctx context.Context, token string) (map[string]string, error) {
	return c.get(ctx, keyRegistrationToken(token))
}

func (c *TokenCache) RemoveRegistration(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, keyRegistrationToken(token)).Err()
}

func (c *TokenCache) SetForgotPassword(ctx context.Context, mapping map[string]string, ttl time.Duration) (string, time.Time, error) {
	token := newToken()
	if err := c.set(ctx, keyForgotPasswordToken(token), mapping, ttl); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().UTC().Add(ttl), nil
}

func (c *TokenCache) ForgotPassword(ctx context.Context, token string) (map[string]string, error) {
	return c.get(ctx, keyForgotPasswordToken(token))
}

func (c *TokenCache) RemoveForgotPassword(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, keyForgotPasswordToken(token)).Err()
}
