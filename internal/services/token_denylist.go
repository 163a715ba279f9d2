package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trackwell/issuetracker/internal/config"
)

// TokenDenylist remembers access tokens revoked before they expire, keyed
// by their jti.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(cfg *config.RedisConfig) (*RedisDenylist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisDenylistWithClient(client), nil
}

func NewRedisDenylistWithClient(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "denylist:"}
}

func (d *RedisDenylist) key(jti string) string {
	return d.prefix + jti
}

// Revoke stores jti until the token would have expired anyway. Already
// expired tokens are not stored.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check access token: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDenylist) Close() error {
	return d.client.Close()
}

// noopDenylist is used without Redis; access tokens then live until expiry.
type noopDenylist struct{}

func (noopDenylist) Revoke(context.Context, string, time.Time) error { return nil }
func (noopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// NewTokenDenylist picks the Redis denylist when Redis is configured and
// reachable, otherwise a no-op one.
func NewTokenDenylist(cfg *config.RedisConfig) TokenDenylist {
	if !cfg.Enabled {
		return noopDenylist{}
	}
	d, err := NewRedisDenylist(cfg)
	if err != nil {
		LogWarning("Auth", "Denylist", "redis unavailable, access tokens cannot be revoked early: "+err.Error(), nil, "", "", nil)
		return noopDenylist{}
	}
	return d
}
