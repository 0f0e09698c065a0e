package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "auth:blacklist"

// TokenBlacklist defines the interface for revoked access tokens
type TokenBlacklist interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	Contains(ctx context.Context, token string) (bool, error)
}

type tokenBlacklist struct {
	client *redis.Client
}

// NewTokenBlacklist creates a Redis-backed TokenBlacklist
func NewTokenBlacklist(client *redis.Client) TokenBlacklist {
	return &tokenBlacklist{client: client}
}

// Add revokes token until it would have expired anyway
func (b *tokenBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := b.client.Set(ctx, blacklistKey(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	return nil
}

// Contains reports whether token has been revoked
func (b *tokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	err := b.client.Get(ctx, blacklistKey(token)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}

	return true, nil
}

// keys hold a digest of the token, never the token itself
func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s:%s", blacklistKeyPrefix, hex.EncodeToString(sum[:]))
}
