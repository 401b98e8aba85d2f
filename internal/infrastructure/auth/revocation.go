package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RevocationList reports whether a token ID was revoked before expiry
// (logout, forced sign-out). The identity service writes the list.
type RevocationList interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// DefaultRevocationKeyPrefix is the key namespace shared with the identity service
const DefaultRevocationKeyPrefix = "token:blacklist:"

// RedisRevocationList reads revoked token IDs from Redis keys
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList creates a revocation list on an existing client
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	if keyPrefix == "" {
		keyPrefix = DefaultRevocationKeyPrefix
	}
	return &RedisRevocationList{client: client, keyPrefix: keyPrefix}
}

// IsRevoked checks for the revocation key of the token ID
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// NoRevocation accepts every token. Used when Redis is not configured.
type NoRevocation struct{}

// IsRevoked always reports false
func (NoRevocation) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}

var (
	_ RevocationList = (*RedisRevocationList)(nil)
	_ RevocationList = NoRevocation{}
)
