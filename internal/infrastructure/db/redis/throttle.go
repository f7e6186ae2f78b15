package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultFailureWindow = 15 * time.Minute

// LoginThrottle counts failed logins per identity in Redis.
// Key format: login_failures:<hex sha256 of identity>
type LoginThrottle struct {
	client      *redis.Client
	maxFailures int64
	window      time.Duration
}

// NewLoginThrottle locks an identity out once maxFailures failures fall
// within window. The window restarts with the first failure after expiry.
func NewLoginThrottle(client *redis.Client, maxFailures int, window time.Duration) *LoginThrottle {
	if window <= 0 {
		window = defaultFailureWindow
	}
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

// Blocked reports whether the identity has reached the failure limit.
func (t *LoginThrottle) Blocked(ctx context.Context, identity string) (bool, error) {
	n, err := t.client.Get(ctx, failureKey(identity)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("throttle check: %w", err)
	}
	return n >= t.maxFailures, nil
}

// RecordFailure increments the counter and starts the window on first use.
func (t *LoginThrottle) RecordFailure(ctx context.Context, identity string) error {
	key := failureKey(identity)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("throttle record: %w", err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identity string) error {
	return t.client.Del(ctx, failureKey(identity)).Err()
}

// failureKey hashes the identity so usernames never appear in Redis.
func failureKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "login_failures:" + hex.EncodeToString(sum[:])
}
