package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/login_attempt.lua
var loginAttemptScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	attemptScript *redis.Script
	releaseScript *redis.Script

	mu     sync.Mutex
	owners map[string]string
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		attemptScript: redis.NewScript(loginAttemptScript),
		releaseScript: redis.NewScript(releaseLockScript),
		owners:        map[string]string{},
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func adminSessionKey(token string) string {
	return fmt.Sprintf("admin_session:%s", token)
}

// CreateAdminSession stores an admin token for ttl.
func (c *Client) CreateAdminSession(ctx context.Context, token, adminID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, adminSessionKey(token), adminID, ttl).Err()
}

// AdminSession returns the admin id behind token, or "" when the token is
// unknown or expired.
func (c *Client) AdminSession(ctx context.Context, token string) (string, error) {
	id, err := c.rdb.Get(ctx, adminSessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// DeleteAdminSession revokes an admin token.
func (c *Client) DeleteAdminSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, adminSessionKey(token)).Err()
}

func loginAttemptKey(realm, subject string) string {
	return fmt.Sprintf("login_attempts:%s:%s", realm, subject)
}

// RegisterLoginAttempt counts one attempt for subject and returns the count
// within the current window. The window starts at the first attempt.
func (c *Client) RegisterLoginAttempt(ctx context.Context, realm, subject string, window time.Duration) (int64, error) {
	result, err := c.attemptScript.Run(ctx, c.rdb,
		[]string{loginAttemptKey(realm, subject)}, int64(window.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("login attempt script failed: %w", err)
	}

	attempts, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return attempts, nil
}

// ResetLoginAttempts clears the counter after a successful login.
func (c *Client) ResetLoginAttempts(ctx context.Context, realm, subject string) error {
	return c.rdb.Del(ctx, loginAttemptKey(realm, subject)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	owner := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), owner, ttl).Result()
	if err != nil || !ok {
		return ok, err
	}

	c.mu.Lock()
	c.owners[lockKey] = owner
	c.mu.Unlock()
	return true, nil
}

// ReleaseLock releases a lock taken by this client. A lock that expired and
// was taken by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	c.mu.Lock()
	owner, ok := c.owners[lockKey]
	delete(c.owners, lockKey)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, owner).Err(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
