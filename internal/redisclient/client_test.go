package redisclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "admin_session:abc", adminSessionKey("abc"))
	assert.Equal(t, "login_attempts:admin:root", loginAttemptKey("admin", "root"))
}

func TestScriptsEmbedded(t *testing.T) {
	assert.Contains(t, loginAttemptScript, "INCR")
	assert.Contains(t, releaseLockScript, "DEL")
}

func TestReleaseUnownedLockIsNoop(t *testing.T) {
	c := &Client{owners: map[string]string{}}
	assert.NoError(t, c.ReleaseLock(context.Background(), "ingest"))
}
