package cache

import (
	"context"
	"testing"
	"time"

	"parkly/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingKey(t *testing.T) {
	assert.Equal(t, "ext:pending:abc", pendingKey("abc"))
}

func TestNewPendingExtensionStore_DefaultTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.Equal(t, 30*time.Minute, newPendingExtensionStore(client, 0).ttl)
	assert.Equal(t, 5*time.Minute, newPendingExtensionStore(client, 5*time.Minute).ttl)
}

func TestNewPendingExtensionStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewPendingExtensionStore(ctx, Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"before window closes", now.Add(time.Minute), false},
		{"at window close", now, true},
		{"after window closes", now.Add(-time.Minute), true},
		{"no expiry recorded", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.PendingExtension{Token: "tok", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, isExpired(p, now))
		})
	}
}
