package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"parkly/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	pendingExtensionPrefix = "ext:pending:"
	pendingExpiryIndex     = "ext:pending:expiry"

	// entries outlive their confirmation window so the expiry sweep can still void them
	pendingRetention = 24 * time.Hour
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	PendingTTL  time.Duration
	DialTimeout time.Duration
}

// PendingExtensionStore keeps extensions awaiting card holder confirmation. Get hides an
// entry once its TTL runs out; ListExpired hands it to the sweep until it is deleted.
type PendingExtensionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewPendingExtensionStore(ctx context.Context, cfg Config) (*PendingExtensionStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newPendingExtensionStore(rdb, cfg.PendingTTL), nil
}

func newPendingExtensionStore(client *redis.Client, ttl time.Duration) *PendingExtensionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PendingExtensionStore{client: client, ttl: ttl, now: time.Now}
}

func pendingKey(token string) string {
	return pendingExtensionPrefix + token
}

func (s *PendingExtensionStore) Save(ctx context.Context, p *models.PendingExtension) error {
	p.ExpiresAt = s.now().Add(s.ttl)
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending extension: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pendingKey(p.Token), data, s.ttl+pendingRetention)
		pipe.ZAdd(ctx, pendingExpiryIndex, redis.Z{Score: float64(p.ExpiresAt.Unix()), Member: p.Token})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store pending extension: %w", err)
	}
	return nil
}

// Get returns nil when the token is unknown or expired
func (s *PendingExtensionStore) Get(ctx context.Context, token string) (*models.PendingExtension, error) {
	p, err := s.load(ctx, token)
	if err != nil || p == nil {
		return nil, err
	}
	if isExpired(p, s.now()) {
		return nil, nil
	}
	return p, nil
}

func (s *PendingExtensionStore) load(ctx context.Context, token string) (*models.PendingExtension, error) {
	data, err := s.client.Get(ctx, pendingKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var p models.PendingExtension
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid pending extension in cache: %w", err)
	}
	return &p, nil
}

// ListExpired returns up to limit entries whose confirmation window closed before now
func (s *PendingExtensionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.PendingExtension, error) {
	tokens, err := s.client.ZRangeByScore(ctx, pendingExpiryIndex, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired extensions: %w", err)
	}

	expired := make([]models.PendingExtension, 0, len(tokens))
	for _, token := range tokens {
		p, err := s.load(ctx, token)
		if err != nil {
			return nil, err
		}
		if p == nil {
			// the entry outlived its retention; nothing left to release
			if err := s.client.ZRem(ctx, pendingExpiryIndex, token).Err(); err != nil {
				return nil, fmt.Errorf("failed to drop stale expiry entry: %w", err)
			}
			continue
		}
		expired = append(expired, *p)
	}
	return expired, nil
}

func (s *PendingExtensionStore) Delete(ctx context.Context, token string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingKey(token))
		pipe.ZRem(ctx, pendingExpiryIndex, token)
		return nil
	})
	return err
}

func isExpired(p *models.PendingExtension, now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Ping reports whether Redis is reachable
func (s *PendingExtensionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *PendingExtensionStore) Close() error {
	return s.client.Close()
}
