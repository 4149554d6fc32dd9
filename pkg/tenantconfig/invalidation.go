package tenantconfig

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// invalidationChannel is the Redis pub/sub channel every replica's cache
// subscribes to so that a config write on one replica evicts the stale entry
// everywhere else.
const invalidationChannel = "care:tenantconfig:invalidate"

type invalidationMessage struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

// RedisInvalidator publishes and subscribes to tenant-config invalidation
// events across replicas so that no replica serves a stale TenantCareConfig
// past a write on another replica.
type RedisInvalidator struct {
	client *redis.Client
	cache  *Cache
	logger *slog.Logger
}

// NewRedisInvalidator wires cache to the given Redis client for cross-replica
// invalidation. Call Start to begin subscribing.
func NewRedisInvalidator(client *redis.Client, cache *Cache, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{client: client, cache: cache, logger: logger}
}

// Publish invalidates tenantID locally and notifies every other subscribed
// replica. Call this after any write to a tenant's configuration.
func (r *RedisInvalidator) Publish(ctx context.Context, tenantID uuid.UUID) error {
	r.cache.Invalidate(tenantID)

	payload, err := json.Marshal(invalidationMessage{TenantID: tenantID})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, invalidationChannel, payload).Err()
}

// Start subscribes to the invalidation channel and evicts cache entries as
// messages from other replicas arrive. It runs until ctx is cancelled.
func (r *RedisInvalidator) Start(ctx context.Context) {
	sub := r.client.Subscribe(ctx, invalidationChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m invalidationMessage
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					r.logger.Warn("tenantconfig: malformed invalidation message", "error", err)
					continue
				}
				r.cache.Invalidate(m.TenantID)
			}
		}
	}()
}
