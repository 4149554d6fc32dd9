// Package tenantconfig caches TenantCareConfig lookups (§4.E): a TTL- and
// capacity-bounded in-memory map in front of the store, with fallback to
// environment-derived configuration and cross-replica invalidation over
// Redis pub/sub.
package tenantconfig

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
)

// ConfigLoader is the narrow subset of store.Store the cache needs.
type ConfigLoader interface {
	LoadCareConfig(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error)
}

// EnvDefaults supplies the fallback configuration used when the store errors
// or has no row for a tenant.
type EnvDefaults struct {
	WebhookBaseURL    string
	IsEnabled         bool
	StateWriteEnabled bool
	ShadowMode        bool
	WebhookTimeoutMS  int
	WebhookMaxRetries int
}

type entry struct {
	config    care.TenantCareConfig
	expiresAt time.Time
	elem      *list.Element
}

// Cache is a single-writer, TTL- and capacity-bounded cache of tenant
// configuration, mirroring the teacher's mutex-guarded in-memory map
// (pkg/session.Manager) with TTL and LRU eviction layered on top.
type Cache struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*entry
	order    *list.List // front = most recently inserted/touched
	ttl      time.Duration
	capacity int

	loader ConfigLoader
	env    EnvDefaults

	metrics *metrics.Registry
}

// New constructs a Cache with the given TTL and maximum entry count. Zero
// values fall back to the spec defaults (60s TTL, 500 entries).
func New(loader ConfigLoader, env EnvDefaults, ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if capacity <= 0 {
		capacity = 500
	}
	return &Cache{
		entries:  make(map[uuid.UUID]*entry),
		order:    list.New(),
		ttl:      ttl,
		capacity: capacity,
		loader:   loader,
		env:      env,
	}
}

// WithMetrics attaches the Prometheus registry the cache reports
// cache_hits_total and cache_misses_total against. Leaving this unset is
// safe; m is nil-checked before use.
func (c *Cache) WithMetrics(m *metrics.Registry) *Cache {
	c.metrics = m
	return c
}

// Get returns the effective TenantCareConfig for tenantID: a cache hit if
// present and fresh, otherwise a store load with fallback to environment
// defaults on miss or error. The resolved value is cached either way.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error) {
	if cfg, ok := c.lookup(tenantID); ok {
		if c.metrics != nil {
			c.metrics.TenantConfigCacheHits.Inc()
		}
		return cfg, nil
	}
	if c.metrics != nil {
		c.metrics.TenantConfigCacheMiss.Inc()
	}

	cfg, err := c.loader.LoadCareConfig(ctx, tenantID)
	if err != nil {
		cfg = c.envConfig(tenantID)
	}
	cfg = resolveEffective(cfg, c.env.WebhookBaseURL)

	c.insert(tenantID, cfg)
	return cfg, nil
}

func (c *Cache) lookup(tenantID uuid.UUID) (care.TenantCareConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[tenantID]
	if !ok {
		return care.TenantCareConfig{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(tenantID)
		return care.TenantCareConfig{}, false
	}
	c.order.MoveToFront(e.elem)
	return e.config, true
}

// insert stores cfg for tenantID, evicting the least recently used entry
// first if the cache is at capacity. Re-inserting an existing key moves it to newest.
func (c *Cache) insert(tenantID uuid.UUID, cfg care.TenantCareConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[tenantID]; ok {
		c.order.Remove(existing.elem)
		delete(c.entries, tenantID)
	} else if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	elem := c.order.PushFront(tenantID)
	c.entries[tenantID] = &entry{
		config:    cfg,
		expiresAt: time.Now().Add(c.ttl),
		elem:      elem,
	}
}

func (c *Cache) evictOldestLocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	tenantID := oldest.Value.(uuid.UUID)
	c.order.Remove(oldest)
	delete(c.entries, tenantID)
}

// Invalidate drops the cached entry for tenantID, if any.
func (c *Cache) Invalidate(tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tenantID)
}

func (c *Cache) removeLocked(tenantID uuid.UUID) {
	e, ok := c.entries[tenantID]
	if !ok {
		return
	}
	c.order.Remove(e.elem)
	delete(c.entries, tenantID)
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]*entry)
	c.order.Init()
}

// Len reports the current number of cached entries, mainly for tests and
// metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) envConfig(tenantID uuid.UUID) care.TenantCareConfig {
	return care.TenantCareConfig{
		TenantID:          tenantID,
		IsEnabled:         c.env.IsEnabled,
		StateWriteEnabled: c.env.StateWriteEnabled,
		ShadowMode:        c.env.ShadowMode,
		WebhookTimeoutMS:  c.env.WebhookTimeoutMS,
		WebhookMaxRetries: c.env.WebhookMaxRetries,
		Source:            care.ConfigSourceEnvironment,
	}
}

// resolveEffective composes the effective webhook URL when absent but a
// workflow_id is present, and recomputes is_enabled from both the enabled
// flag and the resolved URL (§4.E).
func resolveEffective(cfg care.TenantCareConfig, baseURL string) care.TenantCareConfig {
	if cfg.WebhookURL == "" && cfg.WorkflowID != "" && baseURL != "" {
		cfg.WebhookURL = fmt.Sprintf("%s/%s", trimTrailingSlash(baseURL), cfg.WorkflowID)
	}
	cfg.IsEnabled = cfg.IsEnabled && cfg.WebhookURL != ""
	return cfg
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
