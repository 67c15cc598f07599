package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"kintai/internal/legal/models"
)

const ruleKeyPrefix = "rule:"

// Resolver is what detection consumers depend on; Service and Cached both
// satisfy it.
type Resolver interface {
	Resolve(ctx context.Context, scope models.Scope, date time.Time) (*models.LegalRule, error)
}

// CacheMetrics receives hit/miss counts; wired to platform metrics in main.
type CacheMetrics interface {
	IncRuleCacheHit()
	IncRuleCacheMiss()
}

// Cached is a read-through Redis decorator over a Resolver. Rules are
// read-only during a batch run, so entries live for the configured TTL and
// are keyed by (company, office, job type, reason type, date). Cache failures
// degrade to the inner resolver; they never fail a lookup.
type Cached struct {
	inner   Resolver
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics CacheMetrics
}

// CachedOption configures a Cached resolver.
type CachedOption func(*Cached)

// WithCacheLogger sets a logger for cache diagnostics.
func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the hit/miss collector.
func WithCacheMetrics(m CacheMetrics) CachedOption {
	return func(c *Cached) {
		c.metrics = m
	}
}

// NewCached wraps a resolver with a Redis read-through cache.
func NewCached(inner Resolver, client *redis.Client, ttl time.Duration, opts ...CachedOption) *Cached {
	c := &Cached{inner: inner, client: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve serves from cache when possible. Unresolvable scopes are not
// cached: a missing rule is a configuration error the operator may fix
// mid-run.
func (c *Cached) Resolve(ctx context.Context, scope models.Scope, date time.Time) (*models.LegalRule, error) {
	key := cacheKey(scope, date)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var rule models.LegalRule
		if jsonErr := json.Unmarshal([]byte(raw), &rule); jsonErr == nil {
			if c.metrics != nil {
				c.metrics.IncRuleCacheHit()
			}
			return &rule, nil
		}
		// Corrupt entry: fall through to the store and overwrite.
	case !errors.Is(err, redis.Nil):
		if c.logger != nil {
			c.logger.WarnContext(ctx, "rule cache read failed", "error", err)
		}
	}

	if c.metrics != nil {
		c.metrics.IncRuleCacheMiss()
	}

	rule, err := c.inner.Resolve(ctx, scope, date)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(rule); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "rule cache write failed", "error", setErr)
		}
	}
	return rule, nil
}

func cacheKey(scope models.Scope, date time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s:%s:%s",
		ruleKeyPrefix,
		scope.CompanyID, scope.OfficeID, scope.JobType, scope.ReasonType,
		date.Format("2006-01-02"))
}
