package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"voyago/guide-app/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Default TTL for cached guide documents.
const defaultGuideTTL = 5 * time.Minute

// GuideCache is a read-through cache for guide documents keyed by hex ID.
// Misses and backend failures both read as "not cached"; the cache is never
// load-bearing for correctness.
type GuideCache interface {
	Get(ctx context.Context, guideID string) (*domain.Guide, bool)
	Set(ctx context.Context, guide *domain.Guide)
	Invalidate(ctx context.Context, guideID string)
}

// redisGuideCache implements GuideCache on top of Redis with JSON values.
type redisGuideCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuideCache creates a guide cache on an already-connected client.
func NewRedisGuideCache(client *redis.Client, ttl time.Duration) GuideCache {
	if ttl <= 0 {
		ttl = defaultGuideTTL
	}
	return &redisGuideCache{client: client, ttl: ttl}
}

// Connect opens a Redis connection and verifies it with a ping.
func Connect(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func guideKey(guideID string) string {
	return "guide:" + guideID
}

func (c *redisGuideCache) Get(ctx context.Context, guideID string) (*domain.Guide, bool) {
	raw, err := c.client.Get(ctx, guideKey(guideID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: guide cache get %s: %v", guideID, err)
		}
		return nil, false
	}

	var guide domain.Guide
	if err := json.Unmarshal(raw, &guide); err != nil {
		// Stale or corrupt entry; drop it and fall through to the store.
		c.Invalidate(ctx, guideID)
		return nil, false
	}
	return &guide, true
}

func (c *redisGuideCache) Set(ctx context.Context, guide *domain.Guide) {
	raw, err := json.Marshal(guide)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, guideKey(guide.ID.Hex()), raw, c.ttl).Err(); err != nil {
		log.Printf("WARN: guide cache set %s: %v", guide.ID.Hex(), err)
	}
}

func (c *redisGuideCache) Invalidate(ctx context.Context, guideID string) {
	if err := c.client.Del(ctx, guideKey(guideID)).Err(); err != nil {
		log.Printf("WARN: guide cache invalidate %s: %v", guideID, err)
	}
}
