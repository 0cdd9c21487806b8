package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutorbase/core/constants"
	"tutorbase/core/logger"
	"tutorbase/modules/schedule/dto"
)

// ConflictCache keeps the per-organization unresolved-conflict listing in
// Redis. The TTL is short; writers invalidate eagerly so the cache is a
// read accelerator, not a source of truth.
type ConflictCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewConflictCache(rdb *redis.Client) *ConflictCache {
	return &ConflictCache{rdb: rdb, ttl: 30 * time.Second}
}

func (c *ConflictCache) key(organizationID uuid.UUID) string {
	return constants.RedisKeyConflictList + organizationID.String()
}

func (c *ConflictCache) Get(ctx context.Context, organizationID uuid.UUID) ([]dto.ConflictResponse, bool) {
	raw, err := c.rdb.Get(ctx, c.key(organizationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("ConflictCache:Get", "error", err)
		}
		return nil, false
	}
	var out []dto.ConflictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn("ConflictCache:Get", "error", err)
		return nil, false
	}
	return out, true
}

func (c *ConflictCache) Set(ctx context.Context, organizationID uuid.UUID, conflicts []dto.ConflictResponse) {
	raw, err := json.Marshal(conflicts)
	if err != nil {
		logger.Warn("ConflictCache:Set", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(organizationID), raw, c.ttl).Err(); err != nil {
		logger.Warn("ConflictCache:Set", "error", err)
	}
}

func (c *ConflictCache) Invalidate(ctx context.Context, organizationID uuid.UUID) {
	if err := c.rdb.Del(ctx, c.key(organizationID)).Err(); err != nil {
		logger.Warn("ConflictCache:Invalidate", "error", err)
	}
}
