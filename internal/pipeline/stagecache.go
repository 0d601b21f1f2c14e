// internal/pipeline/stagecache.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"jobhunt-pipeline/internal/models"
)

// StageCache stores completed-stage outputs per run so that re-entering a
// stage after a transient failure re-runs only that stage. Cache misses and
// cache errors are never fatal: the stage simply runs again.
type StageCache interface {
	Get(ctx context.Context, runID string, stage models.Stage, out interface{}) (bool, error)
	Put(ctx context.Context, runID string, stage models.Stage, value interface{}) error
	Invalidate(ctx context.Context, runID string) error
}

func stageKey(runID string, stage models.Stage) string {
	return fmt.Sprintf("pipeline:run:%s:stage:%s", runID, stage)
}

// RedisStageCache mirrors stage outputs to Redis with a TTL.
type RedisStageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStageCache(client *redis.Client, ttl time.Duration) *RedisStageCache {
	return &RedisStageCache{client: client, ttl: ttl}
}

func (c *RedisStageCache) Get(ctx context.Context, runID string, stage models.Stage, out interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, stageKey(runID, stage)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisStageCache) Put(ctx context.Context, runID string, stage models.Stage, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, stageKey(runID, stage), raw, c.ttl).Err()
}

func (c *RedisStageCache) Invalidate(ctx context.Context, runID string) error {
	stages := []models.Stage{models.StageFinding, models.StageMatching, models.StageOutreach, models.StageTracking}
	keys := make([]string, 0, len(stages))
	for _, stage := range stages {
		keys = append(keys, stageKey(runID, stage))
	}
	return c.client.Del(ctx, keys...).Err()
}

// MemoryStageCache is an in-process StageCache used when Redis is not
// configured, and in tests.
type MemoryStageCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStageCache() *MemoryStageCache {
	return &MemoryStageCache{entries: make(map[string][]byte)}
}

func (c *MemoryStageCache) Get(_ context.Context, runID string, stage models.Stage, out interface{}) (bool, error) {
	c.mu.RLock()
	raw, ok := c.entries[stageKey(runID, stage)]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryStageCache) Put(_ context.Context, runID string, stage models.Stage, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[stageKey(runID, stage)] = raw
	c.mu.Unlock()
	return nil
}

func (c *MemoryStageCache) Invalidate(_ context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stage := range []models.Stage{models.StageFinding, models.StageMatching, models.StageOutreach, models.StageTracking} {
		delete(c.entries, stageKey(runID, stage))
	}
	return nil
}
