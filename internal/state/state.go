package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Manager is the checkpoint store. Each pipeline stage persists its state
// under a stage name after every mutation so an interrupted run resumes
// from the last completed stage instead of from scratch. The pipeline is
// single-threaded, so no concurrent-writer guarantees are needed.
type Manager interface {
	Save(ctx context.Context, stage string, data any) error
	// Load decodes the checkpoint for stage into out. The second return is
	// false when no checkpoint exists.
	Load(ctx context.Context, stage string, out any) (bool, error)
	Clear(ctx context.Context, stage string) error
}

type redisManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisManager(redisClient *redis.Client) Manager {
	return &redisManager{
		redisClient: redisClient,
		keyPrefix:   "migrator:checkpoint:",
	}
}

func (m *redisManager) Save(ctx context.Context, stage string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", stage, err)
	}
	if err := m.redisClient.Set(ctx, m.keyPrefix+stage, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", stage, err)
	}
	return nil
}

func (m *redisManager) Load(ctx context.Context, stage string, out any) (bool, error) {
	val, err := m.redisClient.Get(ctx, m.keyPrefix+stage).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to load checkpoint %s: %w", stage, err)
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, fmt.Errorf("failed to decode checkpoint %s: %w", stage, err)
	}
	return true, nil
}

func (m *redisManager) Clear(ctx context.Context, stage string) error {
	if err := m.redisClient.Del(ctx, m.keyPrefix+stage).Err(); err != nil {
		return fmt.Errorf("failed to clear checkpoint %s: %w", stage, err)
	}
	return nil
}
