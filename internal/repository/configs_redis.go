package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisConfigKeyPrefix = "webhook:config:"
	redisConfigIndexKey  = "webhook:configs"
)

type RedisConfigsConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisConfigsRepository keeps each config in a hash plus a set index, the
// key-value layout the extension's sync storage used.
type RedisConfigsRepository struct {
	client *redis.Client
}

func NewRedisConfigsRepository(ctx context.Context, cfg RedisConfigsConfig) (*RedisConfigsRepository, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisConfigsRepository{client: client}, nil
}

func (r *RedisConfigsRepository) Close() error {
	return r.client.Close()
}

func (r *RedisConfigsRepository) Create(ctx context.Context, config *domain.WebhookConfig) error {
	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now().UTC()
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, redisConfigKeyPrefix+config.ID, map[string]any{
		"id":         config.ID,
		"name":       config.Name,
		"ai_model":   config.AIModel,
		"created_at": config.CreatedAt.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, redisConfigIndexKey, config.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store webhook config: %w", err)
	}
	return nil
}

func (r *RedisConfigsRepository) Get(ctx context.Context, id string) (*domain.WebhookConfig, error) {
	values, err := r.client.HGetAll(ctx, redisConfigKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("load webhook config: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return configFromHash(values)
}

func (r *RedisConfigsRepository) List(ctx context.Context) ([]domain.WebhookConfig, error) {
	ids, err := r.client.SMembers(ctx, redisConfigIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list webhook config ids: %w", err)
	}

	configs := make([]domain.WebhookConfig, 0, len(ids))
	for _, id := range ids {
		config, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Stale index entry; skip it.
				continue
			}
			return nil, err
		}
		configs = append(configs, *config)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

func (r *RedisConfigsRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.client.Del(ctx, redisConfigKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete webhook config: %w", err)
	}
	if err := r.client.SRem(ctx, redisConfigIndexKey, id).Err(); err != nil {
		return fmt.Errorf("unindex webhook config: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func configFromHash(values map[string]string) (*domain.WebhookConfig, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, values["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse webhook config created_at: %w", err)
	}
	return &domain.WebhookConfig{
		ID:        values["id"],
		Name:      values["name"],
		AIModel:   values["ai_model"],
		CreatedAt: createdAt,
	}, nil
}
