package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// ConfigsRepository abstracts webhook configuration storage. Ingress only
// reads it to resolve a display label; the management endpoints own writes.
type ConfigsRepository interface {
	Create(ctx context.Context, config *domain.WebhookConfig) error
	Get(ctx context.Context, id string) (*domain.WebhookConfig, error)
	List(ctx context.Context) ([]domain.WebhookConfig, error)
	Delete(ctx context.Context, id string) error
}

// MemoryConfigsRepository stores configs in memory for local development.
type MemoryConfigsRepository struct {
	mu      sync.RWMutex
	configs map[string]*domain.WebhookConfig
}

func NewMemoryConfigsRepository() *MemoryConfigsRepository {
	return &MemoryConfigsRepository{
		configs: make(map[string]*domain.WebhookConfig),
	}
}

func (r *MemoryConfigsRepository) Create(_ context.Context, config *domain.WebhookConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now().UTC()
	}
	r.configs[config.ID] = cloneConfig(config)
	return nil
}

func (r *MemoryConfigsRepository) Get(_ context.Context, id string) (*domain.WebhookConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConfig(config), nil
}

func (r *MemoryConfigsRepository) List(_ context.Context) ([]domain.WebhookConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]domain.WebhookConfig, 0, len(r.configs))
	for _, config := range r.configs {
		configs = append(configs, *cloneConfig(config))
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

func (r *MemoryConfigsRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.configs[id]; !ok {
		return ErrNotFound
	}
	delete(r.configs, id)
	return nil
}

func cloneConfig(config *domain.WebhookConfig) *domain.WebhookConfig {
	if config == nil {
		return nil
	}
	clone := *config
	return &clone
}
