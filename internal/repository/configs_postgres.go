package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConfigsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresConfigsRepository(ctx context.Context, databaseURL string) (*PostgresConfigsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	repo := &PostgresConfigsRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresConfigsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresConfigsRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS webhook_configs (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			ai_model   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure webhook_configs schema: %w", err)
	}
	return nil
}

func (r *PostgresConfigsRepository) Create(ctx context.Context, config *domain.WebhookConfig) error {
	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_configs (id, name, ai_model, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, ai_model = EXCLUDED.ai_model
	`, config.ID, config.Name, config.AIModel, config.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook config: %w", err)
	}
	return nil
}

func (r *PostgresConfigsRepository) Get(ctx context.Context, id string) (*domain.WebhookConfig, error) {
	var config domain.WebhookConfig
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, ai_model, created_at
		FROM webhook_configs
		WHERE id = $1
	`, id).Scan(&config.ID, &config.Name, &config.AIModel, &config.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select webhook config: %w", err)
	}
	return &config, nil
}

func (r *PostgresConfigsRepository) List(ctx context.Context) ([]domain.WebhookConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, ai_model, created_at
		FROM webhook_configs
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list webhook configs: %w", err)
	}
	defer rows.Close()

	configs := make([]domain.WebhookConfig, 0)
	for rows.Next() {
		var config domain.WebhookConfig
		if err := rows.Scan(&config.ID, &config.Name, &config.AIModel, &config.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook config: %w", err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook configs: %w", err)
	}
	return configs, nil
}

func (r *PostgresConfigsRepository) Delete(ctx context.Context, id string) error {
	command, err := r.pool.Exec(ctx, `DELETE FROM webhook_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook config: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
