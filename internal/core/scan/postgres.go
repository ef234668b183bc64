package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/infrastructure/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository Postgres 儲存
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository 連線並建立資料表
func NewPostgresRepository(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresRepository{db: db}
	if err := r.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS menu_scans (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			image_url TEXT NOT NULL,
			dishes JSONB NOT NULL,
			model TEXT NOT NULL,
			processing_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_menu_scans_user_created ON menu_scans (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT PRIMARY KEY,
			preferences JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (r *PostgresRepository) SaveScan(ctx context.Context, scan *menu.MenuScan) error {
	if err := prepareScan(scan); err != nil {
		return err
	}
	dishes, err := json.Marshal(scan.Dishes)
	if err != nil {
		return fmt.Errorf("failed to encode dishes: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO menu_scans (id, user_id, image_url, dishes, model, processing_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, scan.ID, scan.UserID, scan.ImageURL, dishes, scan.Model, scan.ProcessingMs, scan.CreatedAt, scan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListScans(ctx context.Context, userID string, limit int) ([]menu.MenuScan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, image_url, dishes, model, processing_ms, created_at, updated_at
		FROM menu_scans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []menu.MenuScan{}
	for rows.Next() {
		var (
			s      menu.MenuScan
			dishes []byte
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.ImageURL, &dishes, &s.Model, &s.ProcessingMs, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(dishes, &s.Dishes); err != nil {
			return nil, fmt.Errorf("failed to decode dishes of scan %s: %w", s.ID, err)
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

func (r *PostgresRepository) GetPreferences(ctx context.Context, userID string) (menu.UserPreferences, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT preferences FROM user_preferences WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menu.UserPreferences{}, ErrNotFound
		}
		return menu.UserPreferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	var prefs menu.UserPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return menu.UserPreferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

func (r *PostgresRepository) SavePreferences(ctx context.Context, userID string, prefs menu.UserPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO user_preferences (user_id, preferences, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = now()
	`, userID, raw)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}
