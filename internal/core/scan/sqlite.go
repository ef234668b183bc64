package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"menu-analyzer/internal/core/menu"
)

// 固定長度的 UTC 時間，字串排序即時間排序
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository 本機開發用的 SQLite 儲存
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository 開啟資料庫並建立資料表
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: 每條連線都是獨立的資料庫
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS menu_scans (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        image_url TEXT NOT NULL,
        dishes TEXT NOT NULL,
        model TEXT NOT NULL,
        processing_ms INTEGER NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        seq INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_menu_scans_user_created ON menu_scans(user_id, created_at DESC);

    CREATE TABLE IF NOT EXISTS user_preferences (
        user_id TEXT PRIMARY KEY,
        preferences TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );
    `
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveScan(ctx context.Context, scan *menu.MenuScan) error {
	if err := prepareScan(scan); err != nil {
		return err
	}
	dishes, err := json.Marshal(scan.Dishes)
	if err != nil {
		return fmt.Errorf("failed to encode dishes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO menu_scans (id, user_id, image_url, dishes, model, processing_ms, created_at, updated_at, seq)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM menu_scans))
    `, scan.ID, scan.UserID, scan.ImageURL, string(dishes), scan.Model, scan.ProcessingMs,
		scan.CreatedAt.UTC().Format(timeLayout), scan.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListScans(ctx context.Context, userID string, limit int) ([]menu.MenuScan, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, user_id, image_url, dishes, model, processing_ms, created_at, updated_at
        FROM menu_scans
        WHERE user_id = ?
        ORDER BY created_at DESC, seq DESC
        LIMIT ?
    `, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []menu.MenuScan{}
	for rows.Next() {
		var (
			s                  menu.MenuScan
			dishes             string
			createdAt, updated string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.ImageURL, &dishes, &s.Model, &s.ProcessingMs, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(dishes), &s.Dishes); err != nil {
			return nil, fmt.Errorf("failed to decode dishes of scan %s: %w", s.ID, err)
		}
		s.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		s.UpdatedAt, _ = time.Parse(timeLayout, updated)
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context, userID string) (menu.UserPreferences, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT preferences FROM user_preferences WHERE user_id = ?`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return menu.UserPreferences{}, ErrNotFound
		}
		return menu.UserPreferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	var prefs menu.UserPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return menu.UserPreferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, userID string, prefs menu.UserPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO user_preferences (user_id, preferences, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET preferences = excluded.preferences, updated_at = excluded.updated_at
    `, userID, string(raw), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
