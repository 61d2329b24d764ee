package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository reads operator-tunable settings. A missing key is
// (nil, nil); the settings service supplies defaults.
type SettingsRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *SettingsRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.queryer().QueryRow(ctx, `
SELECT value FROM global_settings WHERE key = $1
`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting. Used by operational tooling and tests; the
// lifecycle engine itself only reads.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO global_settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
