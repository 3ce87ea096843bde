package postgres

import (
	"context"
	"fmt"
	"sort"
)

// SettingsRepo implements ports.SettingsRepository over the wallet_settings key/value table.
type SettingsRepo struct {
	pool Pool
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(pool Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// GetAll returns every stored setting.
func (r *SettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM wallet_settings`)
	if err != nil {
		return nil, fmt.Errorf("list wallet settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan wallet setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet settings: %w", err)
	}
	return values, nil
}

// Upsert writes the given keys in one transaction so a partial update is never visible.
func (r *SettingsRepo) Upsert(ctx context.Context, values map[string]string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := `INSERT INTO wallet_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	for _, k := range keys {
		if _, err := tx.Exec(ctx, query, k, values[k]); err != nil {
			return fmt.Errorf("upsert wallet setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settings tx: %w", err)
	}
	return nil
}
