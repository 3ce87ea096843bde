package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("ledger schema missing, run migrations")

// HealthCheck reports whether PostgreSQL is reachable and the ledger tables
// exist. A database that answers pings but was never migrated is unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.pool.Ping(ctx); err != nil {
		return err
	}

	var ready bool
	err := h.pool.QueryRow(ctx,
		`SELECT to_regclass('public.wallets') IS NOT NULL AND to_regclass('public.wallet_transactions') IS NOT NULL`,
	).Scan(&ready)
	if err != nil {
		return fmt.Errorf("check ledger schema: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "ledger_db"
}
