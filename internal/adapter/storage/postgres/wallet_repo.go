package postgres

import (
	"context"
	"errors"
	"fmt"

	"sodminer-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a zero wallet unless the user already has one.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (user_id, usdt_balance, sod_balance, pending_withdrawal,
		total_deposited_usdt, total_withdrawn_usdt, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		w.UserID, w.USDTBalance, w.SODBalance, w.PendingWithdrawal,
		w.TotalDepositedUSDT, w.TotalWithdrawnUSDT, w.WalletAddress,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByUserID fetches a wallet without locking.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, usdt_balance, sod_balance, pending_withdrawal,
		total_deposited_usdt, total_withdrawn_usdt, wallet_address, created_at, updated_at
		FROM wallets WHERE user_id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, userID), "get wallet by user")
}

// GetByUserIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, usdt_balance, sod_balance, pending_withdrawal,
		total_deposited_usdt, total_withdrawn_usdt, wallet_address, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`

	return scanWallet(tx.QueryRow(ctx, query, userID), "get wallet for update")
}

// UpdateBalances writes the balance and accumulator columns within a transaction.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET usdt_balance = $1, sod_balance = $2, pending_withdrawal = $3,
		total_deposited_usdt = $4, total_withdrawn_usdt = $5, updated_at = NOW()
		WHERE user_id = $6`

	tag, err := tx.Exec(ctx, query,
		w.USDTBalance, w.SODBalance, w.PendingWithdrawal,
		w.TotalDepositedUSDT, w.TotalWithdrawnUSDT, w.UserID,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.UserID)
	}
	return nil
}

// UpdateAddress sets the payout address shown on the wallet.
func (r *WalletRepo) UpdateAddress(ctx context.Context, userID uuid.UUID, address string) error {
	query := `UPDATE wallets SET wallet_address = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := r.pool.Exec(ctx, query, address, userID)
	if err != nil {
		return fmt.Errorf("update wallet address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.UserID, &w.USDTBalance, &w.SODBalance, &w.PendingWithdrawal,
		&w.TotalDepositedUSDT, &w.TotalWithdrawnUSDT, &w.WalletAddress,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
