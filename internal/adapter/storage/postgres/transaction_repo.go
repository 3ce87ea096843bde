package postgres

import (
	"context"
	"fmt"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.WalletTransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (id, user_id, type, amount, currency, description,
		payment_method, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.Type, t.Amount, t.Currency, t.Description,
		t.PaymentMethod, t.TransactionRef, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// Delete removes a ledger entry by id. It reports whether a row was removed.
func (r *TransactionRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM wallet_transactions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete wallet transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteFeeMatch removes the oldest withdrawal_fee entry matching user and amount
// created at or after since.
func (r *TransactionRepo) DeleteFeeMatch(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, since time.Time) (bool, error) {
	query := `DELETE FROM wallet_transactions WHERE id = (
		SELECT id FROM wallet_transactions
		WHERE user_id = $1 AND type = 'withdrawal_fee' AND amount = $2 AND created_at >= $3
		ORDER BY created_at ASC, id ASC LIMIT 1)`

	tag, err := tx.Exec(ctx, query, userID, amount, since)
	if err != nil {
		return false, fmt.Errorf("delete matching fee transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser fetches a page of a user's ledger, newest first, with the total count.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, page ports.Page) ([]domain.WalletTransaction, int64, error) {
	page = page.Normalize()

	total, err := r.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, type, amount, currency, description, payment_method, transaction_id, created_at
		FROM wallet_transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.WalletTransaction{}
	for rows.Next() {
		t := domain.WalletTransaction{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Currency, &t.Description,
			&t.PaymentMethod, &t.TransactionRef, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, total, nil
}

// CountByUser returns the number of ledger entries for a user.
func (r *TransactionRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count wallet transactions: %w", err)
	}
	return total, nil
}
