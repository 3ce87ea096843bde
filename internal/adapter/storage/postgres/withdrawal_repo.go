package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a withdrawal request within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (id, user_id, amount, currency, wallet_address, network,
		status, admin_notes, fee_transaction_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, w.Currency, w.WalletAddress, w.Network,
		w.Status, w.AdminNotes, w.FeeTransactionID, w.CreatedAt, w.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal request without locking.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT id, user_id, amount, currency, wallet_address, network,
		status, admin_notes, fee_transaction_id, created_at, processed_at
		FROM withdrawal_requests WHERE id = $1`

	return scanWithdrawal(r.pool.QueryRow(ctx, query, id), "get withdrawal request")
}

// GetByIDForUpdate fetches a withdrawal request with pessimistic locking.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT id, user_id, amount, currency, wallet_address, network,
		status, admin_notes, fee_transaction_id, created_at, processed_at
		FROM withdrawal_requests WHERE id = $1 FOR UPDATE`

	return scanWithdrawal(tx.QueryRow(ctx, query, id), "get withdrawal request for update")
}

// UpdateStatus persists the status, notes and processing time of a request.
// The row must still be pending; a concurrent transition makes this fail.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawal_requests SET status = $1, admin_notes = $2, processed_at = $3
		WHERE id = $4 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, w.Status, w.AdminNotes, w.ProcessedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending withdrawal request not found: %s", w.ID)
	}
	return nil
}

// List fetches withdrawal requests with filtering and pagination, newest first.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM withdrawal_requests %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawal requests: %w", err)
	}

	// Fetch page
	page := params.Page.Normalize()
	dataQuery := fmt.Sprintf(`SELECT id, user_id, amount, currency, wallet_address, network,
		status, admin_notes, fee_transaction_id, created_at, processed_at
		FROM withdrawal_requests %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	reqs := []domain.WithdrawalRequest{}
	for rows.Next() {
		w := domain.WithdrawalRequest{}
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.WalletAddress, &w.Network,
			&w.Status, &w.AdminNotes, &w.FeeTransactionID, &w.CreatedAt, &w.ProcessedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal request row: %w", err)
		}
		reqs = append(reqs, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal request rows: %w", err)
	}
	return reqs, total, nil
}

// CountByUser returns the number of withdrawal requests a user has made.
func (r *WithdrawalRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count withdrawal requests: %w", err)
	}
	return total, nil
}

func scanWithdrawal(row pgx.Row, op string) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.WalletAddress, &w.Network,
		&w.Status, &w.AdminNotes, &w.FeeTransactionID, &w.CreatedAt, &w.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
