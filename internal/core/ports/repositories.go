package ports

import (
	"context"
	"errors"
	"time"

	"sodminer-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDuplicateKey is returned by repositories when a unique key already exists.
var ErrDuplicateKey = errors.New("duplicate key")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts the wallet unless one already exists for the user.
	// It reports whether a row was inserted.
	Create(ctx context.Context, wallet *domain.Wallet) (bool, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	// UpdateBalances writes every balance and accumulator column of wallet.
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	UpdateAddress(ctx context.Context, userID uuid.UUID, address string) error
}

// WalletTransactionRepository defines persistence operations for the ledger log.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	// DeleteFeeMatch removes one withdrawal_fee row for userID with the given
	// (negative) amount created at or after since. Used for requests that predate
	// the fee_transaction_id link.
	DeleteFeeMatch(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, since time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]domain.WalletTransaction, int64, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// WithdrawalRepository defines persistence operations for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, req *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, req *domain.WithdrawalRequest) error
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// SettingsRepository persists wallet settings as key/value rows.
type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, values map[string]string) error
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Page holds limit/offset pagination. Results are ordered newest first.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// WithdrawalListParams holds filter + pagination for listing withdrawal requests.
type WithdrawalListParams struct {
	UserID *uuid.UUID
	Status *domain.WithdrawalStatus
	Page   Page
}
