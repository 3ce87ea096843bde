package ports

import (
	"context"
	"time"

	"sodminer-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService validates bearer tokens issued by the hosted auth provider.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher fans committed ledger changes out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// SettingsNotifier tells other instances that the wallet settings changed so
// they reload their cached copy.
type SettingsNotifier interface {
	Notify(ctx context.Context) error
}

// LedgerMetrics records ledger operation outcomes.
type LedgerMetrics interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
	AddVolume(op string, currency domain.Currency, amount decimal.Decimal)
}

// --- Service Ports (Business Logic) ---

// LedgerService defines the wallet ledger business logic.
type LedgerService interface {
	LoadSettings(ctx context.Context) error

	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// GetBalance is a soft read: it returns nil, nil when the wallet cannot be resolved.
	GetBalance(ctx context.Context, userID uuid.UUID, sel domain.BalanceSelector) (*domain.Balance, error)
	UpdateWalletAddress(ctx context.Context, userID uuid.UUID, address string) (*domain.Wallet, error)

	Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	RequestWithdrawal(ctx context.Context, req WithdrawalInput) (*WithdrawalResult, error)
	UpdateWithdrawalStatus(ctx context.Context, req WithdrawalStatusUpdate) (*WithdrawalStatusResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	PurchasePlan(ctx context.Context, req PlanPurchaseRequest) (*PurchaseResult, error)

	GetWalletSettings(ctx context.Context) (domain.WalletSettings, error)
	UpdateWalletSettings(ctx context.Context, values map[string]string) (domain.WalletSettings, error)

	GetWalletTransactions(ctx context.Context, userID uuid.UUID, page Page) ([]domain.WalletTransaction, int64, error)
	GetUserWithdrawalRequests(ctx context.Context, userID uuid.UUID, page Page) ([]domain.WithdrawalRequest, int64, error)
	GetWithdrawalRequestStatus(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawalRequests(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	GetWalletStats(ctx context.Context, userID uuid.UUID) (*domain.WalletStats, error)
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       domain.Currency
	PaymentMethod  string
	TransactionRef string // Optional external reference; enables idempotent retries
}

// DepositResult is returned by a successful (or replayed) deposit.
type DepositResult struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Reference     string          `json:"reference"`
	Currency      domain.Currency `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// WithdrawalInput holds input for a withdrawal request.
type WithdrawalInput struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Currency      domain.Currency
	WalletAddress string
	Network       string
}

// WithdrawalResult is returned after a withdrawal request is accepted.
type WithdrawalResult struct {
	RequestID      uuid.UUID       `json:"request_id"`
	ProcessingTime string          `json:"processing_time"`
	Fee            decimal.Decimal `json:"fee"`
	TotalDebited   decimal.Decimal `json:"total_debited"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// WithdrawalStatusUpdate holds an admin's decision on a pending request.
type WithdrawalStatusUpdate struct {
	RequestID  uuid.UUID
	Status     domain.WithdrawalStatus
	AdminNotes *string
}

// WithdrawalStatusResult is returned after a status transition.
type WithdrawalStatusResult struct {
	RequestID uuid.UUID               `json:"request_id"`
	Status    domain.WithdrawalStatus `json:"status"`
	Refunded  decimal.Decimal         `json:"refunded"`
}

// TransferRequest holds input for a wallet-to-wallet transfer.
type TransferRequest struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Amount      decimal.Decimal
	Currency    domain.Currency
	Description string
}

// TransferResult is returned after a transfer commits.
type TransferResult struct {
	SentTransactionID     uuid.UUID       `json:"sent_transaction_id"`
	ReceivedTransactionID uuid.UUID       `json:"received_transaction_id"`
	Currency              domain.Currency `json:"currency"`
	Amount                decimal.Decimal `json:"amount"`
	SenderBalance         decimal.Decimal `json:"sender_balance"`
}

// PlanPurchaseRequest holds input for buying a mining plan with USDT.
type PlanPurchaseRequest struct {
	UserID    uuid.UUID
	PlanID    string
	PlanName  string
	PlanPrice decimal.Decimal
}

// PurchaseResult is returned after a plan purchase.
type PurchaseResult struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// AuditService records audited actions asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
