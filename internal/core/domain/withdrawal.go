package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultNetwork is used when a withdrawal request names no chain.
const DefaultNetwork = "TRC20"

// WithdrawalStatus represents the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// IsTerminal returns true if no further transition is allowed.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected
}

// WithdrawalRequest tracks a payout from creation (pending) to a terminal state.
type WithdrawalRequest struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         Currency         `json:"currency"`
	WalletAddress    string           `json:"wallet_address"`
	Network          string           `json:"network"`
	Status           WithdrawalStatus `json:"status"`
	AdminNotes       *string          `json:"admin_notes,omitempty"`
	FeeTransactionID *uuid.UUID       `json:"fee_transaction_id,omitempty"` // Links the withdrawal_fee log row
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
}

// CanTransitionTo returns true if the request may move to next.
func (r *WithdrawalRequest) CanTransitionTo(next WithdrawalStatus) bool {
	return r.Status == WithdrawalStatusPending && next.IsTerminal()
}
