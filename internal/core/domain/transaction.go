package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance movement recorded in the log.
type TransactionType string

const (
	TransactionTypeDeposit          TransactionType = "deposit"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
	TransactionTypeWithdrawalFee    TransactionType = "withdrawal_fee"
	TransactionTypeTransferSent     TransactionType = "transfer_sent"
	TransactionTypeTransferReceived TransactionType = "transfer_received"
	TransactionTypePlanPurchase     TransactionType = "plan_purchase"
)

// IsDebit returns true for types that are always recorded with a negative amount.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeWithdrawalFee,
		TransactionTypeTransferSent, TransactionTypePlanPurchase:
		return true
	}
	return false
}

// WalletTransaction is an append-only ledger entry. Amount is signed:
// positive credits the wallet, negative debits it.
type WalletTransaction struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	Description    string          `json:"description"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	TransactionRef *string         `json:"transaction_id,omitempty"` // External reference
	CreatedAt      time.Time       `json:"created_at"`
}

// NewWalletTransaction builds a log entry, forcing the sign of amount to match typ.
func NewWalletTransaction(userID uuid.UUID, typ TransactionType, amount decimal.Decimal, currency Currency, description string, now time.Time) *WalletTransaction {
	signed := amount.Abs()
	if typ.IsDebit() {
		signed = signed.Neg()
	}
	return &WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        typ,
		Amount:      signed,
		Currency:    currency,
		Description: description,
		CreatedAt:   now,
	}
}
