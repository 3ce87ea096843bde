package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventDeposited           EventType = "wallet.deposited"
	EventWithdrawalRequested EventType = "wallet.withdrawal.requested"
	EventWithdrawalCompleted EventType = "wallet.withdrawal.completed"
	EventWithdrawalRejected  EventType = "wallet.withdrawal.rejected"
	EventTransferred         EventType = "wallet.transferred"
	EventPlanPurchased       EventType = "wallet.plan.purchased"
	EventSettingsUpdated     EventType = "wallet.settings.updated"
)

// LedgerEvent notifies subscribers (UI, game-state service) of a committed change.
type LedgerEvent struct {
	ID           uuid.UUID       `json:"id"`
	Type         EventType       `json:"type"`
	UserID       uuid.UUID       `json:"user_id"`
	Counterparty *uuid.UUID      `json:"counterparty,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency,omitempty"`
	ReferenceID  string          `json:"reference_id,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewLedgerEvent stamps a new event with an id and time.
func NewLedgerEvent(typ EventType, userID uuid.UUID, amount decimal.Decimal, currency Currency, ref string) LedgerEvent {
	return LedgerEvent{
		ID:          uuid.New(),
		Type:        typ,
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		ReferenceID: ref,
		OccurredAt:  time.Now().UTC(),
	}
}
