package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the result of a deposit carrying a client reference so a
// retried request returns the original outcome instead of crediting twice.
type IdempotencyLog struct {
	Key           string    `json:"key"` // Format: "user_id:deposit:transaction_id"
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildDepositIdempotencyKey constructs the key for a client-referenced deposit.
func BuildDepositIdempotencyKey(userID uuid.UUID, transactionRef string) string {
	return userID.String() + ":deposit:" + transactionRef
}
