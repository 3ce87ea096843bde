package dto

import "github.com/shopspring/decimal"

// DepositRequest is the request body for crediting a wallet.
type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"decimal_scale=8"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method" binding:"max=50"`
	TransactionID string          `json:"transaction_id" binding:"omitempty,max=100,safe_id"` // Client reference; retries with the same value are idempotent
}

// WithdrawalRequest is the request body for a USDT payout request.
// The address is checked by the ledger so its error code stays specific.
type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"decimal_scale=8"`
	Currency      string          `json:"currency"`
	WalletAddress string          `json:"wallet_address" binding:"max=128"`
	Network       string          `json:"network" binding:"omitempty,max=20,safe_id"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	ReceiverID  string          `json:"receiver_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" binding:"decimal_scale=8"`
	Currency    string          `json:"currency"`
	Description string          `json:"description" binding:"max=255"`
}

// PurchaseRequest is the request body for buying a mining plan.
type PurchaseRequest struct {
	PlanID    string          `json:"plan_id" binding:"required,max=64,safe_id"`
	PlanName  string          `json:"plan_name" binding:"required,max=100"`
	PlanPrice decimal.Decimal `json:"plan_price" binding:"decimal_scale=8"`
}

// AddressRequest is the request body for setting the payout address.
type AddressRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required,max=128"`
}

// WithdrawalStatusRequest is the admin decision on a pending withdrawal.
type WithdrawalStatusRequest struct {
	Status     string  `json:"status" binding:"required"`
	AdminNotes *string `json:"admin_notes,omitempty" binding:"omitempty,max=500"`
}

// ListQuery holds the query parameters of list endpoints.
type ListQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=0,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
	Status string `form:"status" binding:"omitempty,oneof=pending completed rejected"`
	UserID string `form:"user_id" binding:"omitempty,uuid"`
}

// BalanceQuery holds the query parameters of the balance endpoint.
type BalanceQuery struct {
	Currency string `form:"currency"`
}
