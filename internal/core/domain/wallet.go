package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is one of the two balances a wallet carries.
type Currency string

const (
	CurrencyUSDT Currency = "USDT"
	CurrencySOD  Currency = "SOD"
)

// ParseCurrency normalizes a currency code. The empty string yields fallback.
func ParseCurrency(s string, fallback Currency) (Currency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return fallback, true
	case string(CurrencyUSDT):
		return CurrencyUSDT, true
	case string(CurrencySOD):
		return CurrencySOD, true
	default:
		return "", false
	}
}

// MinWalletAddressLength is the shortest payout address accepted.
const MinWalletAddressLength = 10

// ValidWalletAddress reports whether addr is long enough to be a payout address.
func ValidWalletAddress(addr string) bool {
	return len(strings.TrimSpace(addr)) >= MinWalletAddressLength
}

// Wallet is a user's balance sheet. One per user, created lazily with zero balances.
type Wallet struct {
	UserID             uuid.UUID       `json:"user_id"`
	USDTBalance        decimal.Decimal `json:"usdt_balance"`
	SODBalance         int64           `json:"sod_balance"`
	PendingWithdrawal  decimal.Decimal `json:"pending_withdrawal"` // Escrowed principal of in-flight withdrawals
	TotalDepositedUSDT decimal.Decimal `json:"total_deposited_usdt"`
	TotalWithdrawnUSDT decimal.Decimal `json:"total_withdrawn_usdt"`
	WalletAddress      *string         `json:"wallet_address,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewWallet returns a zero-balance wallet for userID.
func NewWallet(userID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		UserID:             userID,
		USDTBalance:        decimal.Zero,
		PendingWithdrawal:  decimal.Zero,
		TotalDepositedUSDT: decimal.Zero,
		TotalWithdrawnUSDT: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// BalanceOf returns the spendable balance in the given currency.
func (w *Wallet) BalanceOf(c Currency) decimal.Decimal {
	if c == CurrencySOD {
		return decimal.NewFromInt(w.SODBalance)
	}
	return w.USDTBalance
}

// AmountScale is the number of decimal places stored for USDT amounts.
const AmountScale = 8

// MaxAmount is the exclusive upper bound of a stored amount or USDT balance,
// the largest value a NUMERIC(20,8) column holds.
var MaxAmount = decimal.New(1, 12)

var maxSOD = decimal.NewFromInt(math.MaxInt64)

// ValidAmount reports whether amount can be booked in currency c: positive,
// below MaxAmount, at most AmountScale places for USDT and whole for SOD.
func ValidAmount(c Currency, amount decimal.Decimal) bool {
	if !amount.IsPositive() || amount.GreaterThanOrEqual(MaxAmount) {
		return false
	}
	if c == CurrencySOD {
		return amount.IsInteger()
	}
	return amount.Equal(amount.Round(AmountScale))
}

// CanCover reports whether the wallet holds at least amount of currency c.
func (w *Wallet) CanCover(c Currency, amount decimal.Decimal) bool {
	return w.BalanceOf(c).GreaterThanOrEqual(amount)
}

// CanReceive reports whether crediting amount keeps the balance in range.
func (w *Wallet) CanReceive(c Currency, amount decimal.Decimal) bool {
	if c == CurrencySOD {
		if !amount.IsInteger() || amount.IsNegative() || amount.GreaterThan(maxSOD) {
			return false
		}
		return w.SODBalance <= math.MaxInt64-amount.IntPart()
	}
	return w.USDTBalance.Add(amount).LessThan(MaxAmount)
}

// Credit adds amount to the balance in currency c. Callers check CanReceive first.
func (w *Wallet) Credit(c Currency, amount decimal.Decimal) {
	if c == CurrencySOD {
		w.SODBalance += amount.IntPart()
		return
	}
	w.USDTBalance = w.USDTBalance.Add(amount)
}

// Debit subtracts amount from the balance in currency c. Callers check CanCover first.
func (w *Wallet) Debit(c Currency, amount decimal.Decimal) {
	if c == CurrencySOD {
		w.SODBalance -= amount.IntPart()
		return
	}
	w.USDTBalance = w.USDTBalance.Sub(amount)
}

// IsConsistent reports whether every balance field is non-negative.
func (w *Wallet) IsConsistent() bool {
	return !w.USDTBalance.IsNegative() &&
		w.SODBalance >= 0 &&
		!w.PendingWithdrawal.IsNegative()
}

// BalanceSelector chooses which fields a balance read returns.
type BalanceSelector string

const (
	BalanceUSDT BalanceSelector = "usdt"
	BalanceSOD  BalanceSelector = "sod"
	BalanceBoth BalanceSelector = "both"
)

// ParseBalanceSelector normalizes a selector; empty means both.
func ParseBalanceSelector(s string) (BalanceSelector, bool) {
	switch BalanceSelector(strings.ToLower(strings.TrimSpace(s))) {
	case "", BalanceBoth:
		return BalanceBoth, true
	case BalanceUSDT:
		return BalanceUSDT, true
	case BalanceSOD:
		return BalanceSOD, true
	default:
		return "", false
	}
}

// Balance is the projection returned by a balance read. Fields not selected are nil.
type Balance struct {
	USDT    *decimal.Decimal `json:"usdt,omitempty"`
	SOD     *int64           `json:"sod,omitempty"`
	Pending decimal.Decimal  `json:"pending"`
}

// Project builds the Balance view of w for sel.
func (w *Wallet) Project(sel BalanceSelector) *Balance {
	b := &Balance{Pending: w.PendingWithdrawal}
	if sel == BalanceUSDT || sel == BalanceBoth {
		usdt := w.USDTBalance
		b.USDT = &usdt
	}
	if sel == BalanceSOD || sel == BalanceBoth {
		sod := w.SODBalance
		b.SOD = &sod
	}
	return b
}

// WalletStats aggregates a wallet's lifetime figures.
type WalletStats struct {
	TotalDepositedUSDT decimal.Decimal `json:"total_deposited_usdt"`
	TotalWithdrawnUSDT decimal.Decimal `json:"total_withdrawn_usdt"`
	PendingWithdrawal  decimal.Decimal `json:"pending_withdrawal"`
	TransactionCount   int64           `json:"transaction_count"`
	WithdrawalCount    int64           `json:"withdrawal_count"`
	WalletAddress      *string         `json:"wallet_address,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
