package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Keys of the wallet_settings table.
const (
	SettingUSDTCap                  = "wallet_usdt_cap"
	SettingMinWithdrawalUSDT        = "min_withdrawal_usdt"
	SettingMaxWithdrawalUSDT        = "max_withdrawal_usdt"
	SettingWithdrawalFeePercent     = "withdrawal_fee_percent"
	SettingWithdrawalProcessingTime = "withdrawal_processing_time"
)

// SettingKeys lists every recognised settings key.
var SettingKeys = []string{
	SettingUSDTCap,
	SettingMinWithdrawalUSDT,
	SettingMaxWithdrawalUSDT,
	SettingWithdrawalFeePercent,
	SettingWithdrawalProcessingTime,
}

var hundred = decimal.NewFromInt(100)

// WalletSettings is the process-wide fee and limit policy.
type WalletSettings struct {
	USDTCap                  decimal.Decimal `json:"wallet_usdt_cap"`
	MinWithdrawalUSDT        decimal.Decimal `json:"min_withdrawal_usdt"`
	MaxWithdrawalUSDT        decimal.Decimal `json:"max_withdrawal_usdt"`
	WithdrawalFeePercent     decimal.Decimal `json:"withdrawal_fee_percent"`
	WithdrawalProcessingTime string          `json:"withdrawal_processing_time"`
}

// WithdrawalFee returns amount * fee_percent / 100 rounded to AmountScale,
// the precision the fee entry is stored at.
func (s WalletSettings) WithdrawalFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.WithdrawalFeePercent).Div(hundred).Round(AmountScale)
}

// WithdrawalTotal returns the amount debited for a withdrawal: principal plus fee.
func (s WalletSettings) WithdrawalTotal(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(s.WithdrawalFee(amount))
}

// Validate checks the policy is internally coherent.
func (s WalletSettings) Validate() error {
	if !s.USDTCap.IsPositive() || s.USDTCap.GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("%s must be positive and below %s", SettingUSDTCap, MaxAmount)
	}
	if s.MinWithdrawalUSDT.IsNegative() {
		return fmt.Errorf("%s must not be negative", SettingMinWithdrawalUSDT)
	}
	if s.MaxWithdrawalUSDT.LessThan(s.MinWithdrawalUSDT) {
		return fmt.Errorf("%s must not be below %s", SettingMaxWithdrawalUSDT, SettingMinWithdrawalUSDT)
	}
	if s.WithdrawalFeePercent.IsNegative() || s.WithdrawalFeePercent.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%s must be in [0, 100)", SettingWithdrawalFeePercent)
	}
	return nil
}

// Values renders the settings as the key/value rows they are stored as.
func (s WalletSettings) Values() map[string]string {
	return map[string]string{
		SettingUSDTCap:                  s.USDTCap.String(),
		SettingMinWithdrawalUSDT:        s.MinWithdrawalUSDT.String(),
		SettingMaxWithdrawalUSDT:        s.MaxWithdrawalUSDT.String(),
		SettingWithdrawalFeePercent:     s.WithdrawalFeePercent.String(),
		SettingWithdrawalProcessingTime: s.WithdrawalProcessingTime,
	}
}

// Merge returns a copy of s with the given key/value pairs applied.
// Unknown keys and unparsable numbers are errors; the receiver is never modified.
func (s WalletSettings) Merge(values map[string]string) (WalletSettings, error) {
	out := s
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		if key == SettingWithdrawalProcessingTime {
			out.WithdrawalProcessingTime = raw
			continue
		}

		var target *decimal.Decimal
		switch key {
		case SettingUSDTCap:
			target = &out.USDTCap
		case SettingMinWithdrawalUSDT:
			target = &out.MinWithdrawalUSDT
		case SettingMaxWithdrawalUSDT:
			target = &out.MaxWithdrawalUSDT
		case SettingWithdrawalFeePercent:
			target = &out.WithdrawalFeePercent
		default:
			return s, fmt.Errorf("unknown setting %q", key)
		}

		d, err := decimal.NewFromString(raw)
		if err != nil {
			return s, fmt.Errorf("setting %s: %w", key, err)
		}
		*target = d
	}
	return out, nil
}
