package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RequestWithdrawal escrows a USDT payout. Checks run in a fixed order and
// the first failure wins: minimum, maximum, address, funds.
// On success the principal plus fee leaves the balance, the principal is
// held in pending_withdrawal, and the fee is logged as its own entry.
func (s *LedgerServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalInput) (res *ports.WithdrawalResult, err error) {
	defer s.observe(opWithdrawal, time.Now(), &err)

	if req.Currency == "" {
		req.Currency = domain.CurrencyUSDT
	}
	if req.Currency != domain.CurrencyUSDT {
		return nil, apperror.ErrInvalidCurrency()
	}
	if !validAmount(domain.CurrencyUSDT, req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.Amount.LessThan(settings.MinWithdrawalUSDT) {
		return nil, apperror.ErrBelowMinimum(settings.MinWithdrawalUSDT.String())
	}
	if req.Amount.GreaterThan(settings.MaxWithdrawalUSDT) {
		return nil, apperror.ErrAboveMaximum(settings.MaxWithdrawalUSDT.String())
	}
	if !domain.ValidWalletAddress(req.WalletAddress) {
		return nil, apperror.ErrInvalidAddress()
	}
	network := strings.TrimSpace(req.Network)
	if network == "" {
		network = domain.DefaultNetwork
	}

	if err := s.provision(ctx, req.UserID); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.wallets.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	fee := settings.WithdrawalFee(req.Amount)
	total := req.Amount.Add(fee)
	if !wallet.CanCover(domain.CurrencyUSDT, total) {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	wallet.Debit(domain.CurrencyUSDT, total)
	wallet.PendingWithdrawal = wallet.PendingWithdrawal.Add(req.Amount)
	wallet.TotalWithdrawnUSDT = wallet.TotalWithdrawnUSDT.Add(req.Amount)
	wallet.UpdatedAt = now
	if err := s.wallets.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	request := &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      domain.CurrencyUSDT,
		WalletAddress: trimAddress(req.WalletAddress),
		Network:       network,
		Status:        domain.WithdrawalStatusPending,
		CreatedAt:     now,
	}

	if fee.IsPositive() {
		feeTxn := domain.NewWalletTransaction(req.UserID, domain.TransactionTypeWithdrawalFee, fee, domain.CurrencyUSDT,
			fmt.Sprintf("Withdrawal fee (%s%%)", settings.WithdrawalFeePercent.String()), now)
		if err := s.txns.Create(ctx, dbTx, feeTxn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create fee transaction: %w", err))
		}
		request.FeeTransactionID = &feeTxn.ID
	}

	if err := s.withdrawals.Create(ctx, dbTx, request); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal request: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.AddVolume(opWithdrawal, domain.CurrencyUSDT, total)
	s.publish(ctx, domain.NewLedgerEvent(domain.EventWithdrawalRequested, req.UserID, req.Amount, domain.CurrencyUSDT, request.ID.String()))

	s.log.Info().
		Str("request_id", request.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", req.Amount.String()).
		Str("fee", fee.String()).
		Msg("withdrawal requested")

	return &ports.WithdrawalResult{
		RequestID:      request.ID,
		ProcessingTime: settings.WithdrawalProcessingTime,
		Fee:            fee,
		TotalDebited:   total,
		NewBalance:     wallet.USDTBalance,
	}, nil
}

// UpdateWithdrawalStatus moves a pending request to completed or rejected.
//
// Rejection refunds amount plus a fee recomputed from the current settings,
// releases the escrow and removes the fee entry. If the fee percentage
// changed since the request, the refund differs from what was debited.
// Completion only appends the withdrawal entry; the principal already left
// the balance at request time.
func (s *LedgerServiceImpl) UpdateWithdrawalStatus(ctx context.Context, req ports.WithdrawalStatusUpdate) (res *ports.WithdrawalStatusResult, err error) {
	defer s.observe(opWithdrawalStatus, time.Now(), &err)

	if !req.Status.IsTerminal() {
		return nil, apperror.ErrInvalidStatus()
	}

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.withdrawals.GetByIDForUpdate(ctx, dbTx, req.RequestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrNotFound("Withdrawal request")
	}
	if !request.CanTransitionTo(req.Status) {
		return nil, apperror.ErrWithdrawalNotPending()
	}

	now := s.now()
	refunded := decimal.Zero
	event := domain.EventWithdrawalCompleted

	switch req.Status {
	case domain.WithdrawalStatusRejected:
		event = domain.EventWithdrawalRejected
		refunded, err = s.refundWithdrawal(ctx, dbTx, request, settings, now)
		if err != nil {
			return nil, err
		}
	case domain.WithdrawalStatusCompleted:
		txn := domain.NewWalletTransaction(request.UserID, domain.TransactionTypeWithdrawal, request.Amount, request.Currency,
			fmt.Sprintf("Withdrawal to %s (%s)", request.WalletAddress, request.Network), now)
		ref := request.ID.String()
		txn.TransactionRef = &ref
		if err := s.txns.Create(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create withdrawal transaction: %w", err))
		}
	}

	request.Status = req.Status
	request.AdminNotes = req.AdminNotes
	request.ProcessedAt = &now
	if err := s.withdrawals.UpdateStatus(ctx, dbTx, request); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update withdrawal status: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, domain.NewLedgerEvent(event, request.UserID, request.Amount, request.Currency, request.ID.String()))

	s.log.Info().
		Str("request_id", request.ID.String()).
		Str("user_id", request.UserID.String()).
		Str("status", string(req.Status)).
		Str("refunded", refunded.String()).
		Msg("withdrawal status updated")

	return &ports.WithdrawalStatusResult{
		RequestID: request.ID,
		Status:    req.Status,
		Refunded:  refunded,
	}, nil
}

// refundWithdrawal credits the wallet back for a rejected request and deletes
// its fee entry, by link when the request carries one and by approximate
// match (user, amount, created at or after the request) otherwise.
func (s *LedgerServiceImpl) refundWithdrawal(ctx context.Context, dbTx pgx.Tx, request *domain.WithdrawalRequest, settings domain.WalletSettings, now time.Time) (decimal.Decimal, error) {
	wallet, err := s.wallets.GetByUserIDForUpdate(ctx, dbTx, request.UserID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrWalletNotFound()
	}

	fee := settings.WithdrawalFee(request.Amount)
	total := request.Amount.Add(fee)

	wallet.Credit(domain.CurrencyUSDT, total)
	wallet.PendingWithdrawal = clampZero(wallet.PendingWithdrawal.Sub(request.Amount))
	wallet.TotalWithdrawnUSDT = clampZero(wallet.TotalWithdrawnUSDT.Sub(request.Amount))
	wallet.UpdatedAt = now
	if err := s.wallets.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	var deleted bool
	switch {
	case request.FeeTransactionID != nil:
		deleted, err = s.txns.Delete(ctx, dbTx, *request.FeeTransactionID)
	case fee.IsPositive():
		deleted, err = s.txns.DeleteFeeMatch(ctx, dbTx, request.UserID, fee.Neg(), request.CreatedAt)
	default:
		deleted = true
	}
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("delete fee transaction: %w", err))
	}
	if !deleted {
		s.log.Warn().
			Str("request_id", request.ID.String()).
			Str("fee", fee.String()).
			Msg("no fee transaction found to reverse")
	}
	return total, nil
}

func trimAddress(addr string) string {
	return strings.TrimSpace(addr)
}
