package service

import (
	"context"
	"fmt"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// GetWalletTransactions returns a page of the user's ledger, newest first.
func (s *LedgerServiceImpl) GetWalletTransactions(ctx context.Context, userID uuid.UUID, page ports.Page) ([]domain.WalletTransaction, int64, error) {
	txns, total, err := s.txns.ListByUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// GetUserWithdrawalRequests returns a page of the user's withdrawal requests, newest first.
func (s *LedgerServiceImpl) GetUserWithdrawalRequests(ctx context.Context, userID uuid.UUID, page ports.Page) ([]domain.WithdrawalRequest, int64, error) {
	return s.ListWithdrawalRequests(ctx, ports.WithdrawalListParams{UserID: &userID, Page: page})
}

// GetWithdrawalRequestStatus returns one of the user's withdrawal requests.
// Requests owned by another user are reported as not found.
func (s *LedgerServiceImpl) GetWithdrawalRequestStatus(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	req, err := s.withdrawals.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal request: %w", err))
	}
	if req == nil || req.UserID != userID {
		return nil, apperror.ErrNotFound("Withdrawal request")
	}
	return req, nil
}

// ListWithdrawalRequests filters withdrawal requests by user and/or status.
func (s *LedgerServiceImpl) ListWithdrawalRequests(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	params.Page = params.Page.Normalize()
	reqs, total, err := s.withdrawals.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawal requests: %w", err))
	}
	return reqs, total, nil
}

// GetWalletStats aggregates the wallet's lifetime figures.
func (s *LedgerServiceImpl) GetWalletStats(ctx context.Context, userID uuid.UUID) (*domain.WalletStats, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	txCount, err := s.txns.CountByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count transactions: %w", err))
	}
	wdCount, err := s.withdrawals.CountByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count withdrawal requests: %w", err))
	}

	return &domain.WalletStats{
		TotalDepositedUSDT: wallet.TotalDepositedUSDT,
		TotalWithdrawnUSDT: wallet.TotalWithdrawnUSDT,
		PendingWithdrawal:  wallet.PendingWithdrawal,
		TransactionCount:   txCount,
		WithdrawalCount:    wdCount,
		WalletAddress:      wallet.WalletAddress,
		CreatedAt:          wallet.CreatedAt,
	}, nil
}
