package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// Transfer moves funds between two wallets. Currency defaults to SOD.
// Both wallets are locked in ascending user id order so two opposing
// transfers cannot deadlock.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (res *ports.TransferResult, err error) {
	defer s.observe(opTransfer, time.Now(), &err)

	if req.Currency == "" {
		req.Currency = domain.CurrencySOD
	}
	if !validCurrency(req.Currency) {
		return nil, apperror.ErrInvalidCurrency()
	}
	if !validAmount(req.Currency, req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SenderID == req.ReceiverID {
		return nil, apperror.ErrSelfTransfer()
	}

	if err := s.provision(ctx, req.SenderID); err != nil {
		return nil, err
	}
	if err := s.provision(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	first, second := req.SenderID, req.ReceiverID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*domain.Wallet, 2)
	for _, id := range []uuid.UUID{first, second} {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		locked[id] = wallet
	}
	sender, receiver := locked[req.SenderID], locked[req.ReceiverID]

	if !sender.CanCover(req.Currency, req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if !receiver.CanReceive(req.Currency, req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	now := s.now()
	sender.Debit(req.Currency, req.Amount)
	sender.UpdatedAt = now
	receiver.Credit(req.Currency, req.Amount)
	receiver.UpdatedAt = now

	if err := s.wallets.UpdateBalances(ctx, dbTx, sender); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update sender balance: %w", err))
	}
	if err := s.wallets.UpdateBalances(ctx, dbTx, receiver); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update receiver balance: %w", err))
	}

	sentDesc, receivedDesc := req.Description, req.Description
	if sentDesc == "" {
		sentDesc = fmt.Sprintf("Transfer to %s", req.ReceiverID)
		receivedDesc = fmt.Sprintf("Transfer from %s", req.SenderID)
	}
	sent := domain.NewWalletTransaction(req.SenderID, domain.TransactionTypeTransferSent, req.Amount, req.Currency, sentDesc, now)
	received := domain.NewWalletTransaction(req.ReceiverID, domain.TransactionTypeTransferReceived, req.Amount, req.Currency, receivedDesc, now)
	sentRef, receivedRef := received.ID.String(), sent.ID.String()
	sent.TransactionRef = &sentRef
	received.TransactionRef = &receivedRef

	if err := s.txns.Create(ctx, dbTx, sent); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create sent transaction: %w", err))
	}
	if err := s.txns.Create(ctx, dbTx, received); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create received transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.AddVolume(opTransfer, req.Currency, req.Amount)
	event := domain.NewLedgerEvent(domain.EventTransferred, req.SenderID, req.Amount, req.Currency, sent.ID.String())
	receiverID := req.ReceiverID
	event.Counterparty = &receiverID
	s.publish(ctx, event)

	s.log.Info().
		Str("sender_id", req.SenderID.String()).
		Str("receiver_id", req.ReceiverID.String()).
		Str("currency", string(req.Currency)).
		Str("amount", req.Amount.String()).
		Msg("transfer completed")

	return &ports.TransferResult{
		SentTransactionID:     sent.ID,
		ReceivedTransactionID: received.ID,
		Currency:              req.Currency,
		Amount:                req.Amount,
		SenderBalance:         sender.BalanceOf(req.Currency),
	}, nil
}
