package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"
)

// Deposit credits a wallet. USDT deposits are capped by wallet_usdt_cap;
// SOD deposits are whole units with no cap. A deposit carrying a client
// reference is idempotent per user: retries return the original result.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (res *ports.DepositResult, err error) {
	defer s.observe(opDeposit, time.Now(), &err)

	if !validCurrency(req.Currency) {
		return nil, apperror.ErrInvalidCurrency()
	}
	if !validAmount(req.Currency, req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reference := strings.TrimSpace(req.TransactionRef)
	idempKey := ""
	if reference != "" {
		idempKey = domain.BuildDepositIdempotencyKey(req.UserID, reference)
		replay, err := s.lookupDeposit(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			s.log.Info().Str("key", idempKey).Msg("deposit replayed from idempotency log")
			return replay, nil
		}
	} else {
		reference = fmt.Sprintf("DEP-%d", now.UnixMilli())
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

	// Business rule: USDT balance cap
	if req.Currency == domain.CurrencyUSDT {
		if wallet.USDTBalance.Add(req.Amount).GreaterThan(settings.USDTCap) {
			return nil, apperror.ErrCapExceeded(settings.USDTCap.String())
		}
	}
	if !wallet.CanReceive(req.Currency, req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Currency == domain.CurrencyUSDT {
		wallet.TotalDepositedUSDT = wallet.TotalDepositedUSDT.Add(req.Amount)
	}
	wallet.Credit(req.Currency, req.Amount)
	wallet.UpdatedAt = now

	if err := s.wallets.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	description := fmt.Sprintf("%s deposit", req.Currency)
	if req.PaymentMethod != "" {
		description = fmt.Sprintf("%s deposit via %s", req.Currency, req.PaymentMethod)
	}
	txn := domain.NewWalletTransaction(req.UserID, domain.TransactionTypeDeposit, req.Amount, req.Currency, description, now)
	txn.TransactionRef = &reference
	if req.PaymentMethod != "" {
		method := req.PaymentMethod
		txn.PaymentMethod = &method
	}
	if err := s.txns.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	result := &ports.DepositResult{
		TransactionID: txn.ID,
		Reference:     reference,
		Currency:      req.Currency,
		Amount:        req.Amount,
		NewBalance:    wallet.BalanceOf(req.Currency),
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(result)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		entry := &domain.IdempotencyLog{
			Key:           idempKey,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     now,
		}
		if err := s.idempRepo.Create(ctx, dbTx, entry); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return nil, apperror.ErrDuplicateTransaction()
			}
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.idempTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.metrics.AddVolume(opDeposit, req.Currency, req.Amount)
	s.publish(ctx, domain.NewLedgerEvent(domain.EventDeposited, req.UserID, req.Amount, req.Currency, reference))

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("currency", string(req.Currency)).
		Str("amount", req.Amount.String()).
		Msg("deposit processed successfully")

	return result, nil
}

// lookupDeposit checks Redis first, then the idempotency_logs table.
func (s *LedgerServiceImpl) lookupDeposit(ctx context.Context, key string) (*ports.DepositResult, error) {
	// Layer 1: Redis idempotency check
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalDepositResult(cached)
		}
	}

	// Layer 2: DB idempotency check
	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return unmarshalDepositResult(entry.ResponseJSON)
}

func unmarshalDepositResult(data []byte) (*ports.DepositResult, error) {
	var res ports.DepositResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached deposit: %w", err))
	}
	return &res, nil
}
