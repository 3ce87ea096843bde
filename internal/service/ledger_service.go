package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"
	"sodminer-wallet/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Operation names used for metrics and logs.
const (
	opDeposit          = "deposit"
	opWithdrawal       = "withdrawal_request"
	opWithdrawalStatus = "withdrawal_status"
	opTransfer         = "transfer"
	opPurchase         = "plan_purchase"
	opSettings         = "settings_update"
)

// LedgerDeps groups the collaborators of the ledger service.
// IdempotencyCache, Publisher, Notifier and Metrics are optional.
type LedgerDeps struct {
	Wallets          ports.WalletRepository
	Transactions     ports.WalletTransactionRepository
	Withdrawals      ports.WithdrawalRepository
	Settings         ports.SettingsRepository
	IdempotencyRepo  ports.IdempotencyRepository
	IdempotencyCache ports.IdempotencyCache
	Transactor       ports.DBTransactor
	Publisher        ports.EventPublisher
	Notifier         ports.SettingsNotifier
	Metrics          ports.LedgerMetrics

	// DefaultSettings apply to every key missing from the settings table.
	DefaultSettings domain.WalletSettings
	IdempotencyTTL  time.Duration
	Logger          zerolog.Logger
}

// LedgerServiceImpl implements ports.LedgerService.
// Every mutation runs in one database transaction with the affected wallet
// rows locked, so the balance update and its log rows commit together.
type LedgerServiceImpl struct {
	wallets      ports.WalletRepository
	txns         ports.WalletTransactionRepository
	withdrawals  ports.WithdrawalRepository
	settingsRepo ports.SettingsRepository
	idempRepo    ports.IdempotencyRepository
	idempCache   ports.IdempotencyCache
	transactor   ports.DBTransactor
	publisher    ports.EventPublisher
	notifier     ports.SettingsNotifier
	metrics      ports.LedgerMetrics
	defaults     domain.WalletSettings
	idempTTL     time.Duration
	log          zerolog.Logger
	now          func() time.Time

	mu       sync.RWMutex
	settings *domain.WalletSettings
}

// NewLedgerService creates a new LedgerServiceImpl. Settings are not read
// until LoadSettings or the first operation that needs them.
func NewLedgerService(deps LedgerDeps) *LedgerServiceImpl {
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &LedgerServiceImpl{
		wallets:      deps.Wallets,
		txns:         deps.Transactions,
		withdrawals:  deps.Withdrawals,
		settingsRepo: deps.Settings,
		idempRepo:    deps.IdempotencyRepo,
		idempCache:   deps.IdempotencyCache,
		transactor:   deps.Transactor,
		publisher:    deps.Publisher,
		notifier:     deps.Notifier,
		metrics:      metrics,
		defaults:     deps.DefaultSettings,
		idempTTL:     ttl,
		log:          logger.Component(deps.Logger, "ledger"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// --- Wallet accessor ---

// GetWallet returns the user's wallet, creating an empty one if none exists.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	fresh := domain.NewWallet(userID, s.now())
	created, err := s.wallets.Create(ctx, fresh)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	if created {
		s.log.Info().Str("user_id", userID.String()).Msg("wallet provisioned")
		return fresh, nil
	}

	// Lost the race against a concurrent provision; read the winner.
	wallet, err = s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// GetBalance projects the wallet's balances. Failures are logged and reported
// as a nil balance rather than an error.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID, sel domain.BalanceSelector) (*domain.Balance, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance read failed")
		return nil, nil
	}
	return wallet.Project(sel), nil
}

// UpdateWalletAddress stores the user's payout address.
func (s *LedgerServiceImpl) UpdateWalletAddress(ctx context.Context, userID uuid.UUID, address string) (*domain.Wallet, error) {
	if !domain.ValidWalletAddress(address) {
		return nil, apperror.ErrInvalidAddress()
	}
	if err := s.provision(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.wallets.UpdateAddress(ctx, userID, trimAddress(address)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet address: %w", err))
	}
	return s.GetWallet(ctx, userID)
}

// provision makes sure a wallet row exists before a transaction locks it.
func (s *LedgerServiceImpl) provision(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.wallets.Create(ctx, domain.NewWallet(userID, s.now())); err != nil {
		return apperror.InternalError(fmt.Errorf("provision wallet: %w", err))
	}
	return nil
}

// --- Plan purchase ---

// PurchasePlan debits the plan price from the USDT balance.
func (s *LedgerServiceImpl) PurchasePlan(ctx context.Context, req ports.PlanPurchaseRequest) (res *ports.PurchaseResult, err error) {
	defer s.observe(opPurchase, time.Now(), &err)

	if !validAmount(domain.CurrencyUSDT, req.PlanPrice) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.PlanID == "" {
		return nil, apperror.Validation("plan_id is required")
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
	if !wallet.CanCover(domain.CurrencyUSDT, req.PlanPrice) {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	wallet.Debit(domain.CurrencyUSDT, req.PlanPrice)
	wallet.UpdatedAt = now
	if err := s.wallets.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	name := req.PlanName
	if name == "" {
		name = req.PlanID
	}
	txn := domain.NewWalletTransaction(req.UserID, domain.TransactionTypePlanPurchase, req.PlanPrice, domain.CurrencyUSDT,
		fmt.Sprintf("Purchased mining plan: %s", name), now)
	planID := req.PlanID
	txn.TransactionRef = &planID
	if err := s.txns.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.AddVolume(opPurchase, domain.CurrencyUSDT, req.PlanPrice)
	s.publish(ctx, domain.NewLedgerEvent(domain.EventPlanPurchased, req.UserID, txn.Amount, domain.CurrencyUSDT, req.PlanID))

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("plan_id", req.PlanID).
		Str("price", req.PlanPrice.String()).
		Msg("plan purchased")

	return &ports.PurchaseResult{TransactionID: txn.ID, NewBalance: wallet.USDTBalance}, nil
}

// --- helpers ---

func (s *LedgerServiceImpl) publish(ctx context.Context, event domain.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Str("event_id", event.ID.String()).Msg("failed to publish ledger event")
	}
}

func (s *LedgerServiceImpl) observe(op string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(op, outcomeOf(*errp), time.Since(start))
}

// outcomeOf labels an operation result: "success", the AppError code, or "error".
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "error"
}

func validCurrency(c domain.Currency) bool {
	return c == domain.CurrencyUSDT || c == domain.CurrencySOD
}

// validAmount checks amount is positive, storable, and for SOD a whole number.
func validAmount(c domain.Currency, amount decimal.Decimal) bool {
	return domain.ValidAmount(c, amount)
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration)     {}
func (nopMetrics) AddVolume(string, domain.Currency, decimal.Decimal) {}
