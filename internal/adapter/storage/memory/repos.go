package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// before orders rows by creation time, then id, like ORDER BY created_at, id.
func before(at time.Time, id uuid.UUID, otherAt time.Time, otherID uuid.UUID) bool {
	if !at.Equal(otherAt) {
		return at.Before(otherAt)
	}
	return bytes.Compare(id[:], otherID[:]) < 0
}

// --- Wallets ---

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a WalletRepo over store.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.wallets[w.UserID]; ok {
		return false, nil
	}
	r.store.wallets[w.UserID] = copyWallet(w)
	return true, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.wallets[userID]
	if !ok {
		return nil, nil
	}
	return copyWallet(w), nil
}

// GetByUserIDForUpdate reads the wallet inside tx. The transaction already
// holds the store exclusively, so no further locking is needed.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	prev, ok := r.store.wallets[w.UserID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.UserID)
	}
	if !w.IsConsistent() {
		return fmt.Errorf("update wallet balances: negative balance for %s", w.UserID)
	}

	next := copyWallet(prev)
	next.USDTBalance = w.USDTBalance
	next.SODBalance = w.SODBalance
	next.PendingWithdrawal = w.PendingWithdrawal
	next.TotalDepositedUSDT = w.TotalDepositedUSDT
	next.TotalWithdrawnUSDT = w.TotalWithdrawnUSDT
	next.UpdatedAt = w.UpdatedAt
	r.store.wallets[w.UserID] = next

	undo(tx, func() { r.store.wallets[prev.UserID] = prev })
	return nil
}

func (r *WalletRepo) UpdateAddress(ctx context.Context, userID uuid.UUID, address string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[userID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	next := copyWallet(w)
	next.WalletAddress = &address
	next.UpdatedAt = time.Now().UTC()
	r.store.wallets[userID] = next
	return nil
}

// --- Ledger ---

// TransactionRepo implements ports.WalletTransactionRepository.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a TransactionRepo over store.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.transactions[t.ID]; ok {
		return fmt.Errorf("insert wallet transaction: %w", ports.ErrDuplicateKey)
	}
	r.store.transactions[t.ID] = copyTransaction(t)
	id := t.ID
	undo(tx, func() { delete(r.store.transactions, id) })
	return nil
}

func (r *TransactionRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.deleteLocked(tx, id), nil
}

func (r *TransactionRepo) deleteLocked(tx pgx.Tx, id uuid.UUID) bool {
	prev, ok := r.store.transactions[id]
	if !ok {
		return false
	}
	delete(r.store.transactions, id)
	undo(tx, func() { r.store.transactions[id] = prev })
	return true
}

func (r *TransactionRepo) DeleteFeeMatch(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, since time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var match *domain.WalletTransaction
	for _, t := range r.store.transactions {
		if t.UserID != userID || t.Type != domain.TransactionTypeWithdrawalFee {
			continue
		}
		if !t.Amount.Equal(amount) || t.CreatedAt.Before(since) {
			continue
		}
		if match == nil || before(t.CreatedAt, t.ID, match.CreatedAt, match.ID) {
			match = t
		}
	}
	if match == nil {
		return false, nil
	}
	return r.deleteLocked(tx, match.ID), nil
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, page ports.Page) ([]domain.WalletTransaction, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var all []domain.WalletTransaction
	for _, t := range r.store.transactions {
		if t.UserID == userID {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return before(all[j].CreatedAt, all[j].ID, all[i].CreatedAt, all[i].ID) })
	return paginate(all, page), int64(len(all)), nil
}

func (r *TransactionRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, t := range r.store.transactions {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- Withdrawals ---

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	store *Store
}

// NewWithdrawalRepo creates a WithdrawalRepo over store.
func NewWithdrawalRepo(store *Store) *WithdrawalRepo {
	return &WithdrawalRepo{store: store}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.withdrawals[w.ID]; ok {
		return fmt.Errorf("insert withdrawal request: %w", ports.ErrDuplicateKey)
	}
	r.store.withdrawals[w.ID] = copyWithdrawal(w)
	id := w.ID
	undo(tx, func() { delete(r.store.withdrawals, id) })
	return nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return copyWithdrawal(w), nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	prev, ok := r.store.withdrawals[w.ID]
	if !ok || prev.Status != domain.WithdrawalStatusPending {
		return fmt.Errorf("pending withdrawal request not found: %s", w.ID)
	}
	next := copyWithdrawal(prev)
	next.Status = w.Status
	next.AdminNotes = w.AdminNotes
	next.ProcessedAt = w.ProcessedAt
	r.store.withdrawals[w.ID] = next
	undo(tx, func() { r.store.withdrawals[prev.ID] = prev })
	return nil
}

func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var all []domain.WithdrawalRequest
	for _, w := range r.store.withdrawals {
		if params.UserID != nil && w.UserID != *params.UserID {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		all = append(all, *w)
	}
	sort.Slice(all, func(i, j int) bool { return before(all[j].CreatedAt, all[j].ID, all[i].CreatedAt, all[i].ID) })
	return paginate(all, params.Page), int64(len(all)), nil
}

func (r *WithdrawalRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, w := range r.store.withdrawals {
		if w.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- Settings ---

// SettingsRepo implements ports.SettingsRepository.
type SettingsRepo struct {
	store *Store
}

// NewSettingsRepo creates a SettingsRepo over store.
func NewSettingsRepo(store *Store) *SettingsRepo {
	return &SettingsRepo{store: store}
}

func (r *SettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]string, len(r.store.settings))
	for k, v := range r.store.settings {
		out[k] = v
	}
	return out, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, values map[string]string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for k, v := range values {
		r.store.settings[k] = v
	}
	return nil
}

// --- Idempotency ---

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates an IdempotencyRepo over store.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.idempotency[log.Key]; ok {
		return fmt.Errorf("insert idempotency log: %w", ports.ErrDuplicateKey)
	}
	c := *log
	r.store.idempotency[log.Key] = &c
	key := log.Key
	undo(tx, func() { delete(r.store.idempotency, key) })
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.idempotency[key]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an AuditRepo over store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *log)
	return nil
}

// Entries returns a snapshot of the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.store.audit...)
}

func paginate[T any](items []T, page ports.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
