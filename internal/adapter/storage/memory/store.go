// Package memory is an in-process persistence gateway. It backs the ledger
// when no database is configured and in end-to-end tests.
//
// Transactions are serialized: Begin blocks until the previous transaction
// commits or rolls back, which gives the same isolation as row locks on a
// single wallet at the cost of throughput. Writes apply immediately and are
// recorded in an undo log that Rollback replays in reverse.
package memory

import (
	"context"
	"sync"

	"sodminer-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds every table of the ledger in memory.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	wallets      map[uuid.UUID]*domain.Wallet
	transactions map[uuid.UUID]*domain.WalletTransaction
	withdrawals  map[uuid.UUID]*domain.WithdrawalRequest
	settings     map[string]string
	idempotency  map[string]*domain.IdempotencyLog
	audit        []domain.AuditLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]*domain.Wallet),
		transactions: make(map[uuid.UUID]*domain.WalletTransaction),
		withdrawals:  make(map[uuid.UUID]*domain.WithdrawalRequest),
		settings:     make(map[string]string),
		idempotency:  make(map[string]*domain.IdempotencyLog),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the component name for health reporting.
func (s *Store) Name() string {
	return "ledger_memory"
}

// Transactor implements ports.DBTransactor over a Store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor for store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin waits for exclusive access to the store and opens a transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	acquired := make(chan struct{})
	go func() {
		t.store.txMu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return &memTx{store: t.store}, nil
	case <-ctx.Done():
		// Hand the lock back once the waiter gets it.
		go func() {
			<-acquired
			t.store.txMu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// undo records how to revert a write made inside a memTx.
func undo(tx pgx.Tx, fn func()) {
	if mt, ok := tx.(*memTx); ok {
		mt.undo = append(mt.undo, fn)
	}
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	if w.WalletAddress != nil {
		addr := *w.WalletAddress
		c.WalletAddress = &addr
	}
	return &c
}

func copyWithdrawal(w *domain.WithdrawalRequest) *domain.WithdrawalRequest {
	c := *w
	return &c
}

func copyTransaction(t *domain.WalletTransaction) *domain.WalletTransaction {
	c := *t
	return &c
}
