package memory

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWallet(t *testing.T, store *Store, usdt string, sod int64) *domain.Wallet {
	t.Helper()
	w := domain.NewWallet(uuid.New(), time.Now().UTC())
	w.USDTBalance = decimal.RequireFromString(usdt)
	w.SODBalance = sod
	created, err := NewWalletRepo(store).Create(context.Background(), w)
	require.NoError(t, err)
	require.True(t, created)
	return w
}

func TestWalletRepo_CreateIsInsertIfAbsent(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	w := seedWallet(t, store, "5", 10)

	again := domain.NewWallet(w.UserID, time.Now().UTC())
	created, err := repo.Create(context.Background(), again)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetByUserID(context.Background(), w.UserID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5").Equal(got.USDTBalance))
}

func TestWalletRepo_GetByUserID_NotFound(t *testing.T) {
	got, err := NewWalletRepo(NewStore()).GetByUserID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalletRepo_ReturnsCopies(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	w := seedWallet(t, store, "5", 0)

	got, err := repo.GetByUserID(context.Background(), w.UserID)
	require.NoError(t, err)
	got.USDTBalance = decimal.NewFromInt(999)

	again, err := repo.GetByUserID(context.Background(), w.UserID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5").Equal(again.USDTBalance))
}

func TestWalletRepo_UpdateBalancesRejectsNegative(t *testing.T) {
	store := NewStore()
	w := seedWallet(t, store, "5", 0)
	w.USDTBalance = decimal.NewFromInt(-1)

	err := NewWalletRepo(store).UpdateBalances(context.Background(), nil, w)
	assert.Error(t, err)
}

func TestWalletRepo_UpdateAddress(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	w := seedWallet(t, store, "0", 0)

	require.NoError(t, repo.UpdateAddress(context.Background(), w.UserID, "TXYZ1234567890"))
	got, err := repo.GetByUserID(context.Background(), w.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.WalletAddress)
	assert.Equal(t, "TXYZ1234567890", *got.WalletAddress)

	assert.Error(t, repo.UpdateAddress(context.Background(), uuid.New(), "TXYZ1234567890"))
}

func TestTransactor_RollbackRevertsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	wallets := NewWalletRepo(store)
	txns := NewTransactionRepo(store)
	withdrawals := NewWithdrawalRepo(store)
	idem := NewIdempotencyRepo(store)
	w := seedWallet(t, store, "100", 0)

	dbTx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)

	locked, err := wallets.GetByUserIDForUpdate(ctx, dbTx, w.UserID)
	require.NoError(t, err)
	locked.Debit(domain.CurrencyUSDT, decimal.NewFromInt(40))
	require.NoError(t, wallets.UpdateBalances(ctx, dbTx, locked))

	entry := domain.NewWalletTransaction(w.UserID, domain.TransactionTypeWithdrawalFee, decimal.NewFromInt(1), domain.CurrencyUSDT, "fee", time.Now().UTC())
	require.NoError(t, txns.Create(ctx, dbTx, entry))
	req := &domain.WithdrawalRequest{ID: uuid.New(), UserID: w.UserID, Status: domain.WithdrawalStatusPending}
	require.NoError(t, withdrawals.Create(ctx, dbTx, req))
	require.NoError(t, idem.Create(ctx, dbTx, &domain.IdempotencyLog{Key: "k"}))

	require.NoError(t, dbTx.Rollback(ctx))

	got, err := wallets.GetByUserID(ctx, w.UserID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(got.USDTBalance))

	n, err := txns.CountByUser(ctx, w.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)

	gotReq, err := withdrawals.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, gotReq)

	log, err := idem.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, log)
}

func TestTransactor_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	wallets := NewWalletRepo(store)
	w := seedWallet(t, store, "100", 0)

	dbTx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)
	locked, err := wallets.GetByUserIDForUpdate(ctx, dbTx, w.UserID)
	require.NoError(t, err)
	locked.Credit(domain.CurrencySOD, decimal.NewFromInt(7))
	require.NoError(t, wallets.UpdateBalances(ctx, dbTx, locked))
	require.NoError(t, dbTx.Commit(ctx))

	assert.ErrorIs(t, dbTx.Rollback(ctx), pgx.ErrTxClosed)

	got, err := wallets.GetByUserID(ctx, w.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.SODBalance)
}

func TestTransactor_SerializesTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	transactor := NewTransactor(store)

	first, err := transactor.Begin(ctx)
	require.NoError(t, err)

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = transactor.Begin(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Commit(ctx))

	second, err := transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Rollback(ctx))
}

func TestTransactionRepo_DeleteFeeMatchPicksOldest(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewTransactionRepo(store)
	userID := uuid.New()
	base := time.Now().UTC()

	older := domain.NewWalletTransaction(userID, domain.TransactionTypeWithdrawalFee, decimal.NewFromInt(1), domain.CurrencyUSDT, "fee", base)
	newer := domain.NewWalletTransaction(userID, domain.TransactionTypeWithdrawalFee, decimal.NewFromInt(1), domain.CurrencyUSDT, "fee", base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, nil, older))
	require.NoError(t, repo.Create(ctx, nil, newer))

	deleted, err := repo.DeleteFeeMatch(ctx, nil, userID, decimal.NewFromInt(-1), base)
	require.NoError(t, err)
	assert.True(t, deleted)

	left, total, err := repo.ListByUser(ctx, userID, ports.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, newer.ID, left[0].ID)

	deleted, err = repo.DeleteFeeMatch(ctx, nil, userID, decimal.NewFromInt(-5), base)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTransactionRepo_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewTransactionRepo(store)
	userID := uuid.New()
	base := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		txn := domain.NewWalletTransaction(userID, domain.TransactionTypeDeposit, decimal.NewFromInt(1), domain.CurrencyUSDT, "dep", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, nil, txn))
		ids = append(ids, txn.ID)
	}
	require.NoError(t, repo.Create(ctx, nil, domain.NewWalletTransaction(uuid.New(), domain.TransactionTypeDeposit, decimal.NewFromInt(1), domain.CurrencyUSDT, "other", base)))

	page, total, err := repo.ListByUser(ctx, userID, ports.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	empty, _, err := repo.ListByUser(ctx, userID, ports.Page{Offset: 50})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTransactionRepo_EqualTimestampsOrderByID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewTransactionRepo(store)
	userID := uuid.New()
	now := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		txn := domain.NewWalletTransaction(userID, domain.TransactionTypeWithdrawalFee, decimal.NewFromInt(1), domain.CurrencyUSDT, "fee", now)
		require.NoError(t, repo.Create(ctx, nil, txn))
		ids = append(ids, txn.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) > 0 })

	for i := 0; i < 10; i++ {
		page, _, err := repo.ListByUser(ctx, userID, ports.Page{})
		require.NoError(t, err)
		require.Len(t, page, len(ids))
		for j := range ids {
			assert.Equal(t, ids[j], page[j].ID)
		}
	}

	// The oldest match is the lowest id when timestamps tie.
	deleted, err := repo.DeleteFeeMatch(ctx, nil, userID, decimal.NewFromInt(-1), now)
	require.NoError(t, err)
	assert.True(t, deleted)
	page, _, err := repo.ListByUser(ctx, userID, ports.Page{})
	require.NoError(t, err)
	require.Len(t, page, len(ids)-1)
	for _, txn := range page {
		assert.NotEqual(t, ids[len(ids)-1], txn.ID)
	}
}

func TestWithdrawalRepo_UpdateStatusRequiresPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewWithdrawalRepo(store)
	req := &domain.WithdrawalRequest{ID: uuid.New(), UserID: uuid.New(), Status: domain.WithdrawalStatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, nil, req))

	req.Status = domain.WithdrawalStatusCompleted
	require.NoError(t, repo.UpdateStatus(ctx, nil, req))

	req.Status = domain.WithdrawalStatusRejected
	assert.Error(t, repo.UpdateStatus(ctx, nil, req))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, got.Status)
}

func TestWithdrawalRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewWithdrawalRepo(store)
	alice, bob := uuid.New(), uuid.New()
	base := time.Now().UTC()

	for i, u := range []uuid.UUID{alice, alice, bob} {
		require.NoError(t, repo.Create(ctx, nil, &domain.WithdrawalRequest{
			ID: uuid.New(), UserID: u, Status: domain.WithdrawalStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, total, err := repo.List(ctx, ports.WithdrawalListParams{UserID: &alice})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	completed := domain.WithdrawalStatusCompleted
	list, total, err = repo.List(ctx, ports.WithdrawalListParams{Status: &completed})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	n, err := repo.CountByUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIdempotencyRepo_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepo(NewStore())
	require.NoError(t, repo.Create(ctx, nil, &domain.IdempotencyLog{Key: "u:deposit:ref"}))
	assert.ErrorIs(t, repo.Create(ctx, nil, &domain.IdempotencyLog{Key: "u:deposit:ref"}), ports.ErrDuplicateKey)
}

func TestSettingsRepo_UpsertAndGetAll(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepo(NewStore())
	require.NoError(t, repo.Upsert(ctx, map[string]string{domain.SettingUSDTCap: "500"}))
	require.NoError(t, repo.Upsert(ctx, map[string]string{domain.SettingUSDTCap: "600"}))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{domain.SettingUSDTCap: "600"}, all)
}

func TestAuditRepo_Entries(t *testing.T) {
	repo := NewAuditRepo(NewStore())
	require.NoError(t, repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionDeposit}))
	entries := repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionDeposit, entries[0].Action)
}

func TestStore_Health(t *testing.T) {
	store := NewStore()
	assert.Equal(t, "ledger_memory", store.Name())
	assert.NoError(t, store.Ping(context.Background()))
}
