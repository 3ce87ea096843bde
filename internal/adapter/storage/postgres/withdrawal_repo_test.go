package postgres

import (
	"context"
	"testing"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWithdrawal(userID uuid.UUID) *domain.WithdrawalRequest {
	feeID := uuid.New()
	return &domain.WithdrawalRequest{
		ID:               uuid.New(),
		UserID:           userID,
		Amount:           dec("50"),
		Currency:         domain.CurrencyUSDT,
		WalletAddress:    "TXYZ1234567890",
		Network:          domain.DefaultNetwork,
		Status:           domain.WithdrawalStatusPending,
		FeeTransactionID: &feeID,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func withdrawalColumns() []string {
	return []string{"id", "user_id", "amount", "currency", "wallet_address", "network",
		"status", "admin_notes", "fee_transaction_id", "created_at", "processed_at"}
}

func withdrawalRow(rows *pgxmock.Rows, w *domain.WithdrawalRequest) *pgxmock.Rows {
	return rows.AddRow(
		w.ID, w.UserID, w.Amount, w.Currency, w.WalletAddress, w.Network,
		w.Status, w.AdminNotes, w.FeeTransactionID, w.CreatedAt, w.ProcessedAt,
	)
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.UserID, w.Amount, w.Currency, w.WalletAddress, w.Network,
			w.Status, w.AdminNotes, w.FeeTransactionID, w.CreatedAt, w.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), dbTx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalColumns()), w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, domain.WithdrawalStatusPending, result.Status)
	require.NotNil(t, result.FeeTransactionID)
	assert.Equal(t, *w.FeeTransactionID, *result.FeeTransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(withdrawalColumns()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestWithdrawalRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalColumns()), w))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), dbTx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())
	now := time.Now().UTC()
	w.Status = domain.WithdrawalStatusRejected
	w.AdminNotes = strPtr("address blacklisted")
	w.ProcessedAt = &now

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests SET status .+ AND status = 'pending'").
		WithArgs(w.Status, w.AdminNotes, w.ProcessedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateStatus(context.Background(), dbTx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus_NotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, w)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pending withdrawal request not found")
}

func TestWithdrawalRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	userID := uuid.New()
	status := domain.WithdrawalStatusPending
	w := newTestWithdrawal(userID)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests WHERE user_id = \\$1 AND status = \\$2").
		WithArgs(userID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE user_id = \\$1 AND status = \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(userID, status, 10, 0).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalColumns()), w))

	reqs, total, err := repo.List(context.Background(), ports.WithdrawalListParams{
		UserID: &userID,
		Status: &status,
		Page:   ports.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reqs, 1)
	assert.Equal(t, w.ID, reqs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_List_NoFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests ORDER BY created_at DESC, id DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(ports.DefaultPageLimit, 0).
		WillReturnRows(pgxmock.NewRows(withdrawalColumns()))

	reqs, total, err := repo.List(context.Background(), ports.WithdrawalListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, reqs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_CountByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
