package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "ledger_db", hc.Name())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT to_regclass\\('public.wallets'\\)").
		WillReturnRows(pgxmock.NewRows([]string{"ready"}).AddRow(true))
	assert.NoError(t, hc.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, hc.Ping(context.Background()), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_UnmigratedDatabase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(pgxmock.NewRows([]string{"ready"}).AddRow(false))
	assert.ErrorIs(t, hc.Ping(context.Background()), errSchemaMissing)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("permission denied"))
	err = hc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check ledger schema")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	_, err = NewTransactor(mock).Begin(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")

	assert.NoError(t, mock.ExpectationsWereMet())
}
