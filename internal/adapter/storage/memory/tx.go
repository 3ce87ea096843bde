package memory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNotSupported = errors.New("memory: raw SQL is not supported")

// memTx is the pgx.Tx handed to repositories. Only Commit and Rollback carry
// meaning; the SQL methods exist to satisfy the interface.
type memTx struct {
	store *Store
	done  bool
	undo  []func()
}

func (t *memTx) finish(rollback bool) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if rollback {
		t.store.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.store.mu.Unlock()
	}
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	return t.finish(false)
}

// Rollback reverts every write of the transaction. After Commit it returns
// pgx.ErrTxClosed so deferred rollbacks are harmless.
func (t *memTx) Rollback(ctx context.Context) error {
	return t.finish(true)
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errNotSupported }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNotSupported
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNotSupported
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNotSupported
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNotSupported
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNotSupported }
