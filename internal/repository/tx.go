package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/jmoiron/sqlx"
)

// DB wraps the pool and carries an open transaction through the context so
// repositories called from inside WithinTx share it.
type DB struct {
    X *sqlx.DB
}

func NewDB(db *sqlx.DB) *DB { return &DB{X: db} }

type txKey struct{}

// conn is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type conn interface {
    sqlx.ExtContext
    GetContext(ctx context.Context, dest any, query string, args ...any) error
    SelectContext(ctx context.Context, dest any, query string, args ...any) error
    NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

func (d *DB) conn(ctx context.Context) conn {
    if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
        return tx
    }
    return d.X
}

// lock returns the row-locking suffix when running inside a transaction.
func lock(ctx context.Context) string {
    if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
        return " FOR UPDATE"
    }
    return ""
}

// WithinTx runs fn in a single transaction. Nested calls join the outer
// transaction. The transaction is rolled back unless fn returns nil.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
    if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
        return fn(ctx)
    }
    tx, err := d.X.BeginTxx(ctx, nil)
    if err != nil {
        return fmt.Errorf("begin tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit tx: %w", err)
    }
    committed = true
    return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    return err
}

// affected returns ErrNotFound when an UPDATE touched no row.
func affected(res sql.Result, err error) error {
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}
