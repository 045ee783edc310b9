package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// Transactor runs a function inside one database transaction. A transaction
// already carried by ctx is joined instead of nested.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type transactor struct {
	db PgxIface
}

func NewTransactor(db PgxIface) Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	txCtx, runAfterCommit := TrackAfterCommit(ctx)
	if err := fn(context.WithValue(txCtx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return runAfterCommit(context.WithoutCancel(ctx))
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	fns []func(ctx context.Context) error
}

// AfterCommit defers fn until the outermost transaction tracked on ctx has
// committed; a rollback drops it. Without a tracked transaction fn runs now.
func AfterCommit(ctx context.Context, fn func(ctx context.Context) error) error {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return nil
	}
	return fn(ctx)
}

// TrackAfterCommit returns a ctx that collects AfterCommit callbacks and the
// function that runs them in registration order. Transactor implementations
// call it once per outermost transaction.
func TrackAfterCommit(ctx context.Context) (context.Context, func(ctx context.Context) error) {
	hooks := &afterCommitHooks{}
	run := func(ctx context.Context) error {
		var errs []error
		for _, fn := range hooks.fns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return context.WithValue(ctx, afterCommitKey{}, hooks), run
}

// Conn returns the transaction carried by ctx, or db itself.
func Conn(ctx context.Context, db Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// ErrConflict wraps serialization failures, deadlocks and lock timeouts.
var ErrConflict = errors.New("transaction conflict")

func classify(err error) error {
	if IsRetryable(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// IsRetryable reports Postgres errors that a fresh attempt may not hit again.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}
	return false
}

func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
