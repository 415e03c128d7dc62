// Package repository implements all database access for the event reservation
// system. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a DBTX that can open transactions.
type DB interface {
	DBTX
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

const (
	defaultTxAttempts = 3
	baseRetryDelay    = 10 * time.Millisecond
	maxRetryDelay     = 200 * time.Millisecond
)

// Transactor runs functions inside a database transaction, retrying the whole
// unit of work when PostgreSQL reports a serialization failure or deadlock.
//
// Transactions run at READ COMMITTED; callers take the row locks they need
// with SELECT ... FOR UPDATE.
type Transactor struct {
	db       DB
	attempts int
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransactor builds a Transactor making at most attempts tries per unit of
// work. Values below 1 fall back to 3.
func NewTransactor(db DB, attempts int) *Transactor {
	if attempts < 1 {
		attempts = defaultTxAttempts
	}
	return &Transactor{db: db, attempts: attempts, sleep: sleepCtx}
}

// WithinTx runs fn in a transaction and commits when fn returns nil. fn may run
// more than once, so it must not leak state between attempts.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		err = t.run(ctx, fn)
		if err == nil || !isConflict(err) {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"code":    pgCode(err),
		}).Debug("transaction conflict")

		if attempt == t.attempts {
			break
		}
		if serr := t.sleep(ctx, backoff(attempt)); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
}

func (t *Transactor) run(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := t.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved, panics included.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logrus.WithError(rbErr).Warn("rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// backoff doubles per attempt with up to 50% jitter, capped at maxRetryDelay.
func backoff(attempt int) time.Duration {
	d := baseRetryDelay << (attempt - 1)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d/2 + rand.N(d/2+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
