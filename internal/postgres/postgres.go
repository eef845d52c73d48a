package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lm-legal/payments/internal/config"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"go.uber.org/fx"
)

// IClient is the transaction boundary used by services
type IClient interface {
	// WithTx runs fn inside a transaction. Nested calls reuse the outer
	// transaction through a savepoint.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// HealthCheck reports whether the database answers
	HealthCheck(ctx context.Context) error
}

// DB wraps sqlx.DB to provide transaction management
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

var _ IClient = (*DB)(nil)

// Querier interface defines all database operations
// Both *sqlx.DB and *sqlx.Tx implement these methods
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Module wires the storage handle into the application lifecycle: the pool is
// opened by the constructor, pinged on start and closed on stop.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			func(db *DB) IClient { return db },
		),
		fx.Invoke(registerHooks),
	)
}

// NewDB opens the connection pool
func NewDB(cfg *config.Configuration, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Open("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open database").
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)

	return NewFromSQLX(db, log), nil
}

// NewFromSQLX wraps an existing handle, used by tests with sqlmock
func NewFromSQLX(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

func registerHooks(lc fx.Lifecycle, db *DB, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.HealthCheck(ctx); err != nil {
				return err
			}
			log.Infow("connected to postgres")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("closing postgres connection pool")
			return db.Close()
		},
	})
}

func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Database is not reachable").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// GetQuerier returns either the transaction from context or the base DB
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return NewTracedQuerier(tx.Tx, db.logger, tx.ID)
	}
	return NewTracedQuerier(db.DB, db.logger, "")
}

// UniqueViolation reports the violated constraint name when err is a unique violation
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

// WrapError marks err as a storage failure unless it already carries a sentinel
func WrapError(err error, hint string) error {
	if err == nil {
		return nil
	}
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}
