package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"nicepg/internal/config"
)

type conn interface {
	exec(ctx context.Context, sql string, args ...any) (int64, error)
	query(ctx context.Context, sql string, args ...any) ([]Row, error)
}

type txConn interface {
	conn
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

type pool interface {
	conn
	begin(ctx context.Context) (txConn, error)
	ping(ctx context.Context) error
	close() error
}

// Option configures a DB.
type Option func(*DB)

// WithQueryTimeout bounds every statement run through the DB or its
// transactions. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.queryTimeout = d }
}

// WithLogger sets the logger used for rollback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// DB is a connection pool plus the query helpers bound to it. Its embedded
// Handle runs statements on any pooled connection; WithTransaction hands out
// a Handle bound to a single transaction.
type DB struct {
	*Handle
	pool         pool
	dialect      Dialect
	queryTimeout time.Duration
	logger       *slog.Logger
}

func newDB(p pool, d Dialect, opts ...Option) *DB {
	db := &DB{
		pool:    p,
		dialect: d,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.Handle = db.bind(p)
	return db
}

// Open connects to the database described by cfg and verifies the
// connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	connectCtx := ctx
	if cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
		defer cancel()
	}

	opts = append([]Option{WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	switch dialect {
	case DuckDB:
		sqlDB, err := openDuckDB(connectCtx, cfg)
		if err != nil {
			return nil, err
		}
		return FromDuckDB(sqlDB, opts...), nil
	default:
		pgPool, err := openPostgres(connectCtx, cfg)
		if err != nil {
			return nil, err
		}
		return FromPgxPool(pgPool, opts...), nil
	}
}

func (db *DB) bind(c conn) *Handle {
	return &Handle{conn: c, dialect: db.dialect, queryTimeout: db.queryTimeout}
}

// Dialect reports the SQL engine behind the pool.
func (db *DB) Dialect() Dialect { return db.dialect }

// Ping verifies a connection can be acquired.
func (db *DB) Ping(ctx context.Context) error { return db.pool.ping(ctx) }

// Close closes the pool.
func (db *DB) Close() error { return db.pool.close() }

// TxFunc runs inside a transaction. tx is only valid until it returns.
type TxFunc func(ctx context.Context, tx *Handle) error

// WithTransaction runs fn inside a transaction on one pooled connection. The
// transaction commits when fn returns nil and rolls back when fn returns an
// error or panics; the error (or panic) is passed on. The connection goes
// back to the pool in every case.
func (db *DB) WithTransaction(ctx context.Context, fn TxFunc) error {
	tx, err := db.pool.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.rollback(context.WithoutCancel(ctx)); rbErr != nil {
			db.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, db.bind(tx)); err != nil {
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Handle runs statements on the pool or on one transaction.
type Handle struct {
	conn         conn
	dialect      Dialect
	queryTimeout time.Duration
}

func (h *Handle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.queryTimeout)
}

// Exec runs sql verbatim with positional ($1, $2, ...) args and reports the
// number of affected rows. Without args the text may hold several statements.
func (h *Handle) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	return h.conn.exec(ctx, sql, args...)
}

// Query runs sql with positional args and returns every result row.
func (h *Handle) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	return h.conn.query(ctx, sql, args...)
}

// Find returns the rows of table matching cond.
func (h *Handle) Find(ctx context.Context, table string, cond Condition) ([]Row, error) {
	query, args := buildSelect(h.dialect, table, cond)
	return h.Query(ctx, query, args...)
}

// FindOne returns the first row of table matching cond, or nil.
func (h *Handle) FindOne(ctx context.Context, table string, cond Condition) (Row, error) {
	rows, err := h.Find(ctx, table, cond)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert writes one row. When returning names columns the inserted row's
// values for them are returned, otherwise the row is nil. Unique index
// violations come back as *UniqueIndexError.
func (h *Handle) Insert(ctx context.Context, table string, values Values, returning ...string) (Row, error) {
	query, args, err := buildInsert(table, values, returning)
	if err != nil {
		return nil, err
	}
	if len(returning) == 0 {
		if _, err := h.Exec(ctx, query, args...); err != nil {
			return nil, translateError(h.dialect, err, table, sortedKeys(values))
		}
		return nil, nil
	}
	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(h.dialect, err, table, sortedKeys(values))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update sets values on the rows of table matching cond. An empty cond
// updates every row. Unique index violations come back as *UniqueIndexError.
func (h *Handle) Update(ctx context.Context, table string, values Values, cond Condition) error {
	query, args, err := buildUpdate(h.dialect, table, values, cond)
	if err != nil {
		return err
	}
	if _, err := h.Exec(ctx, query, args...); err != nil {
		return translateError(h.dialect, err, table, sortedKeys(values))
	}
	return nil
}

// Delete removes the rows of table matching cond and reports how many went.
func (h *Handle) Delete(ctx context.Context, table string, cond Condition) (int64, error) {
	query, args := buildDelete(h.dialect, table, cond)
	return h.Exec(ctx, query, args...)
}
