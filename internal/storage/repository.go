// Package storage is the SQL implementation of store.Store for SQLite and
// PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/store"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements store.Store on database/sql. Inside InTx it is bound
// to a *sql.Tx and db is nil.
type Repository struct {
	db      *sql.DB
	q       queryer
	dialect Dialect
	logger  *log.Logger
}

var _ store.Store = (*Repository)(nil)

// Config selects and locates the database.
type Config struct {
	Dialect Dialect
	// SQLitePath is the database file for the sqlite dialect.
	SQLitePath string
	// PostgresDSN is the connection string for the postgres dialect.
	PostgresDSN  string
	MaxOpenConns int
}

func (c Config) dsn() (string, error) {
	switch c.Dialect {
	case SQLite:
		if c.SQLitePath == "" {
			return "", errors.New("sqlite path is required")
		}
		return SQLiteDSN(c.SQLitePath), nil
	case Postgres:
		if c.PostgresDSN == "" {
			return "", errors.New("postgres DSN is required")
		}
		return c.PostgresDSN, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", c.Dialect)
	}
}

// Open connects, runs migrations and returns a ready repository.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	if cfg.Dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}
	switch {
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	case cfg.Dialect == SQLite:
		// single writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(cfg.Dialect, dsn); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithComponent(log.ComponentStorage).Info("Database ready", "dialect", cfg.Dialect)

	return &Repository{
		db:      db,
		q:       db,
		dialect: cfg.Dialect,
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction; nested calls reuse the outer one.
func (r *Repository) InTx(ctx context.Context, fn func(store.Store) error) error {
	if r.db == nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txRepo := &Repository{q: tx, dialect: r.dialect, logger: r.logger}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.ErrorContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (r *Repository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := r.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// mustAffect maps a zero-row update or delete to core.ErrNotFound.
func mustAffect(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func notFoundOr(err error, kind string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", kind, id, err)
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// dbDate scans DATE columns (time.Time from postgres) and TEXT columns (sqlite).
type dbDate struct {
	core.Date
}

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Date = core.NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func (d *dbDate) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	parsed, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	d.Date = parsed
	return nil
}
