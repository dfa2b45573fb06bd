package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect adapts the "?" placeholders used in this package to the driver.
type dialect string

func (d dialect) rebind(query string) string {
	if d != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLRepo implements Repo on database/sql for SQLite or PostgreSQL.
type SQLRepo struct {
	db      *sql.DB
	dialect dialect
	log     *zap.Logger
}

var _ Repo = (*SQLRepo)(nil)

// Open connects to the database, applies driver settings and bootstraps the schema.
// For sqlite the dsn is a file path; for postgres a libpq connection string.
func Open(ctx context.Context, driver, dsn string) (*SQLRepo, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}
	return bootstrap(ctx, db, DriverSQLite)
}

// OpenPostgres connects using a libpq connection string.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return bootstrap(ctx, db, DriverPostgres)
}

func bootstrap(ctx context.Context, db *sql.DB, d dialect) (*SQLRepo, error) {
	if err := runMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLRepo{db: db, dialect: d, log: zap.NewNop()}, nil
}

// SetLogger sets where unreadable rows are reported.
func (r *SQLRepo) SetLogger(log *zap.Logger) {
	if log != nil {
		r.log = log
	}
}

// Close releases the underlying database resources.
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectUser = `SELECT chat_id, lat, lon, tz_offset, notify FROM weatherbot`

// GetUser returns the record for chatID or domain.ErrUserNotFound.
func (r *SQLRepo) GetUser(ctx context.Context, chatID string) (*domain.User, error) {
	return getUser(ctx, r.db, r.dialect, r.log, chatID)
}

// ListNotified returns every user with a daily notification time.
func (r *SQLRepo) ListNotified(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` WHERE notify IS NOT NULL ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list notified: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		var bad *badNotifyError
		if errors.As(err, &bad) {
			r.log.Warn("skipping user with unreadable notify time",
				zap.String("chatID", bad.chatID), zap.String("notify", bad.raw))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", domain.ErrPersistence, err)
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list notified: %v", domain.ErrPersistence, err)
	}
	return res, nil
}

// CountUsers returns the number of registered users.
func (r *SQLRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM weatherbot`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count users: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func (r *SQLRepo) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: commit: %v", domain.ErrPersistence, cerr)
		}
	}()
	return fn(&sqlTx{tx: tx, dialect: r.dialect, log: r.log})
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getUser(ctx context.Context, q querier, d dialect, log *zap.Logger, chatID string) (*domain.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, d.rebind(selectUser+` WHERE chat_id = ?`), chatID))
	var bad *badNotifyError
	if errors.As(err, &bad) {
		log.Warn("unreadable notify time, loading user without it",
			zap.String("chatID", bad.chatID), zap.String("notify", bad.raw))
		return u, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", domain.ErrPersistence, err)
	}
	return u, nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
	log     *zap.Logger
}

func (t *sqlTx) GetUser(ctx context.Context, chatID string) (*domain.User, error) {
	return getUser(ctx, t.tx, t.dialect, t.log, chatID)
}

// InsertUser adds a new record. An existing row is never overwritten.
func (t *sqlTx) InsertUser(ctx context.Context, u domain.User) error {
	var exists int
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(`SELECT COUNT(1) FROM weatherbot WHERE chat_id = ?`), u.ChatID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: check user: %v", domain.ErrPersistence, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyRegistered, u.ChatID)
	}
	_, err = t.tx.ExecContext(ctx, t.dialect.rebind(`
		INSERT INTO weatherbot (chat_id, lat, lon, tz_offset, notify)
		VALUES (?, ?, ?, ?, ?)`),
		u.ChatID, u.Lat, u.Lon, u.Offset, toNullString(u.Notify),
	)
	if err != nil {
		return fmt.Errorf("%w: insert user: %v", domain.ErrPersistence, err)
	}
	return nil
}

// DeleteUser removes a record and reports whether one existed.
func (t *sqlTx) DeleteUser(ctx context.Context, chatID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(`DELETE FROM weatherbot WHERE chat_id = ?`), chatID)
	if err != nil {
		return false, fmt.Errorf("%w: delete user: %v", domain.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete user: %v", domain.ErrPersistence, err)
	}
	return n > 0, nil
}

// SetNotify updates (or clears, when n is nil) the notification time.
func (t *sqlTx) SetNotify(ctx context.Context, chatID string, n *domain.NotifyTime) error {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(`UPDATE weatherbot SET notify = ? WHERE chat_id = ?`),
		toNullString(n), chatID)
	if err != nil {
		return fmt.Errorf("%w: set notify: %v", domain.ErrPersistence, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, chatID)
	}
	return nil
}
