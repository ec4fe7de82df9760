/*
Package sqlstore implements ticketing.Store on database/sql.

PURPOSE:
  One set of queries serves two dialects:
    sqlite3 (github.com/mattn/go-sqlite3) - tests, single-site installs
    mysql   (github.com/go-sql-driver/mysql) - shared production database
  Only the schema DDL differs; every query uses portable SQL and "?"
  placeholders.

TRANSACTIONS:
  Begin returns a *Tx that carries both the reads and the writes. Writes
  are not reachable from *Store, so every mutation happens inside a
  transaction. Tx.Rollback after Commit is a no-op, so callers can always
  defer it.

COMPARE-AND-SWAP:
  Status changes are "UPDATE ... WHERE id = ? AND status = ?". Zero rows
  affected means another transaction moved the row first, reported as
  ticketing.ErrStaleStatus. MySQL connections are opened with
  clientFoundRows so RowsAffected counts matched rows, like SQLite.

SQLITE CONCURRENCY:
  SQLite allows one writer. The pool is capped at one connection, so
  transactions queue in database/sql instead of failing with SQLITE_BUSY,
  and ":memory:" databases are shared by every caller.

TABLES:
  scopes, staff, rate_categories, stock_bundles, distributions,
  accounting_entries, staff_settlements

USAGE:
  store, err := sqlstore.OpenSQLite("./data/tickets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ticketing.New(store)
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/ticket-engine/ticketing"
)

// Dialect selects the schema flavor.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite3"
	DialectMySQL  Dialect = "mysql"
)

var _ ticketing.Store = (*Store)(nil)

// Store is the non-transactional handle. It only exposes reads.
type Store struct {
	reader
	db      *sql.DB
	dialect Dialect
}

// Open opens a store for driver ("sqlite3" or "mysql") and migrates it.
func Open(driver, dsn string) (*Store, error) {
	switch Dialect(driver) {
	case DialectSQLite, "sqlite":
		return OpenSQLite(dsn)
	case DialectMySQL:
		return OpenMySQL(dsn)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// OpenSQLite opens a SQLite database file. Use ":memory:" for tests.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newStore(db, DialectSQLite)
}

// OpenMySQL opens a MySQL database from a go-sql-driver DSN.
func OpenMySQL(dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return newStore(db, DialectMySQL)
}

func newStore(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{reader: reader{q: db}, db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which schema flavor the store runs.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate() error {
	schema := sqliteSchema
	if s.dialect == DialectMySQL {
		schema = mysqlSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, strings.TrimSpace(stmt))
		}
	}
	return nil
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (ticketing.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{reader: reader{q: sqlTx}, writer: writer{reader: reader{q: sqlTx}}, tx: sqlTx}, nil
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Tx is a database transaction carrying reads and writes.
type Tx struct {
	reader
	writer
	tx   *sql.Tx
	done bool
}

var _ ticketing.Tx = (*Tx)(nil)

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It does nothing after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// =============================================================================
// HELPERS
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1451
	}
	return false
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func date(t time.Time) string {
	return t.UTC().Format(ticketing.DateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(ticketing.DateLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// where joins conditions into a WHERE clause.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
