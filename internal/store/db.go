package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cesargomez89/artshelf/internal/constants"
)

var ErrNotFound = errors.New("not found")

// Pragmas applied to every pooled connection. busy_timeout is per connection,
// so it has to travel in the DSN rather than a one-off Exec.
var connectionPragmas = []string{
	"busy_timeout(30000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

type dbOps interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// DB is the job store. Inside RunInTx the same methods run against the
// transaction.
type DB struct {
	dbOps
	root *sqlx.DB
	path string
}

func NewSQLiteDB(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{dbOps: db, root: db, path: path}, nil
}

func buildDSN(path string) string {
	params := make([]string, 0, len(connectionPragmas)+1)
	for _, p := range connectionPragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Path returns the database file path the store was opened with.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.root.Close()
}

// RunInTx executes fn inside a single transaction. Nested calls reuse the
// outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(txDB *DB) error) error {
	if _, inTx := db.dbOps.(*sqlx.Tx); inTx {
		return fn(db)
	}

	tx, err := db.root.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	txDB := &DB{dbOps: tx, root: db.root, path: db.path}
	if err := fn(txDB); err != nil {
		return err
	}
	return tx.Commit()
}

func ts(t time.Time) string {
	return t.UTC().Format(constants.TimeLayout)
}

func now() string {
	return ts(time.Now())
}

func nullableString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
