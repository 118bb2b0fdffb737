package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/canopyhq/canopy/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	id       TEXT PRIMARY KEY,
	kind     TEXT NOT NULL,
	vault_id TEXT NOT NULL DEFAULT '',
	name     TEXT NOT NULL DEFAULT '',
	modified INTEGER NOT NULL,
	data     BLOB
);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
CREATE INDEX IF NOT EXISTS idx_items_vault ON items(vault_id);
CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);
`

// SQLiteStore persists items in a single-file SQLite database. The pure-Go
// driver keeps the binary cgo-free.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema. WAL mode keeps readers unblocked during pushes.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "open database %s", path)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn between the push worker and foreground saves.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "apply %s", pragma)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ensure schema in %s", path)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Get implements [Tx].
func (s *SQLiteStore) Get(ctx context.Context, id string) (Item, error) {
	return sqliteGet(ctx, s.db, id)
}

// Put implements [Tx].
func (s *SQLiteStore) Put(ctx context.Context, item Item) error {
	return sqlitePut(ctx, s.db, item)
}

// Delete implements [Tx].
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return sqliteDelete(ctx, s.db, id)
}

// QueryByIndex implements [Tx].
func (s *SQLiteStore) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	return sqliteQuery(ctx, s.db, field, value)
}

// Transaction implements [Store] with a real database transaction.
// ReadOnly is enforced above the driver: SQLite transaction flavors vary
// by driver, plain rejection of writes does not.
func (s *SQLiteStore) Transaction(ctx context.Context, mode Mode, tables []string, fn func(tx Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageTransaction, err, "begin transaction")
	}
	view := Tx(&sqliteTx{tx: dbtx})
	if mode == ReadOnly {
		view = readonlyTx{view}
	}
	if err := fn(view); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			return errors.Wrap(errors.ErrCodeStorageTransaction, rbErr, "rollback after: %v", err)
		}
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageTransaction, err, "commit transaction")
	}
	return nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(ctx context.Context, id string) (Item, error) {
	return sqliteGet(ctx, t.tx, id)
}

func (t *sqliteTx) Put(ctx context.Context, item Item) error {
	return sqlitePut(ctx, t.tx, item)
}

func (t *sqliteTx) Delete(ctx context.Context, id string) error {
	return sqliteDelete(ctx, t.tx, id)
}

func (t *sqliteTx) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	return sqliteQuery(ctx, t.tx, field, value)
}

// querier is satisfied by *sql.DB and *sql.Tx so the statement helpers
// serve both paths.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteGet(ctx context.Context, q querier, id string) (Item, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, kind, vault_id, name, modified, data FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Item{}, errors.New(errors.ErrCodeNotFound, "item %s", id)
	}
	if err != nil {
		return Item{}, errors.Wrap(errors.ErrCodeStorageRead, err, "get item %s", id)
	}
	return item, nil
}

func sqlitePut(ctx context.Context, q querier, item Item) error {
	if item.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "item has no id")
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO items (id, kind, vault_id, name, modified, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			vault_id = excluded.vault_id,
			name = excluded.name,
			modified = excluded.modified,
			data = excluded.data`,
		item.ID, string(item.Kind), item.VaultID, item.Name, item.Modified.UnixNano(), item.Data)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "put item %s", item.ID)
	}
	return nil
}

func sqliteDelete(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "delete item %s", id)
	}
	return nil
}

func sqliteQuery(ctx context.Context, q querier, field, value string) ([]Item, error) {
	column, ok := columnFor(field)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "field %q is not indexed", field)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, kind, vault_id, name, modified, data FROM items WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "query items by %s", field)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "scan item")
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "iterate items")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item Item
		kind string
		mod  int64
	)
	if err := row.Scan(&item.ID, &kind, &item.VaultID, &item.Name, &mod, &item.Data); err != nil {
		return Item{}, err
	}
	item.Kind = Kind(kind)
	item.Modified = time.Unix(0, mod).UTC()
	return item, nil
}
