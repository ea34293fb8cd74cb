package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/vyrodovalexey/items-api/internal/model"
)

// Supported store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Dialect holds the statements that differ between SQL backends.
type Dialect struct {
	Name        string
	CreateTable string
	Reset       []string
}

// SQLiteDialect targets modernc.org/sqlite.
var SQLiteDialect = Dialect{
	Name: DriverSQLite,
	CreateTable: `CREATE TABLE IF NOT EXISTS items (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT    NOT NULL,
		price INTEGER NOT NULL
	)`,
	Reset: []string{
		"DELETE FROM items",
		"DELETE FROM sqlite_sequence WHERE name = 'items'",
	},
}

// MySQLDialect targets github.com/go-sql-driver/mysql.
var MySQLDialect = Dialect{
	Name: DriverMySQL,
	CreateTable: `CREATE TABLE IF NOT EXISTS items (
		id    BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name  TEXT   NOT NULL,
		price BIGINT NOT NULL
	)`,
	Reset: []string{
		"TRUNCATE TABLE items",
	},
}

// Compile-time interface guard.
var _ Store = (*SQLStore)(nil)

// SQLStore implements Store on database/sql. Both supported drivers
// use '?' placeholders, so only DDL and reset differ per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the given driver and DSN and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, dsn)
		dialect = SQLiteDialect
	case DriverMySQL:
		db, err = openMySQL(ctx, dsn)
		dialect = MySQLDialect
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	s, err := NewSQLStore(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewSQLStore wraps an open database and creates the items table if missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("create items table: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// openSQLite opens a SQLite database and applies pragmas.
// modernc.org/sqlite requires SQL statements, not DSN params.
func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}

	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", dsn, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return db, nil
}

// openMySQL parses the DSN and opens a connector-backed pool.
func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s/%s: %w", cfg.Addr, cfg.DBName, err)
	}

	return db, nil
}

// Count returns the total number of items.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// ListDesc returns a newest-first window of items.
func (s *SQLStore) ListDesc(ctx context.Context, offset, limit int) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, price FROM items ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0, limit)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *SQLStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	return getItem(ctx, s.db, id)
}

// Create inserts an item and returns it with the database-assigned ID.
func (s *SQLStore) Create(ctx context.Context, name string, price int64) (*model.Item, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO items (name, price) VALUES (?, ?)", name, price,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert item: last insert id: %w", err)
	}

	return &model.Item{ID: id, Name: name, Price: price}, nil
}

// Update overwrites an existing item. Existence is checked inside the
// same transaction because MySQL reports zero affected rows for no-op updates.
func (s *SQLStore) Update(ctx context.Context, id int64, name string, price int64) (*model.Item, error) {
	var updated *model.Item

	err := s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := getItem(ctx, tx, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE items SET name = ?, price = ? WHERE id = ?", name, price, id,
		); err != nil {
			return fmt.Errorf("update item %d: %w", id, err)
		}

		updated = &model.Item{ID: id, Name: name, Price: price}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes an item by its ID.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Reset removes all items and restarts ID assignment.
func (s *SQLStore) Reset(ctx context.Context) error {
	for _, stmt := range s.dialect.Reset {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset items (%s): %w", stmt, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *SQLStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getItem(ctx context.Context, q queryRower, id int64) (*model.Item, error) {
	var it model.Item
	err := q.QueryRowContext(ctx,
		"SELECT id, name, price FROM items WHERE id = ?", id,
	).Scan(&it.ID, &it.Name, &it.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &it, nil
}
