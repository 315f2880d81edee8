package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "modernc.org/sqlite"

	"github.com/claude/liftlog/internal/models"
)

// SQLiteStore is the embedded IndexedStore variant: one table per
// collection, with the results table carrying indexed date and
// exercise_id columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) dir/WorkoutTrackerDB.db and applies
// the schema.
func OpenSQLiteStore(ctx context.Context, dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	path, err := filepath.Abs(filepath.Join(dir, DatabaseName+".db"))
	if err != nil {
		return nil, fmt.Errorf("resolving db path: %w", err)
	}

	if err := RunMigrations("sqlite", "sqlite://"+path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Kind() string { return KindSecondary }

func (s *SQLiteStore) Get(ctx context.Context, coll models.Collection, key string) ([]byte, bool, error) {
	if err := checkCollection(coll); err != nil {
		return nil, false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+string(coll)+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", coll, err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, coll models.Collection, key string, value []byte) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	var err error
	if coll == models.Results {
		date, exerciseID := resultColumns(value)
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO results (key, value, date, exercise_id) VALUES (?, ?, ?, ?)`,
			key, string(value), date, exerciseID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO `+string(coll)+` (key, value) VALUES (?, ?)`,
			key, string(value))
	}
	if err != nil {
		return storageErr("put", coll, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, coll models.Collection) ([]Entry, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM `+string(coll)+` ORDER BY key`)
	if err != nil {
		return nil, storageErr("list", coll, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storageErr("scanning", coll, err)
		}
		entries = append(entries, Entry{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", coll, err)
	}
	return entries, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, coll models.Collection, key string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+string(coll)+` WHERE key = ?`, key); err != nil {
		return storageErr("delete", coll, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, coll models.Collection) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+string(coll)); err != nil {
		return storageErr("clear", coll, err)
	}
	return nil
}

// QueryIndex answers equality queries on results.date and results.exerciseId.
func (s *SQLiteStore) QueryIndex(ctx context.Context, coll models.Collection, field string, value any) ([][]byte, bool, error) {
	column, operand, ok := indexLookup(coll, field, value)
	if !ok {
		return nil, false, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM results WHERE `+column+` = ? ORDER BY key`, operand)
	if err != nil {
		return nil, true, storageErr("query", coll, err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, true, storageErr("scanning", coll, err)
		}
		values = append(values, []byte(v))
	}
	if err := rows.Err(); err != nil {
		return nil, true, storageErr("query", coll, err)
	}
	return values, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
