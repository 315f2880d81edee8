package storage

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claude/liftlog/internal/models"
)

// PostgresStore is the server-database IndexedStore variant. Documents are
// kept as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore applies the schema and connects a pool to dsn.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := RunMigrations("postgres", dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Kind() string { return KindSecondary }

func (s *PostgresStore) Get(ctx context.Context, coll models.Collection, key string) ([]byte, bool, error) {
	if err := checkCollection(coll); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM `+string(coll)+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", coll, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, coll models.Collection, key string, value []byte) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	var err error
	if coll == models.Results {
		date, exerciseID := resultColumns(value)
		_, err = s.pool.Exec(ctx, `
			INSERT INTO results (key, value, date, exercise_id) VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				date = EXCLUDED.date,
				exercise_id = EXCLUDED.exercise_id`,
			key, string(value), date, exerciseID)
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO `+string(coll)+` (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			key, string(value))
	}
	if err != nil {
		return storageErr("put", coll, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, coll models.Collection) ([]Entry, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM `+string(coll)+` ORDER BY key`)
	if err != nil {
		return nil, storageErr("list", coll, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, storageErr("scanning", coll, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", coll, err)
	}
	return entries, nil
}

func (s *PostgresStore) Delete(ctx context.Context, coll models.Collection, key string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+string(coll)+` WHERE key = $1`, key); err != nil {
		return storageErr("delete", coll, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, coll models.Collection) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+string(coll)); err != nil {
		return storageErr("clear", coll, err)
	}
	return nil
}

// QueryIndex answers equality queries on results.date and results.exerciseId.
func (s *PostgresStore) QueryIndex(ctx context.Context, coll models.Collection, field string, value any) ([][]byte, bool, error) {
	column, operand, ok := indexLookup(coll, field, value)
	if !ok {
		return nil, false, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT value FROM results WHERE `+column+` = $1 ORDER BY key`, operand)
	if err != nil {
		return nil, true, storageErr("query", coll, err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, true, storageErr("scanning", coll, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, true, storageErr("query", coll, err)
	}
	return values, true, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
