package storage

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/claude/liftlog/internal/models"
)

// DatabaseName and SchemaVersion identify the secondary store's schema.
const (
	DatabaseName  = "WorkoutTrackerDB"
	SchemaVersion = 1
)

//go:embed migrations
var migrationsFS embed.FS

// indexedColumns maps the indexed fields of the results collection to
// their extracted columns.
var indexedColumns = map[string]string{
	"date":       "date",
	"exerciseId": "exercise_id",
}

// RunMigrations applies the embedded migrations for dialect ("sqlite" or
// "postgres") against the database at url.
func RunMigrations(dialect, url string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("loading %s migrations: %w", dialect, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// resultColumns extracts the indexed fields of a results document. Fields
// that are absent or not strings are stored as NULL.
func resultColumns(value []byte) (date, exerciseID *string) {
	var doc map[string]any
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, nil
	}
	if s, ok := doc["date"].(string); ok {
		date = &s
	}
	if s, ok := doc["exerciseId"].(string); ok {
		exerciseID = &s
	}
	return date, exerciseID
}

// indexLookup resolves (coll, field, value) to a column and a string
// operand. ok is false when no index applies.
func indexLookup(coll models.Collection, field string, value any) (column, operand string, ok bool) {
	if coll != models.Results {
		return "", "", false
	}
	column, ok = indexedColumns[field]
	if !ok {
		return "", "", false
	}
	// Operands go through JSON so a time.Time matches its stored form.
	data, err := json.Marshal(value)
	if err != nil {
		return "", "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", "", false
	}
	return column, s, true
}

func checkCollection(coll models.Collection) error {
	if !coll.Valid() {
		return fmt.Errorf("unknown collection %q: %w", coll, models.ErrInvalidInput)
	}
	return nil
}

func storageErr(op string, coll models.Collection, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, coll, err, models.ErrStorageFailure)
}
