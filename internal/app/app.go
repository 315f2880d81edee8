// Package app assembles the tracker stack from a loaded configuration.
// Every binary opens the same stack so they agree on where data lives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/retrieval"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/suggest"
	"github.com/claude/liftlog/internal/tracker"
)

// FlatFileName is the primary substrate's file under storage.dir.
const FlatFileName = "liftlog-flat.json"

// Stack is an opened tracker with the services built around it.
type Stack struct {
	Flat    storage.FlatStore
	Tracker *tracker.Tracker
	Engine  *suggest.Engine
	Raw     *retrieval.Store
}

// Open builds the persistence layer, tracker, engine and raw store, then
// initializes the tracker and loads program.source when configured. m may
// be nil.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Manager) (*Stack, error) {
	st := &Stack{}

	switch cfg.Storage.Primary {
	case config.PrimaryRedis:
		rf, err := storage.DialRedisFlat(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("opening redis primary: %w", err)
		}
		st.Flat = rf
	default:
		lf, err := storage.OpenLocalFlat(filepath.Join(cfg.Storage.Dir, FlatFileName), cfg.Storage.QuotaBytes)
		if err != nil {
			return nil, fmt.Errorf("opening file primary: %w", err)
		}
		st.Flat = lf
	}

	layer := storage.New(st.Flat, secondaryOpener(cfg), storage.Options{
		QuotaBytes:   cfg.Storage.QuotaBytes,
		MinFreeBytes: cfg.Storage.MinFreeBytes,
		Metrics:      m,
	}, log)

	st.Tracker = tracker.New(layer, log, tracker.WithMetrics(m))
	st.Engine = suggest.New(cfg.Suggest.CacheMB<<20, log).WithMetrics(m)
	st.Raw = retrieval.New(st.Flat, cfg.Program.Name, log)

	if err := st.Tracker.Init(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("initializing tracker: %w", err)
	}
	if src := cfg.Program.Source; src != "" {
		if err := st.Tracker.LoadWorkoutDataFrom(ctx, src); err != nil {
			st.Close()
			return nil, fmt.Errorf("loading program from %s: %w", src, err)
		}
		log.Info("program loaded", "source", src)
	}
	return st, nil
}

func secondaryOpener(cfg *config.Config) storage.SecondaryOpener {
	if cfg.Storage.Secondary == config.SecondaryPostgres {
		dsn := cfg.Database.DSN()
		return func(ctx context.Context) (storage.KeyValueStore, error) {
			s, err := storage.OpenPostgresStore(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	dir := cfg.Storage.Dir
	return func(ctx context.Context) (storage.KeyValueStore, error) {
		s, err := storage.OpenSQLiteStore(ctx, dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Close disposes the tracker. The layer closes the primary substrate, so
// a redis client is released there.
func (s *Stack) Close() error {
	return s.Tracker.Close()
}
