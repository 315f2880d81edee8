package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/logging"
	"github.com/claude/liftlog/internal/tracker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("export", "", "write a backup to this file (a directory gets a dated file name)")
	importPath := flag.String("import", "", "restore a backup from this file")
	merge := flag.Bool("merge", false, "with -import: keep existing records instead of replacing them")
	alphaPath := flag.String("alpha", "", "import an Alpha Progression CSV export")
	showStats := flag.Bool("stats", false, "print storage and workout statistics")
	flag.Parse()

	if *exportPath == "" && *importPath == "" && *alphaPath == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-backup -config config.yaml [-export file] [-import file [-merge]] [-alpha file.csv] [-stats]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser := logging.New(cfg.Log, os.Stdout)
	defer logCloser.Close()

	ctx := context.Background()
	st, err := app.Open(ctx, cfg, log, nil)
	if err != nil {
		log.Error("failed to open tracker", "error", err)
		os.Exit(1)
	}
	code := run(ctx, st.Tracker, log, *exportPath, *importPath, *merge, *alphaPath, *showStats)
	if err := st.Close(); err != nil {
		log.Error("closing tracker", "error", err)
	}
	os.Exit(code)
}

// run executes the requested steps in a fixed order: import, alpha,
// export, stats. The export therefore includes what was just imported.
func run(ctx context.Context, tr *tracker.Tracker, log *slog.Logger, exportPath, importPath string, merge bool, alphaPath string, showStats bool) int {
	if importPath != "" {
		data, err := os.ReadFile(importPath)
		if err != nil {
			log.Error("reading backup", "path", importPath, "error", err)
			return 1
		}
		if err := tr.ImportData(ctx, string(data), merge); err != nil {
			log.Error("import failed", "error", err)
			return 1
		}
		log.Info("backup imported", "path", importPath, "merge", merge)
	}

	if alphaPath != "" {
		f, err := os.Open(alphaPath)
		if err != nil {
			log.Error("opening alpha export", "path", alphaPath, "error", err)
			return 1
		}
		result, err := alpha.NewProvider(tr, log).Ingest(ctx, f)
		f.Close()
		if err != nil {
			log.Error("alpha import failed", "error", err)
			return 1
		}
		log.Info("alpha import stats",
			"sessions", result.SessionsReceived,
			"exercises", result.ExercisesReceived,
			"inserted", result.ResultsInserted,
			"skipped", result.ResultsSkipped,
		)
	}

	if exportPath != "" {
		path := backupPath(exportPath, time.Now())
		data, err := tr.ExportData(ctx)
		if err != nil {
			log.Error("export failed", "error", err)
			return 1
		}
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			log.Error("writing backup", "path", path, "error", err)
			return 1
		}
		log.Info("backup written", "path", path, "bytes", len(data))
	}

	if showStats {
		stats, err := tr.GetStatistics(ctx)
		if err != nil {
			log.Error("reading statistics", "error", err)
			return 1
		}
		log.Info("storage",
			"backend", stats.Storage.StorageType,
			"version", stats.Storage.Version,
		)
		for coll, s := range stats.Storage.Stores {
			log.Info("collection", "name", coll, "count", s.Count, "bytes", s.Size)
		}
		log.Info("workouts",
			"results", stats.Workouts.Total,
			"unique_days", stats.Workouts.UniqueDays,
			"sets", stats.Workouts.TotalSets,
			"volume", stats.Workouts.TotalVolume,
			"program", stats.CurrentPosition.Program,
		)
	}
	return 0
}

// backupPath resolves a directory to the dated backup file name the HTTP
// export uses.
func backupPath(p string, now time.Time) string {
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return filepath.Join(p, fmt.Sprintf("workout-tracker-backup-%s.json", now.Format("2006-01-02")))
	}
	return p
}
