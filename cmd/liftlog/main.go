package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/logging"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log, os.Stdout)
	defer logCloser.Close()
	log.Info("LiftLog starting", "version", Version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("liftlog", "api", reg)

	ctx := context.Background()
	st, err := app.Open(ctx, cfg, log, m)
	if err != nil {
		log.Error("failed to open tracker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("closing tracker", "error", err)
		}
	}()

	stats, err := st.Tracker.GetStatistics(ctx)
	if err != nil {
		log.Error("storage unavailable", "error", err)
		os.Exit(1)
	}
	log.Info("storage ready", "backend", stats.Storage.StorageType, "results", stats.Workouts.Total)

	srv := server.New(server.Deps{
		Tracker:  st.Tracker,
		Engine:   st.Engine,
		Raw:      st.Raw,
		Metrics:  m,
		Gatherer: reg,

		ProgramDir:    cfg.Storage.Dir,
		ProgramSource: cfg.Program.Source,
	}, cfg.Auth.APIKey, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen failed", "addr", addr, "error", err)
		os.Exit(1)
	}
	log.Info("server starting", "addr", addr)

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
