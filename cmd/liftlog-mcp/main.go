package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/logging"
	"github.com/claude/liftlog/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	remote := flag.String("remote", "", "base URL of a running liftlog server; reads the local store when empty")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol.
	log, logCloser := logging.New(cfg.Log, os.Stderr)
	defer logCloser.Close()

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
		log.Info("mcp: using remote server", "url", *remote)
	} else {
		st, err := app.Open(context.Background(), cfg, log, nil)
		if err != nil {
			log.Error("failed to open tracker", "error", err)
			os.Exit(1)
		}
		defer st.Close()
		ds = mcp.NewLocal(st.Tracker, st.Engine)
	}

	if err := server.ServeStdio(mcp.New(ds, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
	}
}
