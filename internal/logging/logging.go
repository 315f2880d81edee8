// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/claude/liftlog/internal/config"
)

// New returns a text logger writing to out, and additionally to a rotating
// file when cfg.File is set. The returned closer releases the file.
func New(cfg config.LogConfig, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		name := cfg.File
		if !strings.HasSuffix(name, ".log") {
			name += ".log"
		}
		rotating := &lumberjack.Logger{
			Filename:   name,
			MaxSize:    50, // megabytes
			MaxBackups: 10,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotating)
		closer = rotating
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
