package cmd

import (
	"log/slog"
	"os"

	"github.com/roteiro-ai/roteiro/internal/config"
	"github.com/roteiro-ai/roteiro/internal/log"
)

// newLogger builds the process logger. Production environments get JSON
// output for log collectors; dev gets text. ROTEIRO_DEBUG=1 lowers the
// level to debug.
func newLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	if os.Getenv("ROTEIRO_DEBUG") == "1" {
		level = slog.LevelDebug
	}

	return log.New(log.Config{
		Level: level,
		JSON:  !cfg.IsDev(),
	})
}
