package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the process-wide logger. Verbose switches on debug level
// logging, which includes every outgoing http request.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
