// Command docmind-watch runs the periodic archive-discovery and
// pending-memory-drain watcher as its own process, for split-mode
// deployments where docmind-server (DOCMIND_SPLIT=1) only serves the MCP
// tool façade and a separate process owns ingest triggering.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"docmind/internal/appwire"
	"docmind/internal/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := cfg.RequireHelpSourcesDir(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := appwire.Build(ctx, cfg, "docmind-watch", false)
	if err != nil {
		os.Stderr.WriteString("failed to build app: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer app.Close()

	app.Log.Info().Msg("docmind-watch starting")
	if err := app.Watcher.Run(ctx); err != nil && ctx.Err() == nil {
		app.Log.Error().Err(err).Msg("watcher exited")
		os.Exit(1)
	}
}
