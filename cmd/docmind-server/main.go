// Command docmind-server runs the MCP tool façade: stdio transport for a
// local agent client plus an optional streamable-HTTP listener. In "api"
// mode (the default) it also drives the watcher in-process, the same
// single-binary shape as the teacher's cmd/agentd; exporting DOCMIND_SPLIT=1
// disables the embedded watcher so it can run as its own process
// (cmd/docmind-watch) alongside a standalone ingest CLI.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docmind/internal/appwire"
	"docmind/internal/config"
	"docmind/internal/mcpserver"
	"docmind/internal/webviewer"
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := appwire.Build(ctx, cfg, "docmind-server", false)
	if err != nil {
		os.Stderr.WriteString("failed to build app: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer app.Close()

	split := os.Getenv("DOCMIND_SPLIT") == "1"
	if !split {
		go func() {
			if err := app.Watcher.Run(ctx); err != nil && ctx.Err() == nil {
				app.Log.Error().Err(err).Msg("watcher exited")
			}
		}()
	}

	mcpSrv := mcpserver.New(app.Registry, app.Log)

	if cfg.MCPHTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/mcp", mcpSrv.HTTPHandler())
		if cfg.WebviewerAllowDir != "" {
			mux.Handle("/viewer/", http.StripPrefix("/viewer/", webviewer.New(cfg.WebviewerAllowDir)))
		}
		srv := &http.Server{Addr: cfg.MCPHTTPAddr, Handler: otelhttp.NewHandler(mux, "docmind-server")}
		go func() {
			app.Log.Info().Str("addr", cfg.MCPHTTPAddr).Msg("mcp http listener starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.Log.Error().Err(err).Msg("mcp http listener failed")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	if err := mcpSrv.RunStdio(ctx); err != nil && ctx.Err() == nil {
		app.Log.Error().Err(err).Msg("mcp stdio transport exited")
		os.Exit(1)
	}
}
