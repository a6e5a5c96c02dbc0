// Command docmind-ingest runs a single ingest pass over configured help
// source roots and exits, the standalone counterpart to the watcher's
// periodic sweep for split-mode deployments (DOCMIND_SPLIT=1) where ingest
// runs as a cron job or a one-off operator invocation rather than inside
// the always-on server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"docmind/internal/appwire"
	"docmind/internal/config"
	"docmind/internal/ingestrun"
)

func main() {
	recreate := flag.Bool("recreate", false, "drop and recreate the vector collection if its dimension changed")
	dryRun := flag.Bool("dry-run", false, "discover and hash archives and report counts, without extracting, converting or writing anything")
	language := flag.String("language", "", "restrict this run to archives whose filename encodes this language tag")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := cfg.RequireHelpSourcesDir(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := appwire.Build(ctx, cfg, "docmind-ingest", *recreate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build app:", err)
		os.Exit(1)
	}
	defer app.Close()

	summary, err := app.Orchestrator.Run(ctx, []string{cfg.HelpSourcesDir}, ingestrun.RunOptions{
		Recreate: *recreate,
		DryRun:   *dryRun,
		Language: *language,
	})
	if err != nil {
		app.Log.Error().Err(err).Msg("ingest run failed")
		os.Exit(1)
	}

	app.Log.Info().
		Int("archives_total", summary.ArchivesTotal).
		Int("archives_indexed", summary.ArchivesIndexed).
		Int("archives_skipped", summary.ArchivesSkipped).
		Int("archives_failed", summary.ArchivesFailed).
		Int("topics_indexed", summary.TopicsIndexed).
		Dur("duration", summary.Duration).
		Msg("ingest run complete")

	if summary.ArchivesFailed > 0 {
		os.Exit(1)
	}
}
