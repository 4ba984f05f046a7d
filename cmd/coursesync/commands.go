package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"coursesync/internal/bootstrap"
	"coursesync/internal/config"
	"coursesync/internal/logging"
	"coursesync/internal/otel"
	"coursesync/internal/service"
	"coursesync/internal/watch"
)

// Global carries process-wide state into every command.
type Global struct {
	Ctx context.Context
	Out io.Writer
}

// CLI is the command line of the coursesync binary. Flags override the
// corresponding environment variables.
type CLI struct {
	Root   string `short:"r" help:"Source tree to synchronize (overrides MD_FOLDER)" type:"path"`
	Engine string `short:"e" help:"Markup engine: pandoc or goldmark (overrides SYNC_ENGINE)"`

	Refresh RefreshCmd `cmd:"" help:"Run one refresh pass and print the result as JSON"`
	Watch   WatchCmd   `cmd:"" help:"Refresh whenever source documents change"`
	Migrate MigrateCmd `cmd:"" help:"Create the catalog schema if it does not exist"`
}

// config loads the environment configuration and applies flag overrides.
func (c *CLI) config() *config.AppConfig {
	cfg := config.Load()
	if c.Root != "" {
		cfg.Sync.SourceRoot = c.Root
	}
	if c.Engine != "" {
		cfg.Sync.Engine = c.Engine
	}
	return cfg
}

// RefreshCmd implements the 'refresh' command.
type RefreshCmd struct {
	Prune bool `help:"Remove catalog entries whose source file is gone"`
}

func (r *RefreshCmd) Run(g *Global, cli *CLI) error {
	cfg := cli.config()
	if r.Prune {
		cfg.Sync.PruneMissing = true
	}

	shutdown, err := otel.Init(g.Ctx, cfg.Location())
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	app, err := bootstrap.Build(g.Ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Sync.Refresh(g.Ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return writeResult(g.Out, res)
}

func writeResult(w io.Writer, res *service.RefreshResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period after the last change before refreshing" default:"2s"`
}

func (w *WatchCmd) Run(g *Global, cli *CLI) error {
	cfg := cli.config()
	log := logging.New(cfg.Location(), "watch")

	shutdown, err := otel.Init(g.Ctx, cfg.Location())
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	app, err := bootstrap.Build(g.Ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	selector := bootstrap.SyncOptions(cfg.Sync).Selector
	watcher, err := watch.New(cfg.Sync.SourceRoot, selector.IsSource, w.Debounce, log)
	if err != nil {
		return err
	}

	refresh := func(ctx context.Context) {
		res, err := app.Sync.Refresh(ctx)
		if err != nil {
			log.Error("refresh_failed", logging.Fields{"error": err})
			return
		}
		log.Info("refresh_done", logging.Fields{
			"run_id":   res.RunID,
			"inserted": res.Inserted,
			"updated":  res.Updated,
			"failed":   len(res.Failures),
		})
	}

	refresh(g.Ctx)
	log.Info("watch_started", logging.Fields{"root": cfg.Sync.SourceRoot, "debounce": w.Debounce.String()})
	if err := watcher.Run(g.Ctx, refresh); err != nil && g.Ctx.Err() == nil {
		return err
	}
	return nil
}

// MigrateCmd implements the 'migrate' command.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(g *Global, cli *CLI) error {
	cfg := cli.config()
	db, _, err := bootstrap.OpenCatalog(g.Ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = fmt.Fprintf(g.Out, "catalog schema ready (%s)\n", cfg.Database.Driver)
	return err
}
