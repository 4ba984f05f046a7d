// Package bootstrap assembles the catalog, renderers and services from configuration.
// Both binaries share it so the HTTP server and the CLI run the same pipeline.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"coursesync/internal/config"
	"coursesync/internal/database"
	"coursesync/internal/database/migration"
	"coursesync/internal/logging"
	"coursesync/internal/render"
	"coursesync/internal/repository"
	"coursesync/internal/repository/postgres"
	"coursesync/internal/repository/sqlite"
	"coursesync/internal/service"
	"coursesync/internal/source"
	"coursesync/internal/storage"
)

const (
	EnginePandoc   = "pandoc"
	EngineGoldmark = "goldmark"
)

// App holds the wired components. Close releases the database.
type App struct {
	DB       *sql.DB
	Repo     repository.CourseRepository
	Store    storage.Storage
	Sync     service.SyncService
	Courses  service.CourseService
	Registry *prometheus.Registry
}

// Close closes the database connection pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// OpenCatalog connects to the configured database and brings its schema up to date.
func OpenCatalog(ctx context.Context, cfg *config.AppConfig) (*sql.DB, repository.CourseRepository, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	dialect, err := migration.ForDriver(cfg.Database.Driver)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	host := cfg.Database.Host
	if dialect.Name == migration.SQLite.Name {
		host = cfg.Database.SQLitePath
	}
	if err := migration.EnsureMigrated(ctx, db, dialect, cfg.Location(), host); err != nil {
		db.Close()
		return nil, nil, err
	}

	repo, err := NewRepository(cfg.Database.Driver, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}

// NewRepository returns the catalog repository matching the database driver.
func NewRepository(driver string, db *sql.DB) (repository.CourseRepository, error) {
	switch driver {
	case "", database.DriverPostgres:
		return postgres.NewCoursePostgres(db), nil
	case database.DriverSQLite:
		return sqlite.NewCourseSQLite(db), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// NewRenderers builds the markup and print renderers for the configured engine.
func NewRenderers(cfg config.SyncConfig) (render.MarkupRenderer, render.PrintRenderer, error) {
	runner := render.ExecRunner{}
	printer := render.NewPDFPrinter(runner, render.PrintOptions{
		Bin:           cfg.PDFBin,
		ExtraArgs:     cfg.PDFArgs,
		FontURL:       cfg.FontURL,
		FontFamily:    cfg.FontFamily,
		MathScriptURL: cfg.MathScriptURL,
	})

	switch cfg.Engine {
	case "", EnginePandoc:
		markup, err := render.NewPandoc(runner, render.PandocOptions{
			Bin:            cfg.ConverterBin,
			Stylesheet:     cfg.Stylesheet,
			TOCTitle:       cfg.TOCTitle,
			ExtraArgs:      cfg.ConverterArgs,
			MathAssetsFrom: cfg.MathAssetsFrom,
			MathAssetsPath: cfg.MathAssetsPath,
		})
		if err != nil {
			return nil, nil, err
		}
		return markup, printer, nil
	case EngineGoldmark:
		return render.NewGoldmark(render.GoldmarkOptions{
			Stylesheet:     cfg.Stylesheet,
			TOCTitle:       cfg.TOCTitle,
			MathAssetsPath: cfg.MathAssetsPath,
		}), printer, nil
	}
	return nil, nil, fmt.Errorf("unsupported render engine %q", cfg.Engine)
}

// NewStore connects to object storage when it is configured. A nil Storage
// with a nil error means publishing is disabled.
func NewStore(cfg config.MinIOConfig) (storage.Storage, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	store, err := storage.NewMinIO(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	return store, nil
}

// SyncOptions derives the refresh options from configuration.
func SyncOptions(cfg config.SyncConfig) service.SyncOptions {
	return service.SyncOptions{
		Root: cfg.SourceRoot,
		Selector: source.Selector{
			Ext:      cfg.SourceExt,
			Author:   cfg.Author,
			Semester: cfg.Semester,
		},
		PublicBaseURL: cfg.PublicBaseURL,
		Collection:    cfg.Collection,
		PruneMissing:  cfg.PruneMissing,
	}
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if cfg.Sync.SourceRoot == "" {
		return nil, errors.New("MD_FOLDER is required")
	}

	markup, printer, err := NewRenderers(cfg.Sync)
	if err != nil {
		return nil, err
	}

	db, repo, err := OpenCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(cfg.MinIO)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := service.NewSyncMetrics(reg)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		DB:       db,
		Repo:     repo,
		Store:    store,
		Sync:     service.NewSyncService(SyncOptions(cfg.Sync), repo, markup, printer, store, metrics, logging.New(cfg.Location(), "sync")),
		Courses:  service.NewCourseService(repo, store),
		Registry: reg,
	}, nil
}
