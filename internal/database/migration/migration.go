package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coursesync/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Dialect carries the per-engine schema and the sentinel query that detects it.
type Dialect struct {
	Name     string
	Sentinel string
	Steps    []migrationStep
}

var Postgres = Dialect{
	Name:     "postgres",
	Sentinel: "SELECT to_regclass('public.courses') IS NOT NULL",
	Steps: []migrationStep{
		{
			Name: "create_table_courses",
			SQL: `CREATE TABLE IF NOT EXISTS courses (
  id          BIGSERIAL   PRIMARY KEY,
  title       TEXT        NOT NULL,
  author      TEXT        NOT NULL,
  semester    TEXT        NOT NULL DEFAULT '',
  path        TEXT        NOT NULL UNIQUE,
  html_path   TEXT        NOT NULL UNIQUE,
  pdf_path    TEXT        NOT NULL UNIQUE,
  size        BIGINT      NOT NULL CHECK (size >= 0),
  date        TIMESTAMPTZ NOT NULL,
  last_update TIMESTAMPTZ NULL
);`,
		},
		{
			Name: "create_index_courses_title",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_courses_title ON courses (title);`,
		},
		{
			Name: "create_index_courses_semester",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_courses_semester ON courses (semester);`,
		},
	},
}

// SQLite stores timestamps as Unix nanoseconds.
var SQLite = Dialect{
	Name:     "sqlite",
	Sentinel: "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'courses'",
	Steps: []migrationStep{
		{
			Name: "create_table_courses",
			SQL: `CREATE TABLE IF NOT EXISTS courses (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  title       TEXT    NOT NULL,
  author      TEXT    NOT NULL,
  semester    TEXT    NOT NULL DEFAULT '',
  path        TEXT    NOT NULL UNIQUE,
  html_path   TEXT    NOT NULL UNIQUE,
  pdf_path    TEXT    NOT NULL UNIQUE,
  size        INTEGER NOT NULL CHECK (size >= 0),
  date        INTEGER NOT NULL,
  last_update INTEGER NULL
);`,
		},
		{
			Name: "create_index_courses_title",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_courses_title ON courses (title);`,
		},
		{
			Name: "create_index_courses_semester",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_courses_semester ON courses (semester);`,
		},
	},
}

// ForDriver returns the dialect for a database driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "", Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("no migrations for driver %q", driver)
}

// EnsureMigrated checks if the 'courses' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, d Dialect, loc *time.Location, dbHost string) error {
	log := logging.New(loc, "database")
	start := time.Now()

	log.Info("db_migration_check", logging.Fields{
		"status":  "starting",
		"dialect": d.Name,
		"db_host": dbHost,
	})

	var exists bool
	err := db.QueryRowContext(ctx, d.Sentinel).Scan(&exists)
	if err != nil {
		log.Error("db_migration_failed", logging.Fields{
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip", logging.Fields{
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Info("db_migration_start", logging.Fields{
		"status":  "in_progress",
		"db_host": dbHost,
	})

	for _, step := range d.Steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed", logging.Fields{
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step", logging.Fields{
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	log.Info("db_migration_success", logging.Fields{
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}
