package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
)

// DatabaseConfig holds catalog database connection settings.
// Driver selects between "postgres" and "sqlite"; the remaining fields apply to the selected driver.
type DatabaseConfig struct {
	Driver             string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	SQLitePath         string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
// An empty Endpoint disables artifact publishing.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether artifact publishing to object storage is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// SyncConfig holds everything the synchronization pipeline substitutes into
// generated text and converter command lines.
type SyncConfig struct {
	SourceRoot    string
	SourceExt     string
	PublicBaseURL string
	Collection    string
	Author        string
	Semester      string
	Stylesheet    string
	TOCTitle      string

	// Engine is "pandoc" (external converter) or "goldmark" (in-process).
	Engine         string
	ConverterBin   string
	ConverterArgs  []string
	PDFBin         string
	PDFArgs        []string
	// MathAssetsFrom is a regular expression matching the converter's bundled math resource prefix.
	MathAssetsFrom string
	MathAssetsPath string
	FontURL        string
	FontFamily     string
	MathScriptURL  string

	PruneMissing    bool
	RefreshInterval time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	RefreshKey string
	StaticDir  string
	Timezone   string
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Sync       SyncConfig
}

// Location resolves the configured timezone used for log timestamps, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:    getEnv("APP_HOST", "localhost:8080"),
		Port:       getEnv("PORT", "8080"),
		RefreshKey: getEnv("REFRESH_KEY", ""),
		StaticDir:  getEnv("STATIC_DIR", "./static"),
		Timezone:   getEnv("TZ", "UTC"),
		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "postgres"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			SQLitePath:         getEnv("DB_SQLITE_PATH", "courses.db"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Sync: SyncConfig{
			SourceRoot:      getEnv("MD_FOLDER", ""),
			SourceExt:       getEnv("SYNC_SOURCE_EXT", ".md"),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
			Collection:      getEnv("SYNC_COLLECTION", "Cours"),
			Author:          getEnv("AUTHOR", ""),
			Semester:        getEnv("SEMESTER", ""),
			Stylesheet:      getEnv("SYNC_STYLESHEET", "/static/css/fluent-light.css"),
			TOCTitle:        getEnv("SYNC_TOC_TITLE", "Sommaire"),
			Engine:          getEnv("SYNC_ENGINE", "pandoc"),
			ConverterBin:    getEnv("PANDOC_BIN", "pandoc"),
			ConverterArgs:   getEnvArgs("PANDOC_EXTRA_ARGS"),
			PDFBin:          getEnv("PDF_BIN", "wkhtmltopdf"),
			PDFArgs:         getEnvArgs("PDF_EXTRA_ARGS"),
			MathAssetsFrom:  getEnv("SYNC_MATH_ASSETS_FROM", `https://cdn\.jsdelivr\.net/npm/katex@[^/]*/dist/`),
			MathAssetsPath:  getEnv("SYNC_MATH_ASSETS_PATH", "/static/katex/"),
			FontURL:         getEnv("SYNC_FONT_URL", "https://fonts.googleapis.com/css2?family=Inter:wght@400;700&display=swap"),
			FontFamily:      getEnv("SYNC_FONT_FAMILY", "Inter"),
			MathScriptURL:   getEnv("SYNC_MATH_SCRIPT_URL", "/static/katex/contrib/auto-render.min.js"),
			PruneMissing:    getEnvBool("SYNC_PRUNE_MISSING", false),
			RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvArgs splits a shell-style argument string; unparsable input yields no arguments.
func getEnvArgs(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	args, err := shellquote.Split(v)
	if err != nil {
		return nil
	}
	return args
}
