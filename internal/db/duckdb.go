// Package db keeps loaded features in DuckDB for ad-hoc SQL.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"
)

// Config holds database configuration.
type Config struct {
	// Path is the database file. Empty keeps everything in memory.
	Path string
	// Extensions are installed and loaded on open, e.g. "spatial".
	Extensions []string
}

// Open opens a DuckDB database. Extension failures are logged, not fatal.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating duckdb directory: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			log.Warn().Err(err).Str("extension", ext).Msg("DuckDB extension unavailable")
		}
	}
	return conn, nil
}
