// Package db opens the per-workspace SQLite database under .momentum/.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".momentum"
	databaseName = "momentum.db"
)

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the .momentum directory if missing and returns its
// path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(rootDir(workspace), workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the workspace database. Foreign keys and a busy timeout are set
// through DSN pragmas; the pool is capped at one connection because the
// modernc driver serializes writers anyway and a single connection avoids
// SQLITE_BUSY between the executor's transactions.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(rootDir(workspace), workspaceDir, databaseName)
}

func rootDir(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}
