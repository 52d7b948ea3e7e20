// Package migrations embeds the goose SQL migration set for the dispatch
// schema and exposes a thin Migrator wrapping goose's programmatic API.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator applies or inspects the embedded migration set against db.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) setup() error {
	goose.SetBaseFS(files)
	return goose.SetDialect("postgres")
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	if err := goose.DownContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("migrations: down: %w", err)
	}
	return nil
}

// Status prints the applied/pending state of every migration to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	return goose.StatusContext(ctx, m.db, "sql")
}
