package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
}

// NewMigrator opens a dedicated connection for running migrations
func NewMigrator(connString string) (*Migrator, error) {
	connConfig, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToParseConnString, err)
	}

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToOpenMigrations, err)
	}

	db := stdlib.OpenDB(*connConfig)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToOpenMigrations, err)
	}

	return &Migrator{db: db, provider: provider}, nil
}

// Up applies all pending migrations
func (m *Migrator) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("%s: %w", ErrMsgFailedToMigrate, err)
	}
	for _, r := range results {
		slog.Default().Info(LogMsgMigrationApplied,
			"version", r.Source.Version,
			"direction", r.Direction,
			"duration", r.Duration)
	}
	if len(results) == 0 {
		slog.Default().Info(LogMsgMigrationsUpToDate)
	}
	return results, nil
}

// Down rolls back the most recent migration
func (m *Migrator) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("%s: %w", ErrMsgFailedToMigrate, err)
	}
	slog.Default().Info(LogMsgMigrationApplied,
		"version", result.Source.Version,
		"direction", result.Direction,
		"duration", result.Duration)
	return result, nil
}

// Status reports every known migration and whether it is applied
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

// Close releases the migration connection
func (m *Migrator) Close() error {
	return m.db.Close()
}

// Migrate runs one migration direction against connString
func Migrate(ctx context.Context, connString, direction string) error {
	m, err := NewMigrator(connString)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case DirectionUp:
		_, err = m.Up(ctx)
	case DirectionDown:
		_, err = m.Down(ctx)
	case DirectionStatus:
		_, err = m.Status(ctx)
	default:
		err = fmt.Errorf("%s: %q", ErrMsgUnknownDirection, direction)
	}
	return err
}
