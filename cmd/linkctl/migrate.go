package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/database"
)

type migrateOptions struct {
	databaseURL string
	timeout     time.Duration
}

func newMigrateCmd() *cobra.Command {
	opts := migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations (up, down, status)",
	}
	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.databaseURL, "database-url", "", "postgres connection string (default from DATABASE_URL or DB_*)")
	fs.DurationVar(&opts.timeout, "timeout", time.Minute, "give up after this long")

	cmd.AddCommand(
		&cobra.Command{
			Use:   database.DirectionUp,
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, opts, func(ctx context.Context, m *database.Migrator) error {
					results, err := m.Up(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(results))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   database.DirectionDown,
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, opts, func(ctx context.Context, m *database.Migrator) error {
					result, err := m.Down(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back version %d\n", result.Source.Version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   database.DirectionStatus,
			Short: "Show every migration and whether it is applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, opts, func(ctx context.Context, m *database.Migrator) error {
					return printMigrationStatus(ctx, cmd.OutOrStdout(), m)
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, opts migrateOptions, run func(context.Context, *database.Migrator) error) error {
	connString := opts.databaseURL
	if connString == "" {
		cfg, err := config.Parse()
		if err != nil {
			return err
		}
		connString = cfg.GetDBConnString()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	m, err := database.NewMigrator(connString)
	if err != nil {
		return err
	}
	defer m.Close()

	return run(ctx, m)
}

func printMigrationStatus(ctx context.Context, out io.Writer, m *database.Migrator) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}
