package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/migrations"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and change the database schema",
		Long: `Inspect and change the database schema. The serve command and the
admin commands apply pending migrations automatically; use these to check
what is applied or to roll back during development.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawDatabase(cmd.Context(), opts, func(db *database.DB) error {
				if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawDatabase(cmd.Context(), opts, func(db *database.DB) error {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawDatabase(cmd.Context(), opts, func(db *database.DB) error {
				applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATUS\tAPPLIED AT")
				for _, m := range applied {
					fmt.Fprintf(w, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func newBackupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Write a consistent copy of the database",
		Long: `Write a consistent copy of the database to a new file. Safe to run
while the gateway is serving; the target file must not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawDatabase(cmd.Context(), opts, func(db *database.DB) error {
				if err := db.BackupTo(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database copied to %s\n", args[0])
				return nil
			})
		},
	}
}

// withRawDatabase opens the database without migrating it and runs fn.
func withRawDatabase(ctx context.Context, opts *globalOptions, fn func(db *database.DB) error) error {
	cfg, err := loadConfig(opts.configPath, true)
	if err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
