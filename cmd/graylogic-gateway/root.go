package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/migrations"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	configPath string
}

// newRootCmd builds the command tree. Output from subcommands goes to out.
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "graylogic-gateway",
		Short: "Gray Logic Gateway - authenticated access to home things",
		Long: `Gray Logic Gateway exposes the things installed in a home over a REST
and WebSocket API. Clients authenticate with a username and password,
receive an opaque token, and use it to read things and placements or to
dispatch commands.

Run "graylogic-gateway serve" to start the gateway. The user, placement,
thing and migrate commands administer the database it loads at startup.`,
		Version: versionString(),
		// Show help rather than succeed silently when no subcommand is given
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getConfigPath(),
		"path to the YAML config file (env GRAYLOGIC_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newUserCmd(opts),
		newPlacementCmd(opts),
		newThingCmd(opts),
		newMigrateCmd(opts),
		newBackupCmd(opts),
	)
	return root
}

// loadConfig reads the config file. Admin commands fall back to the
// built-in defaults when the file does not exist yet.
func loadConfig(path string, allowMissing bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if allowMissing && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// openDatabase loads config, opens the database and brings the schema up
// to date. The caller closes the returned DB.
func openDatabase(ctx context.Context, opts *globalOptions) (*database.DB, error) {
	cfg, err := loadConfig(opts.configPath, true)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
