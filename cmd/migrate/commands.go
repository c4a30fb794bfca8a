package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/rouna/storefront/internal/infrastructure/config"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/infrastructure/migration"
	"github.com/rouna/storefront/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

// rootOptions holds the global flags of the migrate command
type rootOptions struct {
	Path     string // empty uses the migrations compiled into the binary
	LogLevel string

	log *zap.Logger
	now func() time.Time
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Storefront database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(&logger.Config{
				Level:      opts.LogLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "migrations directory (default: embedded migrations)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(
		newUpCommand(opts),
		newDownCommand(opts),
		newStepCommand(opts),
		newGotoCommand(opts),
		newVersionCommand(opts),
		newForceCommand(opts),
		newCreateCommand(opts),
		newListCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, (*migration.Migrator).Up)
		},
	}
}

func newDownCommand(opts *rootOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("down drops every storefront table; rerun with --confirm")
			}
			return withMigrator(opts, (*migration.Migrator).Down)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm rolling back all migrations")
	return cmd
}

func newStepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "step <n>",
		Short: "Apply n migrations (negative rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}
}

func newGotoCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.GoTo(uint(version)) })
		},
	}
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	}
}

func newForceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the version without running migrations (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			opts.log.Warn("Forcing migration version", zap.Int("version", version))
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Force(version) })
		},
	}
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.Path
			if dir == "" {
				dir = defaultMigrationsDir
			}
			description := ""
			if len(args) == 2 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description, opts.now())
			if err != nil {
				return err
			}
			opts.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			fmt.Fprintln(cmd.OutOrStdout(), mf.UpPath)
			fmt.Fprintln(cmd.OutOrStdout(), mf.DownPath)
			return nil
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := migration.ListMigrations(opts.source())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (o *rootOptions) source() fs.FS {
	if o.Path == "" {
		return migrations.FS
	}
	return os.DirFS(o.Path)
}

// withMigrator connects to the configured database and runs fn
func withMigrator(opts *rootOptions, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.NewFromFS(db, opts.source(), opts.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			opts.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return fn(m)
}
