package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rouna/storefront/internal/infrastructure/config"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type seedOptions struct {
	File     string
	DryRun   bool
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load catalog items from a YAML file",
		Long: `Load catalog items from a YAML file into the storefront database.

Items are matched by slug: new slugs are inserted, existing ones are
updated in place and keep their IDs. Run the migrations first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "seed/catalog.yaml", "catalog seed file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the file without touching the database")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	log, err := logger.New(&logger.Config{
		Level:      opts.LogLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	items, err := loadCatalog(f)
	if err != nil {
		return err
	}
	log.Info("Catalog parsed", zap.String("file", opts.File), zap.Int("items", len(items)))

	if opts.DryRun {
		for _, item := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", item.Slug, item.SKU, item.EffectivePrice().StringFixed(2), item.Stock)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(opts.LogLevel)))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	res, err := seedItems(context.Background(), persistence.NewGormItemRepository(db.DB), items)
	if err != nil {
		return err
	}
	log.Info("Catalog seeded", zap.Int("created", res.Created), zap.Int("updated", res.Updated))
	fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d\n", res.Created, res.Updated)
	return nil
}
