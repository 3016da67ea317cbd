package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/todo/internal/config"
	pgInfra "github.com/fastygo/todo/internal/infrastructure/postgres"
	"github.com/fastygo/todo/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todo",
		Short:         "Personal to-do service with Google Calendar linking",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})

	root.AddCommand(&cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pgInfra.Up), string(pgInfra.Down)},
		RunE:      runMigrate,
	})

	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if err := serve(cmd.Context(), cfg, zapLogger); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func runMigrate(_ *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate: STORAGE_DRIVER is %q, migrations only apply to %q", cfg.Storage.Driver, config.DriverPostgres)
	}

	dir := pgInfra.Up
	if len(args) == 1 {
		dir = pgInfra.Direction(args[0])
	}
	if err := pgInfra.Migrate(cfg.Database, dir, zapLogger); err != nil {
		zapLogger.Error("migrations failed", zap.Error(err))
		return err
	}
	return nil
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config error: %v", err)
		return nil, nil, err
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Printf("logger error: %v", err)
		return nil, nil, err
	}
	return cfg, zapLogger, nil
}
