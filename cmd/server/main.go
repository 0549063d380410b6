package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/api"
	"github.com/MM25Zamanian/prismate/internal/config"
	"github.com/MM25Zamanian/prismate/internal/dsl"
	"github.com/MM25Zamanian/prismate/internal/logging"
	"github.com/MM25Zamanian/prismate/internal/metrics"
	"github.com/MM25Zamanian/prismate/internal/reference"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/service"
	"github.com/MM25Zamanian/prismate/internal/store"
	"github.com/MM25Zamanian/prismate/internal/store/memory"
	"github.com/MM25Zamanian/prismate/internal/store/pg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, schemaPath string
	root := &cobra.Command{
		Use:          "prismate",
		Short:        "Schema-driven CRUD and admin API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to YAML config")
	root.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "description file or directory (overrides config)")

	load := func() (*config.Config, *dsl.Description, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if schemaPath != "" {
			cfg.Schema.Path = schemaPath
		}
		desc, err := dsl.Load(cfg.Schema.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load schema %s: %w", cfg.Schema.Path, err)
		}
		return cfg, desc, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, desc, err := load()
				if err != nil {
					return err
				}
				return serve(cmd.Context(), cfg, desc)
			},
		},
		&cobra.Command{
			Use:   "lint",
			Short: "Report problems in the schema description",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, desc, err := load()
				if err != nil {
					return err
				}
				issues := schema.Lint(desc)
				for _, is := range issues {
					fmt.Fprintln(cmd.OutOrStdout(), is.String())
				}
				if len(issues) > 0 {
					return fmt.Errorf("%d schema issue(s)", len(issues))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "ddl",
			Short: "Print the PostgreSQL DDL for the schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, desc, err := load()
				if err != nil {
					return err
				}
				ddl, err := pg.GenerateDDL(schema.BuildRegistry(desc, desc.ModelNames()))
				if err != nil {
					return err
				}
				steps := make([]string, 0, len(ddl))
				for step := range ddl {
					steps = append(steps, step)
				}
				sort.Strings(steps)
				for _, step := range steps {
					fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n%s\n", step, ddl[step])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Print the normalized schema as JSON",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, desc, err := load()
				if err != nil {
					return err
				}
				reg := schema.BuildRegistry(desc, desc.ModelNames())
				sum, err := reg.Checksum()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(map[string]any{"checksum": sum, "schema": reg.Export()}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			},
		},
	)
	return root
}

func serve(ctx context.Context, cfg *config.Config, desc *dsl.Description) error {
	logger, err := logging.New(cfg.IsProduction(), cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if issues := schema.Lint(desc); len(issues) > 0 {
		for _, is := range issues {
			logger.Warn("schema issue", zap.String("issue", is.String()))
		}
	}

	client, closeDB, err := openClient(ctx, cfg, desc, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	svc := service.New(desc, client, cfg.ServiceOptions(), logger)
	defer svc.Dispose()

	files, err := reference.LoadEnumCatalog(cfg.Schema.EnumsDir)
	if err != nil {
		return fmt.Errorf("load enum catalogs: %w", err)
	}
	catalog := reference.NewCatalog(svc.Registry().Enums(), files)

	opts := api.Options{JWTSecret: cfg.Auth.JWTSecret, Logger: logger}
	if cfg.Server.Metrics {
		opts.HTTP = metrics.NewHTTP()
		opts.Gatherer = metrics.NewRegistry(svc.CacheStats, opts.HTTP)
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("PRISMATE_JWT_SECRET is not set; /api and /admin are unauthenticated")
	}
	router := api.NewRouter(svc, catalog, opts)
	return api.RunServer(ctx, cfg.Server.Addr, router, cfg.Server.ShutdownTimeout, logger)
}

// openClient picks the PostgreSQL delegate when a database URL is set and
// the in-memory one otherwise.
func openClient(ctx context.Context, cfg *config.Config, desc *dsl.Description, logger *zap.Logger) (store.Client, func(), error) {
	reg := schema.BuildRegistry(desc, desc.ModelNames())
	if cfg.Database.URL == "" {
		logger.Info("using in-memory store")
		return memory.New(reg), func() {}, nil
	}

	db, err := pg.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			logger.Warn("close database", zap.Error(err))
		}
	}
	if cfg.Database.AutoMigrate {
		ddl, err := pg.GenerateDDL(reg)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		if err := pg.ApplyDDL(ctx, db, ddl, logger); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	logger.Info("using postgres store")
	return pg.New(db, reg, logger), closeDB, nil
}
