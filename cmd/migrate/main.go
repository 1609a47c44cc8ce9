package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/db"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := offline[opts.cmd]; ok {
		if err := run(opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd, "dir": opts.dir})

	if err := migrateDB(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func migrateDB(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return dispatch(ctx, sqlDB, opts)
}

func dispatch(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("refusing to migrate: %w", err)
		}
		return migrate.Run(ctx, sqlDB, opts.dir, "up")
	case "down", "redo", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
