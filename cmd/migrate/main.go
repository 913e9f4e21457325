// Command migrate applies the embedded schema migrations and exits. It is
// the standalone equivalent of the migration phase the server runs at
// startup, for operators who want to migrate separately from serving.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/todo-platform/task-api/internal/config"
	"github.com/todo-platform/task-api/internal/platform/database"
	"github.com/todo-platform/task-api/internal/platform/migrations"
	"github.com/todo-platform/task-api/internal/platform/readiness"
)

func main() {
	var (
		envFile     = flag.String("env", "", "Optional .env file to load before reading configuration")
		versionOnly = flag.Bool("version", false, "Print the current schema version and exit")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fatal("load env file %s: %v", *envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	if !cfg.HasDatabase() {
		fatal("no database configured")
	}

	ctx := context.Background()
	gate := readiness.Gate{
		Name:        "postgres",
		Interval:    cfg.Database.ReadyInterval,
		MaxAttempts: cfg.Database.ReadyAttempts,
	}

	var db *sqlx.DB
	err = gate.Wait(ctx, func(ctx context.Context) error {
		opened, err := database.Open(ctx, cfg.Database.DSN(), database.PoolConfig{})
		if err != nil {
			return err
		}
		db = opened
		return nil
	})
	if err != nil {
		fatal("database readiness: %v", err)
	}
	defer db.Close()

	if *versionOnly {
		version, dirty, err := migrations.Version(db.DB)
		if err != nil {
			fatal("schema version: %v", err)
		}
		fmt.Printf("schema version %d (dirty=%v)\n", version, dirty)
		return
	}

	if err := migrations.Apply(db.DB); err != nil {
		fatal("migrate: %v", err)
	}
	fmt.Println("migrations applied")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
