package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/todo-platform/task-api/internal/app/runtime"
	"github.com/todo-platform/task-api/internal/config"
)

func main() {
	var (
		envFile    = flag.String("env", "", "Optional .env file to load before reading configuration")
		configFile = flag.String("config", "", "Optional YAML file overriding environment configuration")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fatal("load env file %s: %v", *envFile, err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = runtime.LoadConfig()
	}
	if err != nil {
		fatal("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Gate, migrate, then serve. Any failure before Run exits nonzero
	// without ever binding the listener.
	application, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		fatal("startup: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		_ = application.Shutdown(context.Background())
		fatal("server: %v", err)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		fatal("shutdown: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
