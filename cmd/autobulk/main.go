package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"autobulk/internal/app"
	"autobulk/pkg/config"
	"autobulk/pkg/config/banner"
	"autobulk/pkg/logger"
	"autobulk/pkg/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags, err := config.ParseConfigFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, source, err := config.Load(flags, os.Getenv)
	if err != nil {
		logger.Init("")
		shutdown.Abort(context.Background(), nil, "invalid configuration", err)
	}

	if flags.Validate {
		fmt.Printf("config ok: %d target(s), source %s\n", len(cfg.Targets), source)
		return
	}

	logger.Init(cfg.Logging.Level)
	defer logger.Sync()

	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr += " @ " + buildDate
	}
	banner.Print(cfg, source, verStr)
	logger.Info("effective_config_loaded", "source", source, "addr", cfg.Addr(), "targets", len(cfg.Targets))

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, verStr)
	if err != nil {
		shutdown.Abort(context.Background(), nil, "failed to initialize app", err)
	}

	runErr := a.Run(ctx)

	// the hooks flush queued operations; the timeout only flags an overrun
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if runErr != nil {
		shutdown.Abort(shutdownCtx, a.Hooks(), "app run failed", runErr)
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_incomplete", "error", err, "timeout", time.Duration(cfg.ShutdownTimeout))
		os.Exit(1)
	}
}
