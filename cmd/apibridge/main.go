package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"apibridge/internal/app"
	"apibridge/pkg/config"
	"apibridge/pkg/logger"
	"apibridge/pkg/shutdown"
)

// build metadata, set via ldflags during build/release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	flags, err := config.ParseConfigFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}
	eff, err := config.LoadEffectiveConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithLevel(eff.Config.Logging.Level)
	defer logger.Sync()

	a, err := app.New(eff, nil, version)
	if err != nil {
		logger.Error("app_init_failed", zap.Error(err))
		os.Exit(1)
	}

	var cleanups shutdown.Cleanups
	cleanups.Add("resolver", func(context.Context) error { return a.Resolver().Close() })

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	runErr := a.Run(ctx)
	cleanups.Run(eff.Config.App.StopTimeout.Duration() + 5*time.Second)
	if runErr != nil {
		logger.Error("server_failed", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("server_stopped")
}
