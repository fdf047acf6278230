package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/cimillas/linevault/internal/bootstrap"
	"github.com/cimillas/linevault/internal/cli"
	"github.com/cimillas/linevault/internal/config"
)

func main() {
	// Diagnostics go to stderr so command output stays clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	config.LoadEnvFile(logger)

	open := func(ctx context.Context, migrate bool) (*bootstrap.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg.AutoMigrate = cfg.AutoMigrate || migrate
		return bootstrap.Open(ctx, cfg, logger)
	}

	if err := cli.NewRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}
