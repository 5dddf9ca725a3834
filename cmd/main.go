package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:    "ytmirror",
		Usage:   "Mirror Spotify playlists into YouTube playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars(shared.EnvPrefix + "CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := app.Run(ctx, os.Args)
	stop()

	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("failed to close database", "error", closeErr)
	}

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNoAvailableIdentity):
		logger.Warn("every identity is out of quota", "cause", err)
		os.Exit(2)
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
		os.Exit(130)
	default:
		logger.Fatalf("application error: %v", err)
	}
}
