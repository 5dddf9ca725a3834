package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, initializes the database and registers the quota identities.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		if err := config.ApplyEnv(); err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Config file created at %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	identities, err := r.quota.List(ctx)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	r.writePlain("✓ %d quota identities registered\n", len(identities))

	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify and youtube.identities in %s\n", configPath)
	r.writePlain("2. Run 'ytmirror auth spotify' and 'ytmirror auth youtube' for each identity\n")
	r.writePlain("3. Run 'ytmirror sync run <playlist>'\n")
	return nil
}
