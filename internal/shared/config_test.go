package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./ytmirror.db" {
			t.Errorf("expected database path ./ytmirror.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if len(config.YouTube.Identities) != 1 || config.YouTube.Identities[0].Name != "primary" {
			t.Errorf("expected one identity named primary, got %+v", config.YouTube.Identities)
		}

		if !config.Sync.AdoptOrphans {
			t.Error("expected adopt_orphans to default to true")
		}

		if config.Quota.ResetHour != -1 {
			t.Errorf("expected reset_hour -1, got %d", config.Quota.ResetHour)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[[youtube.identities]]
name = "first"
client_secret_path = "/secrets/a.json"

[[youtube.identities]]
name = "second"
client_secret_path = "/secrets/b.json"

[quota]
reset_hour = 15
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if len(config.YouTube.Identities) != 2 || config.YouTube.Identities[1].Name != "second" {
			t.Errorf("expected identities [first second], got %+v", config.YouTube.Identities)
		}

		if config.Quota.ResetHour != 15 {
			t.Errorf("expected reset_hour 15, got %d", config.Quota.ResetHour)
		}

		if config.Cast.MaxQueue != 50 {
			t.Errorf("expected unset keys to keep defaults, got max_queue %d", config.Cast.MaxQueue)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("YTMIRROR_SPOTIFY_CLIENT_ID", "from-env")
		t.Setenv("YTMIRROR_DATABASE_PATH", "/env/db.sqlite")
		t.Setenv("YTMIRROR_QUOTA_RESET_HOUR", "7")

		config := DefaultConfig()
		if err := config.ApplyEnv(); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "from-env" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Database.Path != "/env/db.sqlite" {
			t.Errorf("expected database path from env, got %s", config.Database.Path)
		}
		if config.Quota.ResetHour != 7 {
			t.Errorf("expected reset hour 7, got %d", config.Quota.ResetHour)
		}
	})

	t.Run("ApplyEnv rejects bad reset hour", func(t *testing.T) {
		t.Setenv("YTMIRROR_QUOTA_RESET_HOUR", "noon")

		err := DefaultConfig().ApplyEnv()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("YTMIRROR_TEST_DOTENV=loaded\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("YTMIRROR_TEST_DOTENV") })

		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"), envPath); err != nil {
			t.Fatalf("LoadEnv failed: %v", err)
		}

		if got := os.Getenv("YTMIRROR_TEST_DOTENV"); got != "loaded" {
			t.Errorf("expected loaded, got %q", got)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }},
		{name: "reset hour too large", mutate: func(c *Config) { c.Quota.ResetHour = 24 }},
		{name: "unnamed identity", mutate: func(c *Config) {
			c.YouTube.Identities = append(c.YouTube.Identities, IdentityConfig{})
		}},
		{name: "duplicate identity", mutate: func(c *Config) {
			c.YouTube.Identities = append(c.YouTube.Identities, c.YouTube.Identities[0])
		}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestQuotaWindow(t *testing.T) {
	if got := (QuotaConfig{}).Window(); got != 24*time.Hour {
		t.Errorf("expected 24h default, got %v", got)
	}
	if got := (QuotaConfig{WindowHours: 6}).Window(); got != 6*time.Hour {
		t.Errorf("expected 6h, got %v", got)
	}
}
