package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override read by [Config.ApplyEnv].
const EnvPrefix = "YTMIRROR_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	YouTube     YouTubeConfig     `toml:"youtube"`
	Quota       QuotaConfig       `toml:"quota"`
	Sync        SyncConfig        `toml:"sync"`
	Cast        CastConfig        `toml:"cast"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// YouTubeConfig holds the YouTube Data API settings and the rotating identity pool.
type YouTubeConfig struct {
	RedirectURI       string           `toml:"redirect_uri"`
	RequestsPerSecond float64          `toml:"requests_per_second"`
	Identities        []IdentityConfig `toml:"identities"`
}

// IdentityConfig is one OAuth client with its own daily quota.
type IdentityConfig struct {
	Name             string `toml:"name"`
	ClientSecretPath string `toml:"client_secret_path"`
	TokenPath        string `toml:"token_path"`
}

// QuotaConfig controls when an exhausted identity is considered usable again.
type QuotaConfig struct {
	WindowHours int `toml:"window_hours"`
	ResetHour   int `toml:"reset_hour"`
}

// Window returns the replenish window, defaulting to 24 hours.
func (q QuotaConfig) Window() time.Duration {
	if q.WindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(q.WindowHours) * time.Hour
}

type SyncConfig struct {
	SearchResults int  `toml:"search_results"`
	AdoptOrphans  bool `toml:"adopt_orphans"`
}

// CastConfig points at a lounge-capable screen.
type CastConfig struct {
	ScreenID    string `toml:"screen_id"`
	DeviceName  string `toml:"device_name"`
	PollSeconds int    `toml:"poll_seconds"`
	MaxQueue    int    `toml:"max_queue"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port the callback server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.YouTube.Identities = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads KEY=VALUE pairs from the given dotenv files into the process environment.
//
// Missing files are ignored; variables already set are never overwritten.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and paths with YTMIRROR_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"DATABASE_PATH":         &c.Database.Path,
		"CAST_SCREEN_ID":        &c.Cast.ScreenID,
		"LOG_LEVEL":             &c.Log.Level,
	}
	for k, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "QUOTA_RESET_HOUR"); ok {
		h, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sQUOTA_RESET_HOUR=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		c.Quota.ResetHour = h
	}
	return nil
}

// Validate reports configuration that would make every sync fail.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if c.Quota.ResetHour < -1 || c.Quota.ResetHour > 23 {
		return fmt.Errorf("%w: quota.reset_hour must be -1 or 0-23, got %d", ErrInvalidConfig, c.Quota.ResetHour)
	}

	seen := make(map[string]bool, len(c.YouTube.Identities))
	for i, id := range c.YouTube.Identities {
		if id.Name == "" {
			return fmt.Errorf("%w: youtube.identities[%d] has no name", ErrInvalidConfig, i)
		}
		if seen[id.Name] {
			return fmt.Errorf("%w: duplicate identity %q", ErrInvalidConfig, id.Name)
		}
		seen[id.Name] = true
	}
	return nil
}
