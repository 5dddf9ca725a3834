package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmirror/internal/playback"
	"github.com/desertthunder/ytmirror/internal/repositories"
	"github.com/desertthunder/ytmirror/internal/services"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/desertthunder/ytmirror/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, the Spotify client, the YouTube connector and the cast session are created on
// first use from the loaded configuration unless they were supplied through [RunnerOpts].
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time

	db         *sql.DB
	ownsDB     bool
	registered bool
	mirrors    *repositories.MirrorRepository
	quota      *repositories.QuotaRepository
	runs       *repositories.RunRepository

	source    services.SourceProvider
	connector services.Connector
	session   playback.Session
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
	DB         *sql.DB
	Source     services.SourceProvider
	Connector  services.Connector
	Session    playback.Session
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
		source:     opts.Source,
		connector:  opts.Connector,
		session:    opts.Session,
	}
	if opts.DB != nil {
		r.useDB(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, mirrorCommand, quotaCommand, castCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies environment overrides and sets the log level.
//
// A missing file falls back to the defaults so that `setup` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
	}

	if err := r.config.ApplyEnv(); err != nil {
		return ctx, err
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) useDB(db *sql.DB) {
	r.db = db
	r.mirrors = repositories.NewMirrorRepository(db)
	r.quota = repositories.NewQuotaRepository(db, r.config.Quota.Window(), r.config.Quota.ResetHour)
	r.runs = repositories.NewRunRepository(db)
}

// open makes the repositories available and registers the configured identities with the ledger.
func (r *Runner) open(ctx context.Context) error {
	if r.db == nil {
		r.logger.Debug("opening database", "path", r.config.Database.Path)
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return err
		}
		r.useDB(db)
		r.ownsDB = true
	}

	if !r.registered {
		if err := r.quota.Register(ctx, r.config.YouTube.Identities); err != nil {
			return err
		}
		r.registered = true
	}
	return nil
}

func (r *Runner) sourceProvider() (services.SourceProvider, error) {
	if r.source != nil {
		return r.source, nil
	}

	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify)
	if err != nil {
		return nil, err
	}
	r.source = svc
	return svc, nil
}

func (r *Runner) videoConnector() services.Connector {
	if r.connector == nil {
		r.connector = services.NewYouTubeConnector(r.config.YouTube, r.logger)
	}
	return r.connector
}

// reconciler wires the engine to the runner's collaborators.
func (r *Runner) reconciler(ctx context.Context, confirm tasks.ConfirmFunc) (*tasks.Reconciler, error) {
	if err := r.open(ctx); err != nil {
		return nil, err
	}
	source, err := r.sourceProvider()
	if err != nil {
		return nil, err
	}

	return tasks.NewReconciler(tasks.ReconcilerOpts{
		Source:        source,
		Connector:     r.videoConnector(),
		Ledger:        r.quota,
		Store:         r.mirrors,
		Runs:          r.runs,
		Confirm:       confirm,
		Logger:        shared.WithLogger(r.logger, "component", "reconciler"),
		Now:           r.now,
		SearchResults: r.config.Sync.SearchResults,
		AdoptOrphans:  r.config.Sync.AdoptOrphans,
	}), nil
}

// platform connects with the first identity that has quota left.
func (r *Runner) platform(ctx context.Context) (services.VideoPlatform, string, error) {
	if err := r.open(ctx); err != nil {
		return nil, "", err
	}

	identity, err := r.quota.PickAvailable(ctx, r.now())
	if err != nil {
		return nil, "", err
	}

	platform, err := r.videoConnector().Connect(ctx, identity)
	if err != nil {
		return nil, "", err
	}
	return platform, identity.Name, nil
}

// exhausted records a quota error against identity and reports whether err was one.
func (r *Runner) exhausted(ctx context.Context, identity string, err error) bool {
	if !errors.Is(err, shared.ErrQuotaExhausted) {
		return false
	}

	r.logger.Warn("quota exhausted", "identity", identity)
	if markErr := r.quota.MarkExhausted(ctx, identity, r.now()); markErr != nil {
		r.logger.Error("failed to record quota exhaustion", "identity", identity, "error", markErr)
	}
	return true
}

func (r *Runner) castSession() (playback.Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	s, err := playback.NewLoungeSession(playback.LoungeOpts{
		ScreenID:   r.config.Cast.ScreenID,
		DeviceName: r.config.Cast.DeviceName,
		Logger:     shared.WithLogger(r.logger, "component", "lounge"),
	})
	if err != nil {
		return nil, err
	}
	r.session = s
	return s, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
