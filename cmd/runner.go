package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"crossfade/internal/match"
	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/review"
	"crossfade/internal/services"
	"crossfade/internal/shared"
	"crossfade/internal/tasks"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	registry map[models.Platform]services.Service
	creds    services.CredentialResolver
	logger   *log.Logger
	output   io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Registry map[models.Platform]services.Service
	Creds    services.CredentialResolver
	Logger   *log.Logger
	Output   io.Writer
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
	if opts.Registry == nil {
		opts.Registry = buildRegistry(opts.Config)
	}
	if opts.Creds == nil {
		opts.Creds = services.NewConfigResolver(opts.Config)
	}

	return &Runner{
		config:   opts.Config,
		registry: opts.Registry,
		creds:    opts.Creds,
		logger:   opts.Logger,
		output:   opts.Output,
	}
}

// buildRegistry constructs the platform client registry from configuration.
func buildRegistry(config *shared.Config) map[models.Platform]services.Service {
	return map[models.Platform]services.Service{
		models.PlatformSpotify: services.NewSpotifyService(config.Credentials.Spotify, config.Worker),
		models.PlatformNetease: services.NewNeteaseService(config.Credentials.Netease, config.Worker),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, convertCommand, jobsCommand, reviewCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured database with the configured pool limits.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// orchestrator builds the conversion pipeline over an open database. sink may be nil.
func (r *Runner) orchestrator(db *sql.DB, sink tasks.ProgressSink) (*tasks.Orchestrator, *repositories.JobRepository, *repositories.MatchRepository) {
	jobs := repositories.NewJobRepository(db)
	matches := repositories.NewMatchRepository(db)
	engine := match.NewEngine(match.ConfigFrom(r.config.Matching), r.logger)

	return tasks.NewOrchestrator(jobs, matches, engine, r.registry, r.creds, sink, r.logger), jobs, matches
}

// reviewer builds the review workflow over the given repositories.
func (r *Runner) reviewer(jobs *repositories.JobRepository, matches *repositories.MatchRepository) *review.Reviewer {
	return review.NewReviewer(jobs, matches, r.registry, r.creds, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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
