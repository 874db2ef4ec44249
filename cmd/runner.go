package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chorusbot/chorus/internal/access"
	"github.com/chorusbot/chorus/internal/dialog"
	"github.com/chorusbot/chorus/internal/engine"
	"github.com/chorusbot/chorus/internal/repositories"
	"github.com/chorusbot/chorus/internal/router"
	"github.com/chorusbot/chorus/internal/shared"
	"github.com/chorusbot/chorus/internal/ui"
	"github.com/chorusbot/chorus/internal/yamusic"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	db        *sql.DB
	users     *repositories.UserRepository
	accounts  *repositories.AccountRepository
	playlists *repositories.PlaylistRepository
	grants    *repositories.GrantRepository
	actions   *repositories.ActionRepository
	router    *router.Router
	access    *access.Store
	engine    *engine.Engine
	dialogs   *dialog.Store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, accountCommand, playlistCommand, shareCommand, chatCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open wires the persistence and service layers on first use. Commands that
// only touch configuration (setup) skip this.
func (r *Runner) open(cmd *cli.Command) error {
	if r.db != nil {
		return nil
	}

	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		r.config = config
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.accounts = repositories.NewAccountRepository(db)
	r.playlists = repositories.NewPlaylistRepository(db)
	r.grants = repositories.NewGrantRepository(db)
	r.actions = repositories.NewActionRepository(db)

	retry := router.RetryConfig{
		Attempts:  r.config.Remote.HandshakeAttempts,
		BaseDelay: time.Duration(r.config.Remote.HandshakeBaseDelay) * time.Millisecond,
	}
	r.router = router.New(r.accounts, r.playlists, r.dial(), retry, r.logger)
	r.access = access.NewStore(r.grants, r.playlists)
	r.engine = engine.New(r.playlists, r.access, r.router, r.actions, r.logger, r.config.Engine.MutationAttempts)
	r.dialogs = dialog.NewStore(time.Duration(r.config.Dialog.TTLMinutes) * time.Minute)

	return nil
}

// user resolves the acting local user from the --user flag, creating the
// row on first sight.
func (r *Runner) user(cmd *cli.Command) (int64, error) {
	userID := int64(cmd.Int("user"))
	username := cmd.String("username")
	if username == "" {
		username = fmt.Sprintf("user%d", userID)
	}
	if err := r.users.Ensure(userID, username); err != nil {
		return 0, fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	return userID, nil
}

// report renders an engine outcome. Business failures are told to the user
// and do not abort the process.
func (r *Runner) report(res engine.Result, okMessage string) error {
	if res.OK {
		r.writePlain("%s\n", ui.Success(okMessage))
		return nil
	}
	r.writePlain("%s\n", ui.Error(res.Message))
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

// dial builds the router's handshake function from the configured base URL
// and rate limit.
func (r *Runner) dial() router.DialFunc {
	base := r.config.Remote.BaseURL
	rps := r.config.Remote.RateLimit
	logger := r.logger

	return func(ctx context.Context, token string) (yamusic.API, string, error) {
		client := yamusic.NewClient(token, base, logger)
		if rps > 0 {
			client.SetRateLimit(rps)
		}
		info, err := client.AccountStatus(ctx)
		if err != nil {
			return nil, "", err
		}
		return client, info.UID, nil
	}
}

// Close releases the database handle.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
