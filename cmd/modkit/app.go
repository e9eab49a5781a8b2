// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/config"
	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/issue"
	"github.com/modkit/modkit/internal/metrics"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/internal/updatecheck"
	"github.com/modkit/modkit/pkg/version"
)

// ErrModsDirNotSet is returned when neither --mods-dir nor the config names
// a mod root.
var ErrModsDirNotSet = errors.New("mods directory not set")

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and builds
	// its services through it.
	App struct {
		Config     ConfigProvider
		HTTPClient *http.Client
		Fs         afero.Fs
		stdout     io.Writer
		stderr     io.Writer
		flags      globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     ConfigProvider
		HTTPClient *http.Client
		Fs         afero.Fs
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalFlags holds the persistent root flags.
	globalFlags struct {
		configFile  string
		verbose     bool
		modsDir     string
		gameVersion string
	}

	// session is the set of services one command invocation works with.
	session struct {
		cfg     *config.Config
		logger  *log.Logger
		reg     *registry.Registry
		engine  *engine.Engine
		checker *updatecheck.Checker
		metrics *metrics.Metrics
		diags   []registry.Diagnostic
	}

	// syncWriter serializes writes from concurrent progress callbacks.
	syncWriter struct {
		mu sync.Mutex
		w  io.Writer
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		HTTPClient: deps.HTTPClient,
		Fs:         deps.Fs,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration and applies the global flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile})
	if err != nil {
		return nil, err
	}
	if a.flags.modsDir != "" {
		cfg.ModsDir = a.flags.modsDir
	}
	if a.flags.gameVersion != "" {
		cfg.GameVersion = a.flags.gameVersion
	}
	return cfg, nil
}

// newLogger returns the root logger at the configured level. --verbose
// always enables debug output.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level := cfg.LogLevel.Level()
	if a.flags.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName, Level: level})
}

// openSession loads the config, scans the mod root and wires the engine.
// The caller must close the session.
func (a *App) openSession(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	root := cfg.ModsRoot()
	if root == "" {
		return nil, issue.NewErrorContext().
			WithOperation("open mod root").
			WithSuggestions(
				"Pass --mods-dir <path>",
				"Set game_dir or mods_dir in "+configPathHint(),
			).
			WithIssue(issue.ModsDirNotSetId).
			Wrap(ErrModsDirNotSet).
			BuildError()
	}
	info, err := a.Fs.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, issue.NewErrorContext().
			WithOperation("open mod root").
			WithResource(root).
			WithSuggestion("Create the directory or point --mods-dir at the game's mods folder").
			WithIssue(issue.ModsDirNotSetId).
			Wrap(err).
			BuildError()
	case err != nil:
		return nil, fmt.Errorf("open mod root %s: %w", root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("open mod root %s: not a directory", root)
	}

	logger := a.newLogger(cfg)
	var game version.Version
	if cfg.GameVersion != "" {
		game = version.Parse(cfg.GameVersion)
	}

	reg := registry.New(root,
		registry.NewScanner(a.Fs),
		state.New(a.Fs, root),
		registry.WithLogger(logger.WithPrefix("registry")),
		registry.WithGameVersion(game),
	)
	diags, err := reg.Rescan(ctx)
	if err != nil {
		return nil, err
	}

	in := installer.New(reg, installer.WithLogger(logger.WithPrefix("installer")))
	pool := installer.NewPool(in, cfg.Install.Workers)

	checkerOpts := []updatecheck.Option{
		updatecheck.WithUserAgent(cfg.Updates.UserAgent),
		updatecheck.WithTimeout(cfg.Updates.Timeout),
		updatecheck.WithConcurrency(cfg.Updates.Concurrency),
		updatecheck.WithCacheTTL(cfg.Updates.CacheTTL),
		updatecheck.WithLogger(logger.WithPrefix("updatecheck")),
	}
	if a.HTTPClient != nil {
		checkerOpts = append(checkerOpts, updatecheck.WithHTTPClient(a.HTTPClient))
	}
	checker := updatecheck.New(checkerOpts...)

	m := metrics.New()
	eng := engine.New(pool, checker,
		engine.WithLogger(logger.WithPrefix("engine")),
		engine.WithMetrics(m),
		engine.WithDefaultPolicy(cfg.Install.Policy),
		engine.WithEnableOnInstall(cfg.Install.EnableOnInstall),
	)

	return &session{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		engine:  eng,
		checker: checker,
		metrics: m,
		diags:   diags,
	}, nil
}

// close stops the engine, cancelling anything still running.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.engine.Shutdown(ctx); err != nil {
		s.logger.Warn("engine shutdown", "err", err)
	}
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func configPathHint() string {
	if p, err := config.ConfigPath(); err == nil {
		return p
	}
	return "config.cue"
}
