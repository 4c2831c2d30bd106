// Package main provides the CLI entrypoint for quiver.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/quiver/internal/cache"
	"github.com/verte-zerg/quiver/internal/config"
	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/scoring"
	"github.com/verte-zerg/quiver/internal/store"
)

const (
	defaultOwner    = "local"
	defaultBow      = "compound"
	defaultDistance = 70.0
	defaultEnds     = 6
	defaultArrows   = 6
	defaultKind     = "practice"
)

var (
	rootOwner    string
	rootDB       string
	rootBackend  string
	rootStrategy string
	rootVerbose  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quiver",
		Short:         "Archery score recorder",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&rootOwner, "owner", defaultOwner, "owner id sessions are recorded under")
	rootCmd.PersistentFlags().StringVar(&rootDB, "db", "", "database path (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&rootBackend, "backend", config.BackendSQLite, "storage backend (sqlite or badger)")
	rootCmd.PersistentFlags().StringVar(&rootStrategy, "strategy", string(store.StrategyDocument), "sqlite score layout (document or arrows)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "log debug diagnostics to stderr")

	rootCmd.AddCommand(newNewCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newArrowCmd())
	rootCmd.AddCommand(newCompleteCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSightCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app is the wiring shared by every command that touches storage.
type app struct {
	file    config.FileConfig
	owner   string
	logger  *slog.Logger
	backend store.Backend
	cache   *cache.Cache
	repo    *scoring.Repository
}

func openApp(cmd *cobra.Command) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := fileCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s:\n%w", config.DefaultConfigPath(), err)
	}
	applyStringConfig(cmd, "owner", &rootOwner, fileCfg.Archer.Owner)
	applyStringConfig(cmd, "db", &rootDB, fileCfg.Storage.Path)
	applyStringConfig(cmd, "backend", &rootBackend, fileCfg.Storage.Backend)
	applyStringConfig(cmd, "strategy", &rootStrategy, fileCfg.Storage.Strategy)

	if strings.TrimSpace(rootOwner) == "" {
		return nil, fmt.Errorf("--owner must not be empty")
	}

	logger, err := newLogger(cmd.ErrOrStderr(), fileCfg)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(logger)
	if err != nil {
		return nil, err
	}

	ttl := cache.DefaultTTL
	if fileCfg.Stats.CacheTTL != nil {
		ttl = fileCfg.Stats.CacheTTL.Duration
	}
	timeout := scoring.DefaultTimeout
	if fileCfg.Storage.Timeout != nil {
		timeout = fileCfg.Storage.Timeout.Duration
	}
	c := cache.New(backend, ttl, cache.WithLogger(logger))
	repo := scoring.New(backend,
		scoring.WithCache(c),
		scoring.WithLogger(logger),
		scoring.WithTimeout(timeout),
	)
	return &app{
		file:    fileCfg,
		owner:   rootOwner,
		logger:  logger,
		backend: backend,
		cache:   c,
		repo:    repo,
	}, nil
}

func (a *app) Close() {
	if cerr := a.backend.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newLogger(w io.Writer, fileCfg config.FileConfig) (*slog.Logger, error) {
	level := slog.LevelWarn
	if fileCfg.Log.Level != nil {
		parsed, err := config.ParseLogLevel(*fileCfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		level = parsed
	}
	if rootVerbose {
		level = slog.LevelDebug
	}
	return config.NewLogger(w, level), nil
}

func openBackend(logger *slog.Logger) (store.Backend, error) {
	path := rootDB
	if path == "" {
		path = config.DefaultStoragePath(rootBackend)
	}
	switch rootBackend {
	case config.BackendSQLite:
		strategy, err := store.ParseStrategy(rootStrategy)
		if err != nil {
			return nil, err
		}
		st, err := store.Open(path, store.WithStrategy(strategy))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		logger.Debug("opened sqlite store", "path", path, "strategy", st.Strategy())
		return st, nil
	case config.BackendBadger:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		st, err := store.OpenBadger(store.BadgerConfig{Path: path, SyncWrites: true, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		logger.Debug("opened badger store", "path", path)
		return st, nil
	}
	return nil, fmt.Errorf("unknown backend %q (use %s or %s)", rootBackend, config.BackendSQLite, config.BackendBadger)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# quiver configuration
# Uncomment a value to enable it. CLI flags override config values.

[archer]
# owner = %q            # Owner id sessions are recorded under
# name = ""                # Archer first name shown on scorecards
# surname = ""             # Archer surname
# bow = %q         # compound, recurve or barebow

[session]
# distance = %g            # Distance in metres for new sessions
# ends = %d                 # Ends per session
# arrows = %d               # Arrows per end
# kind = %q        # practice or tournament

[stats]
# distances = [18, 20, 30, 50, 70, 90]  # Distance buckets for averages
# cache_ttl = %q          # How long computed stats stay cached

[storage]
# backend = %q       # sqlite or badger
# path = ""                # Database file (sqlite) or directory (badger)
# strategy = %q    # sqlite score layout: document or arrows
# timeout = %q           # Deadline for each storage call

[log]
# level = "warn"           # debug, info, warn or error
`,
		defaultOwner,
		defaultBow,
		defaultDistance,
		defaultEnds,
		defaultArrows,
		defaultKind,
		cache.DefaultTTL.String(),
		config.BackendSQLite,
		string(store.StrategyDocument),
		scoring.DefaultTimeout.String(),
	)
}

// parseSince reads a YYYY-MM-DD date in local time.
func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func validateNewSession(cfg model.Config) error {
	if cfg.Distance <= 0 {
		return fmt.Errorf("--distance must be > 0")
	}
	if cfg.TotalEnds <= 0 {
		return fmt.Errorf("--ends must be > 0")
	}
	if cfg.ArrowsPerEnd <= 0 {
		return fmt.Errorf("--arrows must be > 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
