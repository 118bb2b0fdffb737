// Package cli implements the canopy command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/buildinfo"
	"github.com/canopyhq/canopy/pkg/cache"
	"github.com/canopyhq/canopy/pkg/config"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
	"github.com/canopyhq/canopy/pkg/sync"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "canopy"

	// defaultServeAddr is the listen address for the built-in remote server.
	defaultServeAddr = ":8787"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath is the explicit canopy.toml path from --config. Empty
	// falls back to ./canopy.toml, then the user config dir.
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "canopy",
		Short:        "Canopy keeps mindmap vaults laid out and in sync",
		Long:         `Canopy is a CLI for mindmap vaults: it resolves node overlaps, exports maps as DOT/SVG/PNG, and syncs documents between a local store and a remote backend.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "path to canopy.toml (default: ./canopy.toml, then user config dir)")

	// Register all subcommands
	root.AddCommand(c.vaultCommand())
	root.AddCommand(c.docsCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Backend Factories
// =============================================================================

// loadConfig resolves and loads the effective canopy.toml.
func (c *CLI) loadConfig() (*config.Config, error) {
	path, err := config.Locate(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newManager assembles the sync manager from the resolved configuration.
// The returned cleanup closes the manager and every backend it opened.
func (c *CLI) newManager(ctx context.Context, cfg *config.Config, resolver sync.ConflictResolver) (*sync.Manager, func(), error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	prov, err := c.newProvider(ctx, cfg.Provider)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	ca, err := newCache(cfg.Cache)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	policy, err := sync.ParseConflictPolicy(cfg.Sync.Policy)
	if err != nil {
		st.Close()
		ca.Close()
		return nil, nil, err
	}

	mgr, err := sync.NewManager(sync.Options{
		Store:    st,
		Provider: prov,
		Cache:    ca,
		Logger:   c.Logger,
		Policy:   policy,
		Resolver: resolver,
		Debounce: cfg.Sync.Debounce.Std(),
	})
	if err != nil {
		st.Close()
		ca.Close()
		return nil, nil, err
	}

	cleanup := func() {
		mgr.Close()
		ca.Close()
		st.Close()
	}
	return mgr, cleanup, nil
}

// openStore opens the local persistence backend named by the config.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreSQLite:
		return store.NewSQLiteStore(ctx, cfg.Path)
	case config.StoreMongo:
		return store.NewMongoStore(ctx, cfg.DSN, cfg.Database)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown store backend %q", cfg.Backend)
}

// newProvider opens the remote backend named by the config. The HTTP
// provider picks up the bearer token saved by 'canopy auth login'.
func (c *CLI) newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderMemory:
		return provider.NewMemoryProvider(), nil
	case config.ProviderHTTP:
		return provider.NewHTTPProvider(provider.HTTPConfig{
			BaseURL: cfg.Endpoint,
			Token:   remoteToken(ctx),
			Timeout: cfg.Timeout.Std(),
			Logger:  c.Logger,
		}), nil
	case config.ProviderS3:
		return provider.NewS3Provider(ctx, provider.S3Config{
			Endpoint: cfg.Endpoint,
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
		})
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown provider kind %q", cfg.Kind)
}

// newCache opens the remote-fetch cache named by the config. A file cache
// that fails to open degrades to the null cache instead of failing the
// command.
func newCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Kind {
	case config.CacheNull:
		return cache.NewNullCache(), nil
	case config.CacheFile:
		fc, err := cache.NewFileCache(cfg.Dir)
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return fc, nil
	case config.CacheRedis:
		return cache.NewRedisCache(cfg.URL)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache kind %q", cfg.Kind)
}
