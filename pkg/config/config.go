// Package config reads and writes canopy.toml, the per-vault
// configuration file. It selects the storage, remote, and cache backends
// and carries layout tuning and sync policy. Values the file omits fall
// back to working defaults, so an empty file is a valid configuration.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/layout"
)

// FileName is the configuration file canopy looks for.
const FileName = "canopy.toml"

// Backend and policy values accepted by [Config.ValidateAndSetDefaults].
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	ProviderMemory = "memory"
	ProviderHTTP   = "http"
	ProviderS3     = "s3"

	CacheNull  = "null"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Duration is a time.Duration that (un)marshals as a TOML string like
// "250ms" or "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full canopy.toml document.
type Config struct {
	Vault    VaultConfig    `toml:"vault"`
	Store    StoreConfig    `toml:"store"`
	Provider ProviderConfig `toml:"provider"`
	Cache    CacheConfig    `toml:"cache"`
	Layout   LayoutConfig   `toml:"layout"`
	Sync     SyncConfig     `toml:"sync"`
}

// VaultConfig names the vault this directory belongs to.
type VaultConfig struct {
	Name string `toml:"name"`
}

// StoreConfig selects the local persistence backend.
type StoreConfig struct {
	// Backend is memory, sqlite, or mongo.
	Backend string `toml:"backend"`
	// Path is the SQLite database file. Empty means the default data dir.
	Path string `toml:"path,omitempty"`
	// DSN is the Mongo connection string.
	DSN string `toml:"dsn,omitempty"`
	// Database is the Mongo database name.
	Database string `toml:"database,omitempty"`
}

// ProviderConfig selects the remote backend.
type ProviderConfig struct {
	// Kind is memory, http, or s3.
	Kind string `toml:"kind"`
	// Endpoint is the HTTP remote base URL, or a custom S3 endpoint for
	// MinIO-style deployments.
	Endpoint string `toml:"endpoint,omitempty"`
	// Bucket holds vault objects when Kind is s3.
	Bucket string `toml:"bucket,omitempty"`
	// Region for s3. Defaults to us-east-1.
	Region string `toml:"region,omitempty"`
	// Timeout bounds each remote call.
	Timeout Duration `toml:"timeout,omitempty"`
}

// CacheConfig selects the remote-fetch cache.
type CacheConfig struct {
	// Kind is null, file, or redis.
	Kind string `toml:"kind"`
	// Dir is the file cache root. Empty means the default cache dir.
	Dir string `toml:"dir,omitempty"`
	// URL is the redis connection URL.
	URL string `toml:"url,omitempty"`
}

// LayoutConfig tunes overlap resolution. Zero fields use the layout
// package defaults.
type LayoutConfig struct {
	HSpacing      float64 `toml:"h_spacing,omitempty"`
	VSpacing      float64 `toml:"v_spacing,omitempty"`
	MaxIterations int     `toml:"max_iterations,omitempty"`
	MaxStep       float64 `toml:"max_step,omitempty"`
}

// Options converts the section into layout.Options with defaults applied.
func (l LayoutConfig) Options() (layout.Options, error) {
	opts := layout.Options{
		HSpacing:      l.HSpacing,
		VSpacing:      l.VSpacing,
		MaxIterations: l.MaxIterations,
		MaxStep:       l.MaxStep,
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return layout.Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "layout section")
	}
	return opts, nil
}

// SyncConfig tunes the sync manager.
type SyncConfig struct {
	// Policy settles conflicts: ask, server, or local.
	Policy string `toml:"policy"`
	// Debounce is the pause between queued pushes.
	Debounce Duration `toml:"debounce,omitempty"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.ValidateAndSetDefaults() // zero config cannot fail validation
	return cfg
}

// ValidateAndSetDefaults replaces zero fields with defaults and rejects
// unknown backend names and incomplete backend sections.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Vault.Name == "" {
		c.Vault.Name = "canopy"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = StoreSQLite
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			dir, err := DataDir()
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve data dir")
			}
			c.Store.Path = filepath.Join(dir, "canopy.db")
		}
	case StoreMongo:
		if c.Store.DSN == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "store backend mongo needs a dsn")
		}
		if c.Store.Database == "" {
			c.Store.Database = "canopy"
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown store backend %q (want memory, sqlite, or mongo)", c.Store.Backend)
	}

	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderMemory
	}
	switch c.Provider.Kind {
	case ProviderMemory:
	case ProviderHTTP:
		if c.Provider.Endpoint == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "provider kind http needs an endpoint")
		}
	case ProviderS3:
		if c.Provider.Bucket == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "provider kind s3 needs a bucket")
		}
		if c.Provider.Region == "" {
			c.Provider.Region = "us-east-1"
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown provider kind %q (want memory, http, or s3)", c.Provider.Kind)
	}
	if c.Provider.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "provider timeout must not be negative")
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = Duration(30 * time.Second)
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = CacheFile
	}
	switch c.Cache.Kind {
	case CacheNull:
	case CacheFile:
		if c.Cache.Dir == "" {
			dir, err := CacheDir()
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve cache dir")
			}
			c.Cache.Dir = dir
		}
	case CacheRedis:
		if c.Cache.URL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache kind redis needs a url")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown cache kind %q (want null, file, or redis)", c.Cache.Kind)
	}

	if _, err := c.Layout.Options(); err != nil {
		return err
	}

	if c.Sync.Policy == "" {
		c.Sync.Policy = "ask"
	}
	switch c.Sync.Policy {
	case "ask", "server", "local":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown sync policy %q (want ask, server, or local)", c.Sync.Policy)
	}
	if c.Sync.Debounce < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "sync debounce must not be negative")
	}
	if c.Sync.Debounce == 0 {
		c.Sync.Debounce = Duration(250 * time.Millisecond)
	}

	return nil
}

// Load reads and validates a canopy.toml. A missing file yields the
// default configuration, so callers need no exists-check.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "read config %s", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "encode config")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "write config %s", path)
	}
	return nil
}

// Locate resolves the config path: an explicit path wins, then
// ./canopy.toml when present, then the user config dir. The returned
// path may not exist yet; Load treats that as defaults.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}
