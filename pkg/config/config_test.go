package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/layout"
)

func TestDefaultFillsEverything(t *testing.T) {
	cfg := Default()

	if cfg.Vault.Name != "canopy" {
		t.Errorf("Vault.Name = %q, want canopy", cfg.Vault.Name)
	}
	if cfg.Store.Backend != StoreSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path not defaulted for sqlite")
	}
	if cfg.Provider.Kind != ProviderMemory {
		t.Errorf("Provider.Kind = %q, want memory", cfg.Provider.Kind)
	}
	if got := cfg.Provider.Timeout.Std(); got != 30*time.Second {
		t.Errorf("Provider.Timeout = %v, want 30s", got)
	}
	if cfg.Cache.Kind != CacheFile {
		t.Errorf("Cache.Kind = %q, want file", cfg.Cache.Kind)
	}
	if cfg.Cache.Dir == "" {
		t.Error("Cache.Dir not defaulted for file cache")
	}
	if cfg.Sync.Policy != "ask" {
		t.Errorf("Sync.Policy = %q, want ask", cfg.Sync.Policy)
	}
	if got := cfg.Sync.Debounce.Std(); got != 250*time.Millisecond {
		t.Errorf("Sync.Debounce = %v, want 250ms", got)
	}

	opts, err := cfg.Layout.Options()
	if err != nil {
		t.Fatalf("Layout.Options: %v", err)
	}
	if opts.HSpacing != layout.DefaultHSpacing || opts.MaxIterations != layout.DefaultMaxIterations {
		t.Errorf("layout defaults not applied: %+v", opts)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"mongo without dsn", func(c *Config) { c.Store.Backend = StoreMongo }},
		{"unknown provider kind", func(c *Config) { c.Provider.Kind = "ftp" }},
		{"http without endpoint", func(c *Config) { c.Provider.Kind = ProviderHTTP }},
		{"s3 without bucket", func(c *Config) { c.Provider.Kind = ProviderS3 }},
		{"negative timeout", func(c *Config) { c.Provider.Timeout = Duration(-time.Second) }},
		{"unknown cache kind", func(c *Config) { c.Cache.Kind = "memcached" }},
		{"redis without url", func(c *Config) { c.Cache.Kind = CacheRedis }},
		{"negative spacing", func(c *Config) { c.Layout.HSpacing = -1 }},
		{"unknown policy", func(c *Config) { c.Sync.Policy = "merge" }},
		{"negative debounce", func(c *Config) { c.Sync.Debounce = Duration(-time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := cfg.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("ValidateAndSetDefaults accepted bad config")
			}
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("error code = %v, want INVALID_CONFIG", errors.GetCode(err))
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != StoreSQLite || cfg.Sync.Policy != "ask" {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestLoadParsesSectionsAndDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `
[vault]
name = "notes"

[store]
backend = "memory"

[provider]
kind = "http"
endpoint = "https://sync.example.com"
timeout = "5s"

[cache]
kind = "null"

[layout]
h_spacing = 12.5
max_iterations = 3

[sync]
policy = "server"
debounce = "1s"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.Name != "notes" {
		t.Errorf("Vault.Name = %q, want notes", cfg.Vault.Name)
	}
	if cfg.Provider.Kind != ProviderHTTP || cfg.Provider.Endpoint != "https://sync.example.com" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if got := cfg.Provider.Timeout.Std(); got != 5*time.Second {
		t.Errorf("Provider.Timeout = %v, want 5s", got)
	}
	if got := cfg.Sync.Debounce.Std(); got != time.Second {
		t.Errorf("Sync.Debounce = %v, want 1s", got)
	}
	if cfg.Sync.Policy != "server" {
		t.Errorf("Sync.Policy = %q, want server", cfg.Sync.Policy)
	}

	opts, err := cfg.Layout.Options()
	if err != nil {
		t.Fatalf("Layout.Options: %v", err)
	}
	if opts.HSpacing != 12.5 || opts.MaxIterations != 3 {
		t.Errorf("layout overrides lost: %+v", opts)
	}
	if opts.VSpacing != layout.DefaultVSpacing {
		t.Errorf("VSpacing = %v, want default %v", opts.VSpacing, layout.DefaultVSpacing)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("vault = {"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load bad TOML = %v, want INVALID_CONFIG", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	cfg := Default()
	cfg.Vault.Name = "garden"
	cfg.Store.Backend = StoreMemory
	cfg.Store.Path = ""
	cfg.Provider.Kind = ProviderS3
	cfg.Provider.Bucket = "canopy-vaults"
	cfg.Sync.Policy = "local"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Vault.Name != "garden" {
		t.Errorf("Vault.Name = %q, want garden", got.Vault.Name)
	}
	if got.Provider.Kind != ProviderS3 || got.Provider.Bucket != "canopy-vaults" {
		t.Errorf("provider = %+v", got.Provider)
	}
	if got.Provider.Region != "us-east-1" {
		t.Errorf("Region = %q, want defaulted us-east-1", got.Provider.Region)
	}
	if got.Sync.Policy != "local" {
		t.Errorf("Sync.Policy = %q, want local", got.Sync.Policy)
	}
}

func TestLocate(t *testing.T) {
	if got, err := Locate("/tmp/custom.toml"); err != nil || got != "/tmp/custom.toml" {
		t.Errorf("Locate explicit = %q, %v", got, err)
	}

	dir := t.TempDir()
	t.Chdir(dir)

	// No local file: falls back to the user config dir.
	got, err := Locate("")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if filepath.Base(got) != FileName || got == FileName {
		t.Errorf("Locate fallback = %q, want path under config dir", got)
	}

	// A canopy.toml in the working directory wins.
	if err := os.WriteFile(FileName, []byte(""), 0o644); err != nil {
		t.Fatalf("write local config: %v", err)
	}
	got, err = Locate("")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != FileName {
		t.Errorf("Locate with local file = %q, want %q", got, FileName)
	}
}

func TestDurationTextRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back Duration
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q): %v", text, err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back.Std(), d.Std())
	}

	if err := back.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}
