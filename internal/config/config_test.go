package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/unbarrel/internal/targets"
)

func validConfig() Config {
	return Config{
		Root:       ".",
		Targets:    []targets.Definition{{Path: "src/index.ts"}},
		Extensions: []string{".ts"},
		Server: ServerConfig{
			Address:      ":5173",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			CacheSize:    16,
			SourceQuery:  "raw",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Events:  EventsConfig{Backend: "local", Channel: "unbarrel:events"},
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*ServerConfig) {},
			wantErr: false,
		},
		{
			name:    "empty address",
			mutate:  func(sc *ServerConfig) { sc.Address = "" },
			wantErr: true,
			errMsg:  "server address cannot be empty",
		},
		{
			name:    "zero read timeout",
			mutate:  func(sc *ServerConfig) { sc.ReadTimeout = 0 },
			wantErr: true,
			errMsg:  "read_timeout must be positive",
		},
		{
			name:    "negative write timeout",
			mutate:  func(sc *ServerConfig) { sc.WriteTimeout = -time.Second },
			wantErr: true,
			errMsg:  "write_timeout must be positive",
		},
		{
			name:    "zero cache size",
			mutate:  func(sc *ServerConfig) { sc.CacheSize = 0 },
			wantErr: true,
			errMsg:  "cache_size must be positive",
		},
		{
			name:    "empty source query",
			mutate:  func(sc *ServerConfig) { sc.SourceQuery = "" },
			wantErr: true,
			errMsg:  "source_query cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validConfig().Server
			tt.mutate(&sc)
			err := sc.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "empty root",
			mutate:  func(c *Config) { c.Root = "" },
			wantErr: true,
			errMsg:  "root cannot be empty",
		},
		{
			name:    "negative wildcard depth",
			mutate:  func(c *Config) { c.MaxWildcardDepth = -1 },
			wantErr: true,
			errMsg:  "max_wildcard_depth must be non-negative",
		},
		{
			name:    "alias with find and pattern",
			mutate:  func(c *Config) { c.Aliases = []AliasConfig{{Find: "@", Pattern: "^@", Replacement: "/src"}} },
			wantErr: true,
			errMsg:  "aliases[0]",
		},
		{
			name:    "alias with bad pattern",
			mutate:  func(c *Config) { c.Aliases = []AliasConfig{{Pattern: "(", Replacement: "/src"}} },
			wantErr: true,
			errMsg:  "alias pattern",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: true,
			errMsg:  "metrics path must start with '/'",
		},
		{
			name:    "disabled metrics ignore path",
			mutate:  func(c *Config) { c.Metrics = MetricsConfig{} },
			wantErr: false,
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: true,
			errMsg:  "sample_rate",
		},
		{
			name:    "redis events without url",
			mutate:  func(c *Config) { c.Events.Backend = "redis" },
			wantErr: true,
			errMsg:  "redis_url is required",
		},
		{
			name:    "unknown events backend",
			mutate:  func(c *Config) { c.Events.Backend = "nats" },
			wantErr: true,
			errMsg:  "unknown event backend: nats",
		},
		{
			name:    "empty events channel",
			mutate:  func(c *Config) { c.Events.Channel = "" },
			wantErr: true,
			errMsg:  "events channel cannot be empty",
		},
		{
			name:    "server errors are wrapped",
			mutate:  func(c *Config) { c.Server.Address = "" },
			wantErr: true,
			errMsg:  "server configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateInvalidTarget(t *testing.T) {
	c := validConfig()
	c.Targets = append(c.Targets, targets.Definition{Ignore: []string{"x"}})

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, targets.ErrInvalidTargetDefinition)
	assert.Contains(t, err.Error(), "targets[1]")
}

func TestConfig_ResolverAliases(t *testing.T) {
	c := validConfig()
	c.Aliases = []AliasConfig{
		{Find: "@", Replacement: "/p/src"},
		{Pattern: `^~(.*)$`, Replacement: "/p/lib$1"},
	}

	aliases, err := c.ResolverAliases()
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "@", aliases[0].Find)
	assert.Nil(t, aliases[0].Pattern)
	require.NotNil(t, aliases[1].Pattern)
	assert.Equal(t, "/p/lib$1", aliases[1].Replacement)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".", cfg.Root)
	assert.Empty(t, cfg.Targets)
	assert.Zero(t, cfg.MaxWildcardDepth)
	assert.Contains(t, cfg.Extensions, ".tsx")
	assert.Equal(t, []string{"**/node_modules/**"}, cfg.IgnorePatterns)
	assert.True(t, cfg.Diagnostics.DefinedWithinEntry)
	assert.True(t, cfg.Diagnostics.MaxDepthReached)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "unbarrel", cfg.Tracing.ServiceName)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unbarrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /p
targets:
  - path: src/index.ts
  - glob: "src/**/index.ts"
    ignore: ["src/legacy/**"]
max_wildcard_depth: 2
aliases:
  - find: "@"
    replacement: /p/src
diagnostics:
  defined_within_entry: false
server:
  read_timeout: 5s
  transpile: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/p", cfg.Root)
	assert.Equal(t, []targets.Definition{
		{Path: "src/index.ts"},
		{Glob: "src/**/index.ts", Ignore: []string{"src/legacy/**"}},
	}, cfg.Targets)
	assert.Equal(t, 2, cfg.MaxWildcardDepth)
	assert.Equal(t, []AliasConfig{{Find: "@", Replacement: "/p/src"}}, cfg.Aliases)
	assert.False(t, cfg.Diagnostics.DefinedWithinEntry)
	assert.True(t, cfg.Diagnostics.MaxDepthReached)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.True(t, cfg.Server.Transpile)
	assert.Equal(t, ":5173", cfg.Server.Address)
	assert.Equal(t, "raw", cfg.Server.SourceQuery)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "local", cfg.Events.Backend)
	assert.Equal(t, "unbarrel:events", cfg.Events.Channel)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unbarrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_wildcard_depth: 1\n"), 0o644))
	t.Setenv("UNBARREL_MAX_WILDCARD_DEPTH", "3")
	t.Setenv("UNBARREL_SERVER_ADDRESS", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxWildcardDepth)
	assert.Equal(t, ":9000", cfg.Server.Address)
}

func TestLoad_InvalidTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unbarrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - ignore: [\"x\"]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, targets.ErrInvalidTargetDefinition)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
