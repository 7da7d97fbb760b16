package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/resolver"
	"github.com/fluxbase-eu/unbarrel/internal/targets"
)

// Config holds all configuration for the optimizer and its dev server
type Config struct {
	Root             string                     `mapstructure:"root"`
	Targets          []targets.Definition       `mapstructure:"targets"`
	Extensions       []string                   `mapstructure:"extensions"`
	IgnorePatterns   []string                   `mapstructure:"ignore_patterns"`
	MaxWildcardDepth int                        `mapstructure:"max_wildcard_depth"`
	Aliases          []AliasConfig              `mapstructure:"aliases"`
	Diagnostics      DiagnosticsConfig          `mapstructure:"diagnostics"`
	Server           ServerConfig               `mapstructure:"server"`
	Metrics          MetricsConfig              `mapstructure:"metrics"`
	Tracing          observability.TracerConfig `mapstructure:"tracing"`
	Events           EventsConfig               `mapstructure:"events"`
	Debug            bool                       `mapstructure:"debug"`
	LogLevel         string                     `mapstructure:"log_level"`
}

// AliasConfig rewrites the head of a specifier before resolution. Either Find
// (exact or path-prefix match) or Pattern (regular expression) is set.
type AliasConfig struct {
	Find        string `mapstructure:"find"`
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
}

// DiagnosticsConfig toggles each diagnostic kind
type DiagnosticsConfig struct {
	DefinedWithinEntry bool `mapstructure:"defined_within_entry"`
	MaxDepthReached    bool `mapstructure:"max_depth_reached"`
}

// ServerConfig contains dev server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Transpile    bool          `mapstructure:"transpile"`
	CacheSize    int           `mapstructure:"cache_size"`
	SourceQuery  string        `mapstructure:"source_query"` // query parameter that requests an entry's original source
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EventsConfig selects where optimizer events are published
type EventsConfig struct {
	Backend    string `mapstructure:"backend"`   // "local" or "redis"
	RedisURL   string `mapstructure:"redis_url"` // redis://[password@]host:port[/db]
	Channel    string `mapstructure:"channel"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// Load reads configuration from the file at path (or unbarrel.yaml in the
// usual locations when path is empty), the environment and defaults.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("unbarrel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Enable environment variable support with underscore replacer
	v.AutomaticEnv()
	v.SetEnvPrefix("UNBARREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with every default applied and nothing
// read from files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &config
}

// loadEnvFile attempts to load .env file from multiple locations
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("extensions", []string{".js", ".jsx", ".mjs", ".ts", ".tsx", ".mts", ".vue", ".svelte"})
	v.SetDefault("ignore_patterns", []string{"**/node_modules/**"})
	v.SetDefault("max_wildcard_depth", 0)

	// Diagnostics defaults
	v.SetDefault("diagnostics.defined_within_entry", true)
	v.SetDefault("diagnostics.max_depth_reached", true)

	// Server defaults
	v.SetDefault("server.address", ":5173")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.transpile", false)
	v.SetDefault("server.cache_size", 512)
	v.SetDefault("server.source_query", "raw")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	tracing := observability.DefaultTracerConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.environment", tracing.Environment)
	v.SetDefault("tracing.sample_rate", tracing.SampleRate)
	v.SetDefault("tracing.insecure", tracing.Insecure)

	// Events defaults
	v.SetDefault("events.backend", "local")
	v.SetDefault("events.channel", "unbarrel:events")
	v.SetDefault("events.buffer_size", 256)

	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root cannot be empty")
	}

	for i, def := range c.Targets {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}

	if c.MaxWildcardDepth < 0 {
		return fmt.Errorf("max_wildcard_depth must be non-negative")
	}

	if _, err := c.ResolverAliases(); err != nil {
		return err
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration error: %w", err)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/'")
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events configuration error: %w", err)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate must be between 0 and 1")
	}

	return nil
}

// ResolverAliases compiles the configured aliases in order.
func (c *Config) ResolverAliases() ([]resolver.Alias, error) {
	aliases := make([]resolver.Alias, 0, len(c.Aliases))
	for i, a := range c.Aliases {
		alias, err := resolver.NewAlias(a.Find, a.Pattern, a.Replacement)
		if err != nil {
			return nil, fmt.Errorf("aliases[%d]: %w", i, err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, nil
}

// Validate validates server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if sc.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got: %v", sc.ReadTimeout)
	}

	if sc.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got: %v", sc.WriteTimeout)
	}

	if sc.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got: %d", sc.CacheSize)
	}

	if sc.SourceQuery == "" {
		return fmt.Errorf("source_query cannot be empty")
	}

	return nil
}

// Validate validates event bus configuration
func (ec *EventsConfig) Validate() error {
	switch ec.Backend {
	case "", "local":
	case "redis":
		if ec.RedisURL == "" {
			return fmt.Errorf("redis_url is required for redis event backend")
		}
	default:
		return fmt.Errorf("unknown event backend: %s", ec.Backend)
	}

	if ec.Channel == "" {
		return fmt.Errorf("events channel cannot be empty")
	}

	return nil
}
