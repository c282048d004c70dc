// Package config loads runtime configuration with layered precedence:
// built-in defaults, then a YAML file, then LATTICE_ environment
// variables. The loaded struct is checked with struct validation
// before anything starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFileName is the config file looked up in the working
// directory when no explicit path is given.
const DefaultFileName = "lattice.yaml"

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Cache     CacheConfig     `koanf:"cache"`
	Store     StoreConfig     `koanf:"store"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Transport TransportConfig `koanf:"transport"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Type     string `koanf:"type" validate:"oneof=memory redis"`
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	MaxItems int    `koanf:"max_items" validate:"gte=0"`
	Prefix   string `koanf:"prefix"`
}

// StoreConfig configures persisted variables.
type StoreConfig struct {
	// EncryptionKey enables encrypt="true" on set statements. Empty
	// disables encryption.
	EncryptionKey string `koanf:"encryption_key"`
}

// SchedulerConfig configures the background worker.
type SchedulerConfig struct {
	RedisAddr     string `koanf:"redis_addr" validate:"required"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	Concurrency     int            `koanf:"concurrency" validate:"gte=1"`
	Queues          map[string]int `koanf:"queues"`
	ShutdownTimeout time.Duration  `koanf:"shutdown_timeout"`
}

// TransportConfig configures outbound invoke calls.
type TransportConfig struct {
	BaseURL  string            `koanf:"base_url"`
	Services map[string]string `koanf:"services"`
	Timeout  time.Duration     `koanf:"timeout"`

	BearerTokens  map[string]string `koanf:"bearer_tokens"`
	BasicUser     string            `koanf:"basic_user"`
	BasicPassword string            `koanf:"basic_password"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
	Output string `koanf:"output"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Type:     "memory",
			MaxItems: 10000,
			Prefix:   "lattice",
		},
		Scheduler: SchedulerConfig{
			RedisAddr:       "localhost:6379",
			Concurrency:     10,
			Queues:          map[string]int{"critical": 6, "default": 3, "low": 1},
			ShutdownTimeout: 30 * time.Second,
		},
		Transport: TransportConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load builds the configuration. An empty path falls back to
// lattice.yaml in the working directory; a missing default file is not
// an error, a missing explicit file is.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"server.addr":                defaults.Server.Addr,
		"server.read_timeout":        defaults.Server.ReadTimeout,
		"server.write_timeout":       defaults.Server.WriteTimeout,
		"server.request_timeout":     defaults.Server.RequestTimeout,
		"cache.type":                 defaults.Cache.Type,
		"cache.max_items":            defaults.Cache.MaxItems,
		"cache.prefix":               defaults.Cache.Prefix,
		"scheduler.redis_addr":       defaults.Scheduler.RedisAddr,
		"scheduler.concurrency":      defaults.Scheduler.Concurrency,
		"scheduler.queues":           defaults.Scheduler.Queues,
		"scheduler.shutdown_timeout": defaults.Scheduler.ShutdownTimeout,
		"transport.timeout":          defaults.Transport.Timeout,
		"logging.level":              defaults.Logging.Level,
		"logging.format":             defaults.Logging.Format,
		"logging.output":             defaults.Logging.Output,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	// LATTICE_SERVER_ADDR -> server.addr. A single underscore is the
	// section separator, so nested keys with underscores use double
	// underscores: LATTICE_SCHEDULER__REDIS_ADDR.
	if err := k.Load(env.Provider("LATTICE_", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "LATTICE_"))
	if section, rest, ok := strings.Cut(s, "__"); ok {
		return section + "." + rest
	}
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks the struct tags and cross-field constraints.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var invalid []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid fields: %s", strings.Join(invalid, ", "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.URL == "" {
		return fmt.Errorf("config: cache.url is required when cache.type is redis")
	}
	return nil
}
