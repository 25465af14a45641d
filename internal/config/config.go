package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/mapping"
)

// EnvPrefix prefixes every environment variable the config reads
const EnvPrefix = "CHATDB_"

// Config represents the application configuration
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Generator GeneratorConfig `yaml:"generator"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EngineConfig selects the translation target
type EngineConfig struct {
	Target      string `yaml:"target"       env:"TARGET"       envDefault:"MySQL"` // MySQL, MongoDB
	MaxAttempts int    `yaml:"max_attempts" env:"MAX_ATTEMPTS" envDefault:"3"`     // generator attempts per phrase
	Schema      string `yaml:"schema"       env:"SCHEMA"`                          // schema file or CSV directory
}

// GeneratorConfig configures the model fallback
type GeneratorConfig struct {
	Provider string        `yaml:"provider" env:"GENERATOR_PROVIDER" envDefault:"none"` // none, openai, gemini
	Model    string        `yaml:"model"    env:"GENERATOR_MODEL"`
	APIKey   string        `yaml:"api_key"  env:"GENERATOR_API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"GENERATOR_BASE_URL"`
	Timeout  time.Duration `yaml:"timeout"  env:"GENERATOR_TIMEOUT"  envDefault:"60s"`
}

// CacheConfig configures translation caching
type CacheConfig struct {
	Backend   string        `yaml:"backend"    env:"CACHE_BACKEND"    envDefault:"memory"` // none, memory, redis
	RedisAddr string        `yaml:"redis_addr" env:"CACHE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int           `yaml:"redis_db"   env:"CACHE_REDIS_DB"`
	TTL       time.Duration `yaml:"ttl"        env:"CACHE_TTL"        envDefault:"1h"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"        env:"LOG_LEVEL"        envDefault:"info"`      // debug, info, warn, error
	Format     string `yaml:"format"       env:"LOG_FORMAT"       envDefault:"text"`      // text, json
	Output     string `yaml:"output"       env:"LOG_OUTPUT"       envDefault:"stderr"`    // stdout, stderr, file
	File       string `yaml:"file"         env:"LOG_FILE"         envDefault:"chatdb.log"` // log file path when output is file
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  envDefault:"10"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"  envDefault:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// Options controls where Load looks
type Options struct {
	// ConfigPath is a YAML or JSON file; empty falls back to $CHATDB_CONFIG
	ConfigPath string
	// DotEnvPath is loaded into the environment when it exists; empty means ".env"
	DotEnvPath string
	// Flags override everything else, keyed by flag name
	Flags map[string]interface{}
}

// Default returns the configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	// an empty environment leaves only envDefault values
	_ = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}})
	return cfg
}

// Load reads file, .env, environment and flags, later sources winning
func Load(opts Options) (*Config, error) {
	cfg := Default()

	dotEnv := opts.DotEnvPath
	if dotEnv == "" {
		dotEnv = ".env"
	}
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return nil, errors.Wrapf(err, errors.KindConfig, "failed to load %s", dotEnv)
		}
	}

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadConfigFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// defaults are already in cfg; an unused tag name keeps envDefault from
	// overwriting file values while set variables still win
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:              EnvPrefix,
		DefaultValueTagName: "noEnvDefault",
	}); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to parse environment variables")
	}

	applyFlagOverrides(cfg, opts.Flags)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFromFile merges a YAML (or JSON) file into config
func loadConfigFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfig, "failed to read config file %s", path)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return errors.Wrapf(err, errors.KindConfig, "failed to parse config file %s", path)
	}

	mergeConfigs(config, &fileConfig)
	return nil
}

// applyFlagOverrides applies command-line flag overrides; empty values are ignored
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		str, isString := value.(string)
		if isString && str == "" {
			continue
		}

		switch key {
		case "target":
			config.Engine.Target = str
		case "schema":
			config.Engine.Schema = str
		case "max-attempts":
			if n, ok := value.(int); ok && n > 0 {
				config.Engine.MaxAttempts = n
			}
		case "provider":
			config.Generator.Provider = str
		case "model":
			config.Generator.Model = str
		case "api-key":
			config.Generator.APIKey = str
		case "cache":
			config.Cache.Backend = str
		case "redis-addr":
			config.Cache.RedisAddr = str
		case "log-level":
			config.Logging.Level = str
		case "log-format":
			config.Logging.Format = str
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Logging.Level = "debug"
			}
		}
	}
}

// mergeConfigs copies every non-zero field of source into target
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration and canonicalizes enum fields
func validateConfig(config *Config) error {
	target, ok := mapping.NormalizeDatabase(config.Engine.Target)
	if !ok {
		return errors.Newf(errors.KindConfig, "invalid target: %s (must be %s)",
			config.Engine.Target, strings.Join(mapping.SupportedDatabases, " or "))
	}
	config.Engine.Target = target

	if config.Engine.MaxAttempts <= 0 {
		return errors.Newf(errors.KindConfig, "max attempts must be positive: %d", config.Engine.MaxAttempts)
	}

	config.Generator.Provider = strings.ToLower(config.Generator.Provider)
	switch config.Generator.Provider {
	case "none":
	case "openai", "gemini":
		if config.Generator.APIKey == "" {
			return errors.Newf(errors.KindConfig, "generator provider %s requires an API key", config.Generator.Provider).
				WithSuggestion("set " + EnvPrefix + "GENERATOR_API_KEY")
		}
	default:
		return errors.Newf(errors.KindConfig, "invalid generator provider: %s (must be none, openai, or gemini)", config.Generator.Provider)
	}

	if err := oneOf("cache backend", &config.Cache.Backend, "none", "memory", "redis"); err != nil {
		return err
	}
	if config.Cache.Backend == "redis" && config.Cache.RedisAddr == "" {
		return errors.New(errors.KindConfig, "redis cache requires an address")
	}
	if config.Cache.TTL < 0 {
		return errors.Newf(errors.KindConfig, "cache ttl must not be negative: %s", config.Cache.TTL)
	}

	if err := oneOf("log level", &config.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("log format", &config.Logging.Format, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("log output", &config.Logging.Output, "stdout", "stderr", "file"); err != nil {
		return err
	}
	if config.Logging.Output == "file" && config.Logging.File == "" {
		return errors.New(errors.KindConfig, "log output file requires a path")
	}
	return nil
}

// oneOf lower-cases *value and checks it against allowed
func oneOf(name string, value *string, allowed ...string) error {
	*value = strings.ToLower(*value)
	for _, a := range allowed {
		if *value == a {
			return nil
		}
	}
	return errors.Newf(errors.KindConfig, "invalid %s: %s (must be one of %s)", name, *value, strings.Join(allowed, ", "))
}
