package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kyleking/askdb/internal/errors"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig
const EnvPrefix = "ASKDB_"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database" envPrefix:"DB_"`
	LLM      LLMConfig      `json:"llm"      yaml:"llm"      envPrefix:"LLM_"`
	Logging  LoggingConfig  `json:"logging"  yaml:"logging"  envPrefix:"LOG_"`
	Server   ServerConfig   `json:"server"   yaml:"server"   envPrefix:"SERVER_"`
	Debug    DebugConfig    `json:"debug"    yaml:"debug"`
}

// DatabaseConfig represents the connection settings of the store being queried
type DatabaseConfig struct {
	Driver          string            `json:"driver"           yaml:"driver"           env:"DRIVER"           envDefault:"postgres"`
	Host            string            `json:"host"             yaml:"host"             env:"HOST"             envDefault:"localhost"`
	Port            int               `json:"port"             yaml:"port"             env:"PORT"`
	User            string            `json:"user"             yaml:"user"             env:"USER"`
	Password        string            `json:"password"         yaml:"password"         env:"PASSWORD"`
	DefaultDatabase string            `json:"default_database" yaml:"default_database" env:"DEFAULT_DB"`
	Path            string            `json:"path"             yaml:"path"             env:"PATH"` // sqlite and duckdb file
	SSLMode         string            `json:"ssl_mode"         yaml:"ssl_mode"         env:"SSLMODE"          envDefault:"disable"`
	Account         string            `json:"account"          yaml:"account"          env:"ACCOUNT"`   // snowflake only
	Warehouse       string            `json:"warehouse"        yaml:"warehouse"        env:"WAREHOUSE"` // snowflake only
	Role            string            `json:"role"             yaml:"role"             env:"ROLE"`      // snowflake only
	Params          map[string]string `json:"params"           yaml:"params"           env:"PARAMS"`    // extra DSN options
	MaxRows         int               `json:"max_rows"         yaml:"max_rows"         env:"MAX_ROWS"         envDefault:"100"`
	SampleSize      int               `json:"sample_size"      yaml:"sample_size"      env:"SAMPLE_SIZE"      envDefault:"3"`
	ConnectTimeout  string            `json:"connect_timeout"  yaml:"connect_timeout"  env:"CONNECT_TIMEOUT"  envDefault:"10s"`
}

// LLMConfig represents the language model provider settings
type LLMConfig struct {
	Provider         string  `json:"provider"          yaml:"provider"          env:"PROVIDER"          envDefault:"gemini"` // gemini, openai, anthropic, ollama
	Model            string  `json:"model"             yaml:"model"             env:"MODEL"`
	APIKey           string  `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"API_KEY"`
	BaseURL          string  `json:"base_url"          yaml:"base_url"          env:"BASE_URL"`
	Temperature      float64 `json:"temperature"       yaml:"temperature"       env:"TEMPERATURE"       envDefault:"0"`
	MaxTokens        int     `json:"max_tokens"        yaml:"max_tokens"        env:"MAX_TOKENS"        envDefault:"1024"`
	Timeout          string  `json:"timeout"           yaml:"timeout"           env:"TIMEOUT"           envDefault:"60s"`
	RetryAttempts    int     `json:"retry_attempts"    yaml:"retry_attempts"    env:"RETRY_ATTEMPTS"    envDefault:"1"`
	RetryDelay       string  `json:"retry_delay"       yaml:"retry_delay"       env:"RETRY_DELAY"       envDefault:"1s"`
	FallbackProvider string  `json:"fallback_provider" yaml:"fallback_provider" env:"FALLBACK_PROVIDER"`
	FallbackModel    string  `json:"fallback_model"    yaml:"fallback_model"    env:"FALLBACK_MODEL"`
	FallbackBaseURL  string  `json:"fallback_base_url" yaml:"fallback_base_url" env:"FALLBACK_BASE_URL"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      yaml:"level"      env:"LEVEL"      envDefault:"info"`                           // debug, info, warn, error
	Format    string `json:"format"     yaml:"format"     env:"FORMAT"     envDefault:"text"`                           // text, json
	Output    string `json:"output"     yaml:"output"     env:"OUTPUT"     envDefault:"stderr"`                         // stdout, stderr, file
	File      string `json:"file"       yaml:"file"       env:"FILE"       envDefault:"~/.config/askdb/logs/askdb.log"` // log file path when output is file
	AddSource bool   `json:"add_source" yaml:"add_source" env:"ADD_SOURCE" envDefault:"false"`
}

// ServerConfig represents the HTTP transport configuration
type ServerConfig struct {
	Addr           string `json:"addr"            yaml:"addr"            env:"ADDR"            envDefault:":8080"`
	RequestTimeout string `json:"request_timeout" yaml:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"120s"`
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"DEBUG"   envDefault:"false"`
	Verbose bool `json:"verbose" yaml:"verbose" env:"VERBOSE" envDefault:"false"`
}

// legacyEnv maps unprefixed variables accepted for compatibility onto the
// prefixed ones. They only apply when the prefixed variable is unset.
var legacyEnv = map[string]string{
	"PG_HOST":       EnvPrefix + "DB_HOST",
	"PG_PORT":       EnvPrefix + "DB_PORT",
	"PG_USER":       EnvPrefix + "DB_USER",
	"PG_PASSWORD":   EnvPrefix + "DB_PASSWORD",
	"PG_DEFAULT_DB": EnvPrefix + "DB_DEFAULT_DB",
	"DEBUG":         EnvPrefix + "DEBUG",
}

// providerKeyEnv lists the conventional API key variable of each provider
var providerKeyEnv = map[string]string{
	"gemini":    "GOOGLE_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// DefaultConfig returns the configuration produced by defaults alone
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	})

	return cfg
}

// LoadConfig loads configuration from .env, environment variables and the config file
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides.
// Precedence is flags, then environment, then config file, then defaults.
func LoadConfigWithOverrides(flagOverrides map[string]any) (*Config, error) {
	// A missing .env file is the common case
	_ = godotenv.Load()

	environment := env.ToMap(os.Environ())
	applyLegacyEnv(environment)

	config := &Config{}
	if err := env.ParseWithOptions(config, env.Options{
		Prefix:      EnvPrefix,
		Environment: environment,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath, environment); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = ProviderAPIKey(config.LLM.Provider)
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if config.Debug.Enabled {
		config.Logging.Level = "debug"
	}

	config.Database.Driver = NormalizeDriver(config.Database.Driver)
	config.ExpandAllPaths()

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyLegacyEnv copies compatibility variables onto their prefixed names
func applyLegacyEnv(environment map[string]string) {
	for legacy, current := range legacyEnv {
		if _, set := environment[current]; set {
			continue
		}

		if value, ok := environment[legacy]; ok {
			environment[current] = value
		}
	}
}

// ProviderAPIKey returns the API key found in the provider's conventional variable
func ProviderAPIKey(provider string) string {
	if name, ok := providerKeyEnv[strings.ToLower(provider)]; ok {
		return os.Getenv(name)
	}

	return ""
}

// loadConfigFromFile loads a YAML (or JSON, by extension) file and merges it
// into config for every field not already set through the environment.
func loadConfigFromFile(config *Config, configPath string, environment map[string]string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if strings.EqualFold(filepath.Ext(configPath), ".json") {
		err = json.Unmarshal(data, &fileConfig)
	} else {
		err = yaml.Unmarshal(data, &fileConfig)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig, func(key string) bool {
		_, set := environment[key]
		return set
	})

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "driver":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Driver = str
			}
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
				if key := ProviderAPIKey(str); key != "" {
					config.LLM.APIKey = key
				}
			}
		case "model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Debug.Verbose = b
			}
		case "debug":
			if b, ok := value.(bool); ok && b {
				config.Debug.Enabled = b
			}
		}
	}
}

// mergeConfigs merges source configuration into target configuration.
// Leaves whose environment variable is reported as set by envSet keep the
// target value.
func mergeConfigs(target, source *Config, envSet func(key string) bool) {
	var mergeValues func(t, s reflect.Value, typ reflect.Type, prefix string)
	mergeValues = func(t, s reflect.Value, typ reflect.Type, prefix string) {
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			tf, sf := t.Field(i), s.Field(i)

			if field.Type.Kind() == reflect.Struct {
				mergeValues(tf, sf, field.Type, prefix+field.Tag.Get("envPrefix"))
				continue
			}

			name, _, _ := strings.Cut(field.Tag.Get("env"), ",")
			if name != "" && envSet(prefix+name) {
				continue
			}

			if !sf.IsZero() {
				tf.Set(sf)
			}
		}
	}

	mergeValues(
		reflect.ValueOf(target).Elem(),
		reflect.ValueOf(source).Elem(),
		reflect.TypeOf(*target),
		EnvPrefix,
	)
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level),
			"logging.level",
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log format: %s (must be text or json)", config.Logging.Format),
			"logging.format",
		)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log output: %s (must be stdout, stderr, or file)", config.Logging.Output),
			"logging.output",
		)
	}

	durations := map[string]string{
		"database.connect_timeout": config.Database.ConnectTimeout,
		"llm.timeout":              config.LLM.Timeout,
		"llm.retry_delay":          config.LLM.RetryDelay,
		"server.request_timeout":   config.Server.RequestTimeout,
	}
	for field, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid duration: %q", value), field)
		}
	}

	if config.Database.MaxRows <= 0 {
		return errors.NewConfigError(
			fmt.Sprintf("max rows must be positive: %d", config.Database.MaxRows),
			"database.max_rows",
		)
	}

	return validateCredentials(config.Database)
}

// validateCredentials reports missing connection settings as a fatal configuration error
func validateCredentials(db DatabaseConfig) error {
	switch db.Driver {
	case "postgres", "mysql":
		if db.User == "" {
			return errors.NewConfigError("database user is required", "database.user").
				WithSuggestion(fmt.Sprintf("Set %sDB_USER (or PG_USER) and %sDB_PASSWORD", EnvPrefix, EnvPrefix))
		}
	case "snowflake":
		if db.Account == "" || db.User == "" {
			return errors.NewConfigError("snowflake account and user are required", "database.account").
				WithSuggestion(fmt.Sprintf("Set %sDB_ACCOUNT and %sDB_USER", EnvPrefix, EnvPrefix))
		}
	case "sqlite", "duckdb":
		if db.Path == "" {
			return errors.NewConfigError("database file path is required", "database.path").
				WithSuggestion(fmt.Sprintf("Set %sDB_PATH to the database file", EnvPrefix))
		}
	default:
		return errors.NewConfigError(fmt.Sprintf("unsupported database driver: %s", db.Driver), "database.driver")
	}

	return nil
}

// NormalizeDriver maps common aliases to canonical driver keys
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "duckdb", "duck":
		return "duckdb"
	case "snowflake", "sf":
		return "snowflake"
	default:
		return strings.ToLower(d)
	}
}

// HasModel reports whether a language model can be used with this configuration.
// Ollama runs locally and needs no key.
func (c *LLMConfig) HasModel() bool {
	return c.APIKey != "" || strings.EqualFold(c.Provider, "ollama")
}

// Duration parses a duration field that validateConfig has already checked
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}

// SaveConfig saves configuration to the YAML config file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the path of the configuration file in use
func ConfigPath() string {
	return getConfigPath()
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv(EnvPrefix + "CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.yaml")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/askdb"
	}

	return filepath.Join(homeDir, ".config", "askdb")
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}

	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}

	return &out
}
