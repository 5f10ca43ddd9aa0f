package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTitle          = "FuelTrackr API"
	defaultPort           = "8000"
	defaultLogLevel       = "info"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultMongoURI       = "mongodb://localhost:27017"
	defaultMongoDatabase  = "fueltrackr"
	defaultEnvFile        = ".env"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables (.env included) > YAML config > Defaults
type Config struct {
	Title                string
	Port                 string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	MetricsEnabled       bool
	RateLimitRPS         float64
	RateLimitBurst       int
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP set the client
	// address. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders    bool
	Database             Database
	CORS                 CORS
}

// Database holds the MongoDB connection settings.
type Database struct {
	URI                    string
	Name                   string
	StartupPingTimeout     time.Duration
	ServerSelectionTimeout time.Duration
}

// CORS describes which browser origins may read API responses.
type CORS struct {
	AllowedOrigins       []string
	AllowedOriginPattern string
	AllowCredentials     bool
	AllowedMethods       []string
	AllowedHeaders       []string
	MaxAge               time.Duration
	Debug                bool
}

// OriginPattern compiles AllowedOriginPattern anchored at both ends, so the
// whole origin has to match. It returns nil when no pattern is configured.
func (c CORS) OriginPattern() (*regexp.Regexp, error) {
	if strings.TrimSpace(c.AllowedOriginPattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + c.AllowedOriginPattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile origin pattern %q: %w", c.AllowedOriginPattern, err)
	}
	return re, nil
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Title                string        `yaml:"title"`
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	MetricsEnabled       *bool         `yaml:"metrics_enabled"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	TrustProxyHeaders    *bool         `yaml:"trust_proxy_headers"`
	Database             yamlDatabase  `yaml:"database"`
	CORS                 yamlCORS      `yaml:"cors"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlDatabase struct {
	URI                    string `yaml:"uri"`
	Name                   string `yaml:"name"`
	StartupPingTimeout     string `yaml:"startup_ping_timeout"`
	ServerSelectionTimeout string `yaml:"server_selection_timeout"`
}

type yamlCORS struct {
	AllowedOrigins       []string `yaml:"allowed_origins"`
	AllowedOriginPattern *string  `yaml:"allowed_origin_pattern"`
	AllowCredentials     *bool    `yaml:"allow_credentials"`
	AllowedMethods       []string `yaml:"allowed_methods"`
	AllowedHeaders       []string `yaml:"allowed_headers"`
	MaxAge               string   `yaml:"max_age"`
	Debug                bool     `yaml:"debug"`
}

// envConfig mirrors the environment variables understood by the service.
// Nil pointers mean the variable was not set.
type envConfig struct {
	Title                    *string        `env:"APP_TITLE"`
	Port                     *string        `env:"PORT"`
	LogLevel                 *string        `env:"LOG_LEVEL"`
	EnableRequestLogging     *bool          `env:"ENABLE_REQUEST_LOGGING"`
	MetricsEnabled           *bool          `env:"METRICS_ENABLED"`
	RateLimitRPS             *float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst           *int           `env:"RATE_LIMIT_BURST"`
	TrustProxyHeaders        *bool          `env:"TRUST_PROXY_HEADERS"`
	MongoURI                 *string        `env:"MONGO_URI"`
	MongoDatabase            *string        `env:"MONGO_DB_NAME"`
	StartupPingTimeout       *time.Duration `env:"STARTUP_PING_TIMEOUT"`
	CORSAllowedOrigins       []string       `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowedOriginPattern *string        `env:"CORS_ALLOWED_ORIGIN_PATTERN"`
	CORSAllowCredentials     *bool          `env:"CORS_ALLOW_CREDENTIALS"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	EnvFile        string
	Port           *string
	MongoURI       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	envFile := ""
	if overrides != nil {
		envFile = overrides.EnvFile
	}
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Title:                defaultTitle,
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		MetricsEnabled:       true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Database: Database{
			URI:                    defaultMongoURI,
			Name:                   defaultMongoDatabase,
			StartupPingTimeout:     10 * time.Second,
			ServerSelectionTimeout: 5 * time.Second,
		},
		CORS: DefaultCORS(),
	}
}

// DefaultCORS returns the browser origin policy used by the deployed frontend:
// the local Vite dev server, the company domain, and every vercel.app preview.
func DefaultCORS() CORS {
	return CORS{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"https://www.yourcompanydomain.com",
		},
		AllowedOriginPattern: `https://.*\.vercel\.app`,
		AllowCredentials:     true,
		AllowedMethods:       []string{"*"},
		AllowedHeaders:       []string{"*"},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Title != "" {
		cfg.Title = yamlCfg.Title
	}
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
		{yamlCfg.Database.StartupPingTimeout, &cfg.Database.StartupPingTimeout, "database.startup_ping_timeout"},
		{yamlCfg.Database.ServerSelectionTimeout, &cfg.Database.ServerSelectionTimeout, "database.server_selection_timeout"},
		{yamlCfg.CORS.MaxAge, &cfg.CORS.MaxAge, "cors.max_age"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.MetricsEnabled != nil {
		cfg.MetricsEnabled = *yamlCfg.MetricsEnabled
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if yamlCfg.TrustProxyHeaders != nil {
		cfg.TrustProxyHeaders = *yamlCfg.TrustProxyHeaders
	}

	if yamlCfg.Database.URI != "" {
		cfg.Database.URI = yamlCfg.Database.URI
	}
	if yamlCfg.Database.Name != "" {
		cfg.Database.Name = yamlCfg.Database.Name
	}

	if len(yamlCfg.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = yamlCfg.CORS.AllowedOrigins
	}
	if yamlCfg.CORS.AllowedOriginPattern != nil {
		cfg.CORS.AllowedOriginPattern = *yamlCfg.CORS.AllowedOriginPattern
	}
	if yamlCfg.CORS.AllowCredentials != nil {
		cfg.CORS.AllowCredentials = *yamlCfg.CORS.AllowCredentials
	}
	if len(yamlCfg.CORS.AllowedMethods) > 0 {
		cfg.CORS.AllowedMethods = yamlCfg.CORS.AllowedMethods
	}
	if len(yamlCfg.CORS.AllowedHeaders) > 0 {
		cfg.CORS.AllowedHeaders = yamlCfg.CORS.AllowedHeaders
	}
	cfg.CORS.Debug = yamlCfg.CORS.Debug

	return nil
}

// loadDotEnv populates the process environment from a dotenv file without
// overriding variables that are already set. A missing default file is fine,
// a missing explicitly requested one is not.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setString(&cfg.Title, e.Title)
	setString(&cfg.Port, e.Port)
	setString(&cfg.LogLevel, e.LogLevel)
	setString(&cfg.Database.URI, e.MongoURI)
	setString(&cfg.Database.Name, e.MongoDatabase)

	if e.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *e.EnableRequestLogging
	}
	if e.MetricsEnabled != nil {
		cfg.MetricsEnabled = *e.MetricsEnabled
	}
	if e.RateLimitRPS != nil {
		cfg.RateLimitRPS = *e.RateLimitRPS
	}
	if e.RateLimitBurst != nil {
		cfg.RateLimitBurst = *e.RateLimitBurst
	}
	if e.TrustProxyHeaders != nil {
		cfg.TrustProxyHeaders = *e.TrustProxyHeaders
	}
	if e.StartupPingTimeout != nil {
		cfg.Database.StartupPingTimeout = *e.StartupPingTimeout
	}

	if origins := splitList(e.CORSAllowedOrigins); len(origins) > 0 {
		cfg.CORS.AllowedOrigins = origins
	}
	if e.CORSAllowedOriginPattern != nil {
		cfg.CORS.AllowedOriginPattern = strings.TrimSpace(*e.CORSAllowedOriginPattern)
	}
	if e.CORSAllowCredentials != nil {
		cfg.CORS.AllowCredentials = *e.CORSAllowCredentials
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	setString(&cfg.Port, overrides.Port)
	setString(&cfg.Database.URI, overrides.MongoURI)

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if strings.TrimSpace(cfg.Database.URI) == "" {
		return fmt.Errorf("MONGO_URI cannot be empty")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("MONGO_DB_NAME cannot be empty")
	}
	if cfg.Database.StartupPingTimeout < 0 {
		return fmt.Errorf("STARTUP_PING_TIMEOUT must be >= 0")
	}
	if _, err := cfg.CORS.OriginPattern(); err != nil {
		return err
	}
	return nil
}

func setString(target *string, value *string) {
	if value == nil {
		return
	}
	if v := strings.TrimSpace(*value); v != "" {
		*target = v
	}
}

// splitList trims entries and drops empty ones.
func splitList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
