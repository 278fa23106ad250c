// Package config loads application settings from an optional .env file, an
// optional config.yaml and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Import   ImportConfig
	Logging  LoggingConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port               int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// DatabaseConfig describes the metadata store, never a topic target.
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	AdminUser     string
	AdminPassword string
	MaxConns      int32
	MinConns      int32
}

type AuthConfig struct {
	AccessTokenSecret []byte
	AccessTokenTTL    time.Duration
	// The bootstrap admin is created on startup while the users table is empty.
	AdminEmail        string
	AdminPassword     string
}

type ImportConfig struct {
	UploadDir            string
	MaxUploadBytes       int64
	SchemaStrict         bool
	TargetConnectTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// EventsConfig enables the Kafka ledger publisher when Brokers is non-empty.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", "5s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)

	v.SetDefault("ACCESS_TOKEN_TTL", "15m")

	v.SetDefault("UPLOAD_DIR", os.TempDir())
	v.SetDefault("MAX_UPLOAD_MB", 25)
	v.SetDefault("SCHEMA_VALIDATION_STRICT", false)
	v.SetDefault("TARGET_CONNECT_TIMEOUT", "10s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("KAFKA_TOPIC", "import-ledger")
}

// Load reads configuration. A missing .env or config.yaml is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	adminUser := v.GetString("DB_ADMIN_USER")
	adminPassword := v.GetString("DB_ADMIN_PASSWORD")
	if adminUser == "" {
		adminUser = v.GetString("DB_USERNAME")
		adminPassword = v.GetString("DB_PASSWORD")
	}

	return &Config{
		Server: ServerConfig{
			Port:               v.GetInt("PORT"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			User:          v.GetString("DB_USERNAME"),
			Password:      v.GetString("DB_PASSWORD"),
			Name:          v.GetString("DB_DATABASE"),
			AdminUser:     adminUser,
			AdminPassword: adminPassword,
			MaxConns:      v.GetInt32("DB_MAX_CONNS"),
			MinConns:      v.GetInt32("DB_MIN_CONNS"),
		},
		Auth: AuthConfig{
			AccessTokenSecret: []byte(v.GetString("ACCESS_TOKEN_SECRET")),
			AccessTokenTTL:    v.GetDuration("ACCESS_TOKEN_TTL"),
			AdminEmail:        v.GetString("ADMIN_EMAIL"),
			AdminPassword:     v.GetString("ADMIN_PASSWORD"),
		},
		Import: ImportConfig{
			UploadDir:            v.GetString("UPLOAD_DIR"),
			MaxUploadBytes:       v.GetInt64("MAX_UPLOAD_MB") * 1024 * 1024,
			SchemaStrict:         v.GetBool("SCHEMA_VALIDATION_STRICT"),
			TargetConnectTimeout: v.GetDuration("TARGET_CONNECT_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Events: EventsConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}
}

// Validate reports every problem at once instead of stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST environment variable is required"))
	}
	if c.Database.User == "" {
		errs = append(errs, errors.New("DB_USERNAME environment variable is required"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("DB_DATABASE environment variable is required"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns))
	}
	if len(c.Auth.AccessTokenSecret) == 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET environment variable is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Import.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Import.TargetConnectTimeout <= 0 {
		errs = append(errs, errors.New("TARGET_CONNECT_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
