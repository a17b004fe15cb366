// Package config loads popcorn's configuration from defaults, an optional
// YAML or JSON file, a .env file and the process environment, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	TMDB     TMDBConfig     `yaml:"tmdb" json:"tmdb"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"POPCORN_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" env:"PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"POPCORN_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"POPCORN_WRITE_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	Type string `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Path string `yaml:"path" json:"path" env:"DB_PATH" default:"popcorn.db"`
	DSN  string `yaml:"dsn" json:"-" env:"DATABASE_URL"`
}

type TMDBConfig struct {
	APIKey    string        `yaml:"api_key" json:"-" env:"TMDB_API_KEY"`
	BaseURL   string        `yaml:"base_url" json:"base_url" env:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
	ImageBase string        `yaml:"image_base" json:"image_base" env:"TMDB_IMAGE_BASE" default:"https://image.tmdb.org/t/p/w500"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"TMDB_TIMEOUT" default:"10s"`
}

// StoreConfig controls the list store. LockDir enables the cross-process
// slot lock; leave it empty when a single process owns the database.
type StoreConfig struct {
	LockDir     string        `yaml:"lock_dir" json:"lock_dir" env:"POPCORN_LOCK_DIR"`
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout" env:"POPCORN_LOCK_TIMEOUT" default:"2s"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"POPCORN_LOG_LEVEL" default:"info"`
}

// legacyAPIKeyEnv is the variable name the browser build read from .env.
const legacyAPIKeyEnv = "VITE_TMDB_API_KEY"

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "popcorn.db",
		},
		TMDB: TMDBConfig{
			BaseURL:   "https://api.themoviedb.org/3",
			ImageBase: "https://image.tmdb.org/t/p/w500",
			Timeout:   10 * time.Second,
		},
		Store: StoreConfig{
			LockTimeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config. path may be empty; a missing file is not an error.
// A .env file in the working directory is loaded into the environment
// first without overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", slog.Any("error", err))
	}

	cfg := Default()

	if path != "" && fileExists(path) {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if cfg.TMDB.APIKey == "" {
		cfg.TMDB.APIKey = os.Getenv(legacyAPIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database requires a path")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres database requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.TMDB.BaseURL == "" {
		return fmt.Errorf("tmdb base url is required")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseLevel maps a configured level name onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func loadFromFile(path string, cfg *Config) error {
	// #nosec G304 - path comes from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json":
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
}

// loadStructFromEnv walks nested structs and sets every field carrying an
// env tag from the environment. The default tag only applies when the file
// left the field at its zero value.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		value := os.Getenv(envTag)
		if value == "" && field.IsZero() {
			value = fieldType.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
