package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides, e.g. PLATOON_STORAGE_TYPE.
const EnvPrefix = "PLATOON"

// Config is the full runtime configuration of the CLI.
type Config struct {
	LogLevel  string        `json:"logLevel" mapstructure:"logLevel"`
	LogFormat string        `json:"logFormat" mapstructure:"logFormat"`
	Storage   StorageConfig `json:"storage" mapstructure:"storage"`
}

// StorageConfig selects and configures the trajectory storage backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"` // memory, sqlite, postgres, influx, websocket, none
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	Influx    InfluxConfig    `json:"influx" mapstructure:"influx"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// SQLiteConfig holds SQLite backend settings. An empty path uses an in-memory database.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds Postgres backend settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the connection string for the Postgres driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds InfluxDB backend settings.
type InfluxConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Token  string `json:"token" mapstructure:"token"`
	Org    string `json:"org" mapstructure:"org"`
	Bucket string `json:"bucket" mapstructure:"bucket"`
}

// WebSocketConfig holds streaming backend settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "console")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "platoon.db")

	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "platoon")

	viper.SetDefault("storage.influx.url", "http://localhost:8086")
	viper.SetDefault("storage.influx.token", "")
	viper.SetDefault("storage.influx.org", "platoon")
	viper.SetDefault("storage.influx.bucket", "trajectories")

	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("storage.websocket.secret", "")
}

// Load sets default values, binds PLATOON_* environment overrides and, when path
// is not empty, reads the config file at path. The file type is taken from its
// extension (json, yaml, toml...).
func Load(path string) error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		viper.SetConfigType(ext)
	}
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Get returns the loaded configuration.
func Get() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
