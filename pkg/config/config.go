// Package config loads application configuration from a YAML file and
// environment variables prefixed with PRESSFLOW_.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig defines the HTTP server configuration
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EnableCORS    bool          `mapstructure:"enable_cors"`
}

// DatabaseConfig contains storage settings. Driver "memory" runs the
// engine without a database; "postgres" uses the DSN fields.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	// DSN, when set, overrides the individual connection fields
	DSN string `mapstructure:"dsn"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ConnectionString builds the lib/pq DSN from the configured fields
func (c DatabaseConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode)
}

// OpenAIConfig contains completion provider settings
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EngineConfig tunes the workflow engine
type EngineConfig struct {
	ContextWindow int `mapstructure:"context_window"`
	DedupWindow   int `mapstructure:"dedup_window"`
}

// QueueConfig tunes the background job queue
type QueueConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
}

// Config holds the complete application configuration
type Config struct {
	API         APIConfig      `mapstructure:"api"`
	Database    DatabaseConfig `mapstructure:"database"`
	OpenAI      OpenAIConfig   `mapstructure:"openai"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Queue       QueueConfig    `mapstructure:"queue"`
	Environment string         `mapstructure:"environment"`
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set PRESSFLOW_OPENAI_API_KEY or OPENAI_API_KEY)")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("PRESSFLOW_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("PRESSFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common unprefixed variables used in container environments
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	v.AllowEmptyEnv(true)

	if err := v.ReadInConfig(); err != nil {
		// A config file is optional when environment variables carry
		// everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)
	v.SetDefault("api.enable_cors", false)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "pressflow")
	v.SetDefault("database.username", "pressflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.request_timeout", 30*time.Second)

	v.SetDefault("engine.context_window", 10)
	v.SetDefault("engine.dedup_window", 5)

	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.buffer_size", 64)
}
