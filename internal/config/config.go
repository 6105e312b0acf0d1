package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Hub      HubConfig      `yaml:"hub"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Gate     GateConfig     `yaml:"gate"`
	NATS     NATSConfig     `yaml:"nats"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible endpoint, empty for AWS
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// HubConfig holds settings for the Farcaster hub HTTP API
type HubConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RepliesPageSize   int           `yaml:"replies_page_size"`
	AuthorPageSize    int           `yaml:"author_page_size"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// LedgerConfig holds settings for the tip allowance API
type LedgerConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// GateConfig holds reveal gate settings
type GateConfig struct {
	ValidationTimeout time.Duration `yaml:"validation_timeout"`
}

// NATSConfig holds event bus settings. An empty URL disables publishing.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// AppConfig holds settings for links handed back to frames
type AppConfig struct {
	URL string `yaml:"url"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Hub.BaseURL == "" {
		c.Hub.BaseURL = "https://hub.pinata.cloud"
	}
	if c.Hub.RepliesPageSize <= 0 {
		c.Hub.RepliesPageSize = 700
	}
	if c.Hub.AuthorPageSize <= 0 {
		c.Hub.AuthorPageSize = 300
	}
	if c.Hub.Timeout <= 0 {
		c.Hub.Timeout = 10 * time.Second
	}
	if c.Hub.RequestsPerSecond <= 0 {
		c.Hub.RequestsPerSecond = 5
	}
	if c.Hub.Burst <= 0 {
		c.Hub.Burst = 10
	}
	if c.Ledger.BaseURL == "" {
		c.Ledger.BaseURL = "https://api.degen.tips/airdrop2"
	}
	if c.Ledger.Timeout <= 0 {
		c.Ledger.Timeout = 10 * time.Second
	}
	if c.Ledger.RequestsPerSecond <= 0 {
		c.Ledger.RequestsPerSecond = 5
	}
	if c.Ledger.Burst <= 0 {
		c.Ledger.Burst = 10
	}
	if c.Gate.ValidationTimeout <= 0 {
		c.Gate.ValidationTimeout = 2 * time.Second
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
