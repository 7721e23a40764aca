package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection, intake queue, and publisher configuration
type RabbitMQConfig struct {
	Host              string           `yaml:"host"`
	Port              int              `yaml:"port"`
	User              string           `yaml:"user"`
	Password          string           `yaml:"password"`
	VHost             string           `yaml:"vhost"`
	Exchange          ExchangeConfig   `yaml:"exchange"`
	Queue             QueueConfig      `yaml:"queue"`
	QueueRoutingKey   string           `yaml:"queue_routing_key"`
	PublishRoutingKey string           `yaml:"publish_routing_key"`
	Connection        ConnectionConfig `yaml:"connection"`
	Publish           PublishConfig    `yaml:"publish"`
	Consumer          ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds the extraction-request intake queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ExtractionConfig holds job worker behavior settings
type ExtractionConfig struct {
	ItemRetries     int           `yaml:"item_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	ErrorThreshold  int           `yaml:"error_threshold"`
	StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Source          SourceConfig  `yaml:"source"`
}

// SourceConfig selects and tunes the pluggable crawl source
type SourceConfig struct {
	Mode         string        `yaml:"mode"`
	Items        int           `yaml:"items"`
	ItemDelay    time.Duration `yaml:"item_delay"`
	FailureEvery int           `yaml:"failure_every"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.RabbitMQ.PublishRoutingKey == "" {
		return fmt.Errorf("rabbitmq publish routing key is required")
	}

	if c.Extraction.ItemRetries < 0 {
		return fmt.Errorf("extraction item_retries must not be negative")
	}

	if c.Extraction.RetryBackoff <= 0 {
		return fmt.Errorf("extraction retry_backoff must be greater than 0")
	}

	if c.Extraction.ErrorThreshold < 0 {
		return fmt.Errorf("extraction error_threshold must not be negative")
	}

	if c.Extraction.StopGracePeriod <= 0 {
		return fmt.Errorf("extraction stop_grace_period must be greater than 0")
	}

	if c.Extraction.ShutdownTimeout <= 0 {
		return fmt.Errorf("extraction shutdown_timeout must be greater than 0")
	}

	if c.Extraction.Source.Mode != "simulated" {
		return fmt.Errorf("unknown extraction source mode: %q", c.Extraction.Source.Mode)
	}

	if c.Extraction.Source.Items <= 0 {
		return fmt.Errorf("extraction source items must be greater than 0")
	}

	return nil
}
