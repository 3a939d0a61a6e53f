// Package config provides configuration structures for the clickstream
// data generator. The main Config struct ties together the server, the
// generator engine and the optional broker sink.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/clickstream/datagen/internal/session"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Config is the root configuration structure for the data generator.
type Config struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name" json:"name"`

	// Description provides additional context about the configuration.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Generator configures the probabilistic generator and its caches.
	Generator GeneratorConfig `yaml:"generator,omitempty" json:"generator,omitempty"`

	// Session holds session lifecycle bounds.
	Session session.Config `yaml:"session,omitempty" json:"session,omitempty"`

	// Stream configures per-stream defaults.
	Stream StreamConfig `yaml:"stream,omitempty" json:"stream,omitempty"`

	// Kafka configures the optional broker sink. Disabled when no brokers
	// are listed.
	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	// Default: ":8000"
	ListenAddr string `yaml:"listenAddr,omitempty" json:"listenAddr,omitempty"`

	// ReadTimeout bounds request header reads. Default: 10s.
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// ShutdownGrace bounds graceful shutdown. Default: 10s.
	ShutdownGrace time.Duration `yaml:"shutdownGrace,omitempty" json:"shutdownGrace,omitempty"`
}

// GeneratorConfig holds generator and reference-cache configuration.
type GeneratorConfig struct {
	// Seed seeds the random source. Zero means a time-derived seed; set a
	// fixed value for reproducible output.
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// UserCacheSize bounds the user reference cache. Default: 1000.
	UserCacheSize int `yaml:"userCacheSize,omitempty" json:"userCacheSize,omitempty"`

	// ProductCacheSize bounds the product reference cache. Default: 2000.
	ProductCacheSize int `yaml:"productCacheSize,omitempty" json:"productCacheSize,omitempty"`

	// WarmUsers is how many users to pre-populate at startup. Default: 100.
	WarmUsers int `yaml:"warmUsers,omitempty" json:"warmUsers,omitempty"`

	// WarmProducts is how many products to pre-populate at startup.
	// Default: 200.
	WarmProducts int `yaml:"warmProducts,omitempty" json:"warmProducts,omitempty"`
}

// StreamConfig holds per-stream request defaults.
type StreamConfig struct {
	// DefaultRate is the rate used when a request omits one. Default: 10.
	DefaultRate float64 `yaml:"defaultRate,omitempty" json:"defaultRate,omitempty"`

	// DefaultDuration is the duration used when a request omits one.
	// Default: 60s.
	DefaultDuration time.Duration `yaml:"defaultDuration,omitempty" json:"defaultDuration,omitempty"`
}

// KafkaConfig holds broker sink configuration.
type KafkaConfig struct {
	// Brokers lists bootstrap broker addresses. Empty disables the sink.
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`

	// TopicPrefix is prepended to the per-entity topic names.
	TopicPrefix string `yaml:"topicPrefix,omitempty" json:"topicPrefix,omitempty"`

	// BatchTimeout bounds how long writes are batched. Default: 1s.
	BatchTimeout time.Duration `yaml:"batchTimeout,omitempty" json:"batchTimeout,omitempty"`
}

// Enabled reports whether a broker sink is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{Name: "clickstream-datagen"}
	cfg.ApplyDefaults()
	return cfg
}

// LoadFromFile loads configuration from a YAML file, then applies
// environment overrides and defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// applyEnv overlays CLICKSTREAM_-prefixed environment variables onto the
// parsed configuration. Environment wins over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CLICKSTREAM_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CLICKSTREAM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Generator.Seed = seed
		}
	}
	if v := os.Getenv("CLICKSTREAM_DEFAULT_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			c.Stream.DefaultRate = r
		}
	}
	if v := os.Getenv("CLICKSTREAM_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}

	if c.Generator.UserCacheSize < 0 {
		return fmt.Errorf("%w: generator.userCacheSize must be non-negative", ErrInvalidConfig)
	}
	if c.Generator.ProductCacheSize < 0 {
		return fmt.Errorf("%w: generator.productCacheSize must be non-negative", ErrInvalidConfig)
	}
	if c.Generator.WarmUsers < 0 || c.Generator.WarmProducts < 0 {
		return fmt.Errorf("%w: generator warm sizes must be non-negative", ErrInvalidConfig)
	}

	if c.Stream.DefaultRate < 0 {
		return fmt.Errorf("%w: stream.defaultRate must be non-negative", ErrInvalidConfig)
	}
	if c.Stream.DefaultDuration < 0 {
		return fmt.Errorf("%w: stream.defaultDuration must be non-negative", ErrInvalidConfig)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	for i, b := range c.Kafka.Brokers {
		if b == "" {
			return fmt.Errorf("%w: kafka.brokers[%d] is empty", ErrInvalidConfig, i)
		}
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = 10 * time.Second
	}

	if c.Generator.UserCacheSize == 0 {
		c.Generator.UserCacheSize = 1000
	}
	if c.Generator.ProductCacheSize == 0 {
		c.Generator.ProductCacheSize = 2000
	}
	if c.Generator.WarmUsers == 0 {
		c.Generator.WarmUsers = 100
	}
	if c.Generator.WarmProducts == 0 {
		c.Generator.WarmProducts = 200
	}

	if c.Stream.DefaultRate == 0 {
		c.Stream.DefaultRate = 10
	}
	if c.Stream.DefaultDuration == 0 {
		c.Stream.DefaultDuration = 60 * time.Second
	}

	if c.Kafka.TopicPrefix == "" {
		c.Kafka.TopicPrefix = "ecommerce"
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = time.Second
	}

	c.Session.ApplyDefaults()
}
