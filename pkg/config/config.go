package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// Collect aggregates error logs and ships them to Kafka.
		Collect struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"stockdash.logs"`
			TimeInterval   time.Duration `yaml:"time_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	AlphaVantage struct {
		APIKey     string        `yaml:"api_key"`
		Host       string        `yaml:"host" default:"alpha-vantage.p.rapidapi.com"`
		BaseURL    string        `yaml:"base_url" default:"https://alpha-vantage.p.rapidapi.com/query" validate:"required,url"`
		OutputSize string        `yaml:"output_size" default:"compact" validate:"oneof=compact full"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		Retry      struct {
			MaxAttempts int           `yaml:"max_attempts" default:"1" validate:"gte=1,lte=10"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		} `yaml:"retry"`
		// RateLimit guards the provider quota (free tier: 5 calls per minute).
		RateLimit struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.0833"`
		} `yaml:"rate_limit"`
	} `yaml:"alphavantage"`
	Cache struct {
		Backend   string        `yaml:"backend" default:"memory" validate:"oneof=none memory redis layered"`
		SearchTTL time.Duration `yaml:"search_ttl" default:"1h"`
		SeriesTTL time.Duration `yaml:"series_ttl" default:"15m"`
		MaxSize   int           `yaml:"max_size" default:"1000"`
		// L1TTL caps how long the layered backend keeps a local copy.
		L1TTL     time.Duration `yaml:"l1_ttl" default:"1m"`
		Redis     struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"stockdash"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Dashboard struct {
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"1m"`
	} `yaml:"dashboard"`
	Archive struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"stockdash"`
		Table       string        `yaml:"table" default:"daily_bars"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		AsyncInsert bool          `yaml:"async_insert"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"archive"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"stockdash.series"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. A missing file yields a
// config made of defaults only, so the service can run from env alone.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(b) > 0 {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v, ok := os.LookupEnv("ALPHAVANTAGE_HOST"); ok {
		c.AlphaVantage.Host = v
	}
	if v := os.Getenv("ALPHAVANTAGE_URL"); v != "" {
		c.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			var p int
			if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
				c.Cache.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Archive.Host = v
		c.Archive.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.AlphaVantage.APIKey == "" {
		return fmt.Errorf("alphavantage.api_key is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collect.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collect requires kafka to be enabled")
	}
	if c.AlphaVantage.Retry.BackoffMin > c.AlphaVantage.Retry.BackoffMax {
		return fmt.Errorf("alphavantage.retry.backoff_min must be <= backoff_max")
	}
	return nil
}
