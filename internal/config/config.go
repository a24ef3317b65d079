// Package config loads the service configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tradewell/exchange-core/pkg/models"
)

// Config is the full service configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Database DatabaseConfig `mapstructure:"database"`
	Matching MatchingConfig `mapstructure:"matching"`
	Markets  []MarketConfig `mapstructure:"markets"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// DatabaseConfig selects the transactional store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite
	DSN    string `mapstructure:"dsn"`
}

// MatchingConfig controls the periodic matching scheduler.
type MatchingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MarketConfig describes one configured trading pair.
type MarketConfig struct {
	ID         string `mapstructure:"id"`
	BaseAsset  string `mapstructure:"base_asset"`
	QuoteAsset string `mapstructure:"quote_asset"`
}

// KafkaConfig controls the notification publisher.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig controls the optional fee config cache.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
}

// Load reads configuration from the given paths (existing files are
// merged in order, later files overriding earlier ones) plus
// EXCHANGE_-prefixed environment variables.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("EXCHANGE")

	setDefaults(v)

	if len(configPaths) == 0 {
		configPaths = []string{"./config.yaml", "./configs/config.yaml", "/etc/exchange-core/config.yaml"}
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=exchange dbname=exchange sslmode=disable")
	v.SetDefault("matching.interval", time.Second)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "order-fills")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
}

func validate(cfg *Config) error {
	if cfg.Matching.Interval <= 0 {
		return fmt.Errorf("matching.interval must be positive")
	}
	for i, m := range cfg.Markets {
		if m.ID == "" || m.BaseAsset == "" || m.QuoteAsset == "" {
			return fmt.Errorf("market %d is missing id, base_asset or quote_asset", i)
		}
	}
	return nil
}

// MarketList converts the configured markets to model values.
func (c *Config) MarketList() []models.Market {
	markets := make([]models.Market, 0, len(c.Markets))
	for _, m := range c.Markets {
		markets = append(markets, models.Market{
			ID:         m.ID,
			BaseAsset:  m.BaseAsset,
			QuoteAsset: m.QuoteAsset,
		})
	}
	return markets
}
