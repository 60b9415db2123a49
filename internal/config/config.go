// Package config loads riskguard process configuration from YAML files and
// RISKGUARD_-prefixed environment variables. Subsystem packages consume plain
// structs; only this package and cmd/ touch viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full process configuration tree.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Broker BrokerConfig `mapstructure:"broker"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Risk   RiskConfig   `mapstructure:"risk"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BrokerConfig selects and configures the shared pub/sub transport.
type BrokerConfig struct {
	Kind    string      `mapstructure:"kind"` // redis or kafka
	Channel string      `mapstructure:"channel"`
	Redis   RedisConfig `mapstructure:"redis"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

// AuditConfig configures the append-only audit store.
type AuditConfig struct {
	Driver string `mapstructure:"driver"` // postgres or sqlite
	DSN    string `mapstructure:"dsn"`
}

// RiskConfig carries the externally supplied risk thresholds and instrument
// limits. Percentages are whole percent values (10 means 10%).
type RiskConfig struct {
	MaxDrawdownPct    float64 `mapstructure:"max_drawdown_pct"`
	DailyLossLimitPct float64 `mapstructure:"daily_loss_limit_pct"`
	PerTradeRiskPct   float64 `mapstructure:"per_trade_risk_pct"`
	MinLots           float64 `mapstructure:"min_lots"`
	MaxLots           float64 `mapstructure:"max_lots"`
	LotStep           float64 `mapstructure:"lot_step"`
}

// Load reads configuration from the given YAML paths, merging later files over
// earlier ones, then applies environment overrides and validates.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RISKGUARD")

	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{"./config.yaml", "./configs/config.yaml", "/etc/riskguard/config.yaml"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("broker.kind", "redis")
	v.SetDefault("broker.channel", "riskguard:events")
	v.SetDefault("broker.redis.addr", "localhost:6379")
	v.SetDefault("broker.redis.db", 0)
	v.SetDefault("broker.kafka.group_id", "riskguard")

	v.SetDefault("audit.driver", "postgres")

	v.SetDefault("risk.max_drawdown_pct", 10.0)
	v.SetDefault("risk.daily_loss_limit_pct", 5.0)
	v.SetDefault("risk.per_trade_risk_pct", 2.0)
	v.SetDefault("risk.min_lots", 0.01)
	v.SetDefault("risk.max_lots", 100.0)
	v.SetDefault("risk.lot_step", 0.01)
}

// Validate rejects configurations that would disable the safety checks.
func (c *Config) Validate() error {
	switch c.Broker.Kind {
	case "redis", "kafka":
	default:
		return fmt.Errorf("config: broker.kind must be redis or kafka, got %q", c.Broker.Kind)
	}
	if c.Broker.Kind == "kafka" && len(c.Broker.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: broker.kafka.brokers must not be empty")
	}

	for name, pct := range map[string]float64{
		"risk.max_drawdown_pct":     c.Risk.MaxDrawdownPct,
		"risk.daily_loss_limit_pct": c.Risk.DailyLossLimitPct,
		"risk.per_trade_risk_pct":   c.Risk.PerTradeRiskPct,
	} {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("config: %s must be in (0, 100], got %v", name, pct)
		}
	}

	if c.Risk.MinLots <= 0 || c.Risk.MaxLots <= 0 || c.Risk.LotStep <= 0 {
		return fmt.Errorf("config: lot limits must be positive")
	}
	if c.Risk.MinLots > c.Risk.MaxLots {
		return fmt.Errorf("config: risk.min_lots must not exceed risk.max_lots")
	}
	return nil
}
