package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Broker.Kind)
	assert.Equal(t, "riskguard:events", cfg.Broker.Channel)
	assert.Equal(t, "localhost:6379", cfg.Broker.Redis.Addr)
	assert.Equal(t, 10.0, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 5.0, cfg.Risk.DailyLossLimitPct)
	assert.Equal(t, 0.01, cfg.Risk.MinLots)
	assert.Equal(t, 0.01, cfg.Risk.LotStep)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
broker:
  kind: redis
  channel: "trading:events"
  redis:
    addr: "redis.internal:6379"
    db: 2
risk:
  max_drawdown_pct: 15
  daily_loss_limit_pct: 3
  per_trade_risk_pct: 1
  max_lots: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "trading:events", cfg.Broker.Channel)
	assert.Equal(t, "redis.internal:6379", cfg.Broker.Redis.Addr)
	assert.Equal(t, 2, cfg.Broker.Redis.DB)
	assert.Equal(t, 15.0, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 3.0, cfg.Risk.DailyLossLimitPct)
	assert.Equal(t, 50.0, cfg.Risk.MaxLots)
	// Unset keys keep their defaults.
	assert.Equal(t, 0.01, cfg.Risk.MinLots)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RISKGUARD_RISK_MAX_DRAWDOWN_PCT", "20")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.Risk.MaxDrawdownPct)
}

func TestValidateRejectsDisabledSafety(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero drawdown limit", "risk:\n  max_drawdown_pct: 0\n"},
		{"drawdown limit above 100", "risk:\n  max_drawdown_pct: 150\n"},
		{"negative daily loss limit", "risk:\n  daily_loss_limit_pct: -5\n"},
		{"zero lot step", "risk:\n  lot_step: 0\n"},
		{"min above max lots", "risk:\n  min_lots: 2\n  max_lots: 1\n"},
		{"unknown broker kind", "broker:\n  kind: rabbitmq\n"},
		{"kafka without brokers", "broker:\n  kind: kafka\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadKafkaBroker(t *testing.T) {
	path := writeConfig(t, `
broker:
  kind: kafka
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
    group_id: riskguard-engine
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kafka", cfg.Broker.Kind)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "riskguard-engine", cfg.Broker.Kafka.GroupID)
}
