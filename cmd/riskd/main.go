package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quantarc/riskguard/internal/config"
	"github.com/quantarc/riskguard/internal/events"
	"github.com/quantarc/riskguard/internal/events/audit"
	"github.com/quantarc/riskguard/internal/risk"
	"github.com/quantarc/riskguard/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	var configPaths []string
	if p := os.Getenv("RISKGUARD_CONFIG"); p != "" {
		configPaths = append(configPaths, p)
	}
	cfg, err := config.Load(configPaths...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openAuditDB(cfg.Audit)
	if err != nil {
		zapLogger.Fatal("Failed to open audit database", zap.Error(err))
	}
	auditStore := audit.NewStore(db, zapLogger)
	if err := auditStore.Migrate(); err != nil {
		zapLogger.Fatal("Failed to migrate audit store", zap.Error(err))
	}

	broker := newBroker(cfg.Broker, zapLogger)
	bus := events.NewBus(broker, zapLogger)
	if err := bus.Connect(ctx); err != nil {
		zapLogger.Fatal("Failed to connect event broker", zap.Error(err))
	}
	defer bus.Disconnect()

	// Halts announced by any process on the shared channel get recorded to
	// the audit trail here.
	bus.On(events.EventKillSwitchTriggered, func(ctx context.Context, p events.Payload) error {
		zapLogger.Error("kill switch triggered",
			zap.String("source", p.Source),
			zap.String("correlation_id", p.CorrelationID),
			zap.Any("data", p.Data))
		return auditStore.Append(ctx, p)
	})
	bus.On(events.EventRegimeChanged, func(ctx context.Context, p events.Payload) error {
		zapLogger.Info("market regime changed", zap.Any("data", p.Data))
		return nil
	})

	// Position closing is executed by the bridge process, which reacts to the
	// CRITICAL halt event on the shared channel; no in-process closer here.
	killSwitch := risk.NewKillSwitch(nil, bus, zapLogger)
	sizer := risk.NewPositionSizer(sizerConfig(cfg.Risk), risk.DefaultPipTable(), zapLogger)
	manager := risk.NewManager(limits(cfg.Risk), killSwitch, sizer, bus, zapLogger)

	// Realized P&L flows back from the engine as TRADE_CLOSED events; the
	// daily-loss check runs on every one of them.
	bus.On(events.EventTradeClosed, func(ctx context.Context, p events.Payload) error {
		pnl, ok1 := decimalField(p.Data, "daily_pnl")
		balance, ok2 := decimalField(p.Data, "starting_balance")
		if !ok1 || !ok2 {
			zapLogger.Warn("trade close event missing pnl fields",
				zap.String("correlation_id", p.CorrelationID))
			return nil
		}
		manager.PostTradeUpdate(ctx, pnl, balance)
		return nil
	})

	// All handlers are registered; start draining the shared channel.
	go func() {
		if err := bus.Listen(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Error("broker listen loop exited", zap.Error(err))
		}
	}()

	zapLogger.Info("riskguard started",
		zap.String("broker", cfg.Broker.Kind),
		zap.String("channel", cfg.Broker.Channel))

	<-ctx.Done()
	zapLogger.Info("shutting down")
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func decimalField(data map[string]any, key string) (decimal.Decimal, bool) {
	switch v := data[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func openAuditDB(cfg config.AuditConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	default:
		return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	}
}

func newBroker(cfg config.BrokerConfig, zapLogger *zap.Logger) events.Broker {
	if cfg.Kind == "kafka" {
		return events.NewKafkaBroker(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Channel,
			GroupID: cfg.Kafka.GroupID,
		}, zapLogger)
	}
	rc := events.DefaultRedisConfig()
	rc.Addr = cfg.Redis.Addr
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.Channel = cfg.Channel
	return events.NewRedisBroker(rc, zapLogger)
}

func limits(cfg config.RiskConfig) risk.Limits {
	return risk.Limits{
		MaxDrawdownPct:    decimal.NewFromFloat(cfg.MaxDrawdownPct),
		DailyLossLimitPct: decimal.NewFromFloat(cfg.DailyLossLimitPct),
		PerTradeRiskPct:   decimal.NewFromFloat(cfg.PerTradeRiskPct),
	}
}

func sizerConfig(cfg config.RiskConfig) risk.SizerConfig {
	return risk.SizerConfig{
		MinLots: decimal.NewFromFloat(cfg.MinLots),
		MaxLots: decimal.NewFromFloat(cfg.MaxLots),
		LotStep: decimal.NewFromFloat(cfg.LotStep),
	}
}
