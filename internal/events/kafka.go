package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig holds connection settings for the Kafka broker. Kafka gives
// per-partition FIFO delivery, so cross-process ordering holds when the topic
// has a single partition; callers must not depend on it otherwise.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	GroupID string   `yaml:"group_id" json:"group_id"`
}

// KafkaBroker delivers payloads over a single Kafka topic. It satisfies the
// same Broker contract as RedisBroker and is selected by configuration.
type KafkaBroker struct {
	cfg    KafkaConfig
	logger *zap.Logger

	mu     sync.Mutex
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaBroker(cfg KafkaConfig, logger *zap.Logger) *KafkaBroker {
	if cfg.Topic == "" {
		cfg.Topic = DefaultChannel
	}
	return &KafkaBroker{cfg: cfg, logger: logger}
}

func (b *KafkaBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer != nil {
		return nil
	}
	if len(b.cfg.Brokers) == 0 {
		return fmt.Errorf("events: kafka broker requires at least one broker address")
	}

	b.writer = &kafka.Writer{
		Addr:     kafka.TCP(b.cfg.Brokers...),
		Topic:    b.cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	b.logger.Info("kafka broker configured",
		zap.Strings("brokers", b.cfg.Brokers),
		zap.String("topic", b.cfg.Topic))
	return nil
}

func (b *KafkaBroker) Publish(ctx context.Context, msg []byte) error {
	b.mu.Lock()
	writer := b.writer
	b.mu.Unlock()

	if writer == nil {
		return fmt.Errorf("events: kafka broker not connected")
	}
	return writer.WriteMessages(ctx, kafka.Message{Value: msg})
}

func (b *KafkaBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer == nil {
		return nil, fmt.Errorf("events: kafka broker not connected")
	}

	b.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.cfg.Brokers,
		Topic:   b.cfg.Topic,
		GroupID: b.cfg.GroupID,
	})
	reader := b.reader

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("kafka read failed", zap.Error(err))
				}
				return
			}
			select {
			case out <- m.Value:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.reader != nil {
		err = b.reader.Close()
		b.reader = nil
	}
	if b.writer != nil {
		if werr := b.writer.Close(); err == nil {
			err = werr
		}
		b.writer = nil
	}
	return err
}
