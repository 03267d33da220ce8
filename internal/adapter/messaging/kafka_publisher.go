package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

const (
	EventTypeRolledUp = "inventory.rolled_up"
	eventVersion      = 1
)

// RollupEvent is the message value published after a committed rollup.
type RollupEvent struct {
	EventID           string    `json:"event_id"`
	EventType         string    `json:"event_type"`
	EventVersion      int       `json:"event_version"`
	OccurredAt        time.Time `json:"occurred_at"`
	SkuCode           string    `json:"sku_code"`
	WarehouseID       int64     `json:"warehouse_id"`
	QuantityOnHand    int       `json:"quantity_on_hand_delta"`
	AllocatedQuantity int       `json:"allocated_quantity_delta"`
	RowsRolledUp      int       `json:"rows_rolled_up"`
	Version           int       `json:"version,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	logger *zap.Logger
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(logger *zap.Logger, brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return newKafkaPublisher(logger, writer, topic)
}

func newKafkaPublisher(logger *zap.Logger, writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// PublishRollup keys the message by "sku:warehouse" so events for one
// inventory row stay ordered within a partition.
func (p *KafkaPublisher) PublishRollup(ctx context.Context, result domain.RollupResult) error {
	event := RollupEvent{
		EventID:           uuid.NewString(),
		EventType:         EventTypeRolledUp,
		EventVersion:      eventVersion,
		OccurredAt:        p.now(),
		SkuCode:           result.Key.SkuCode,
		WarehouseID:       result.Key.WarehouseID,
		QuantityOnHand:    result.Applied.QuantityOnHand,
		AllocatedQuantity: result.Applied.Allocated,
		RowsRolledUp:      result.RowsDeleted,
	}
	if result.Inventory != nil {
		event.Version = result.Inventory.Version
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal rollup event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.Key.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("failed to publish rollup event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("key", result.Key.String()),
		)
		return fmt.Errorf("publish rollup event: %w", err)
	}

	p.logger.Debug("rollup event published",
		zap.String("topic", p.topic),
		zap.String("event_id", event.EventID),
		zap.String("key", result.Key.String()),
	)
	return nil
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRollup(ctx context.Context, result domain.RollupResult) error {
	return nil
}
