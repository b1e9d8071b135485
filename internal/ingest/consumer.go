package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/harvestprice/internal/config"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const fetchBackoff = time.Second

type Consumer struct {
	log     *zap.Logger
	reader  MessageReader
	handler *Handler

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewConsumer(log *zap.Logger, reader MessageReader, handler *Handler) *Consumer {
	return &Consumer{
		log:     log.Named("ingest.consumer"),
		reader:  reader,
		handler: handler,
		done:    make(chan struct{}),
	}
}

func newKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.SalesTopic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0,
		MaxBytes:       10e6,
	})
}

// Start launches the consume loop in the background.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
}

// Stop cancels the loop, waits for it to drain and closes the reader.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
			select {
			case <-c.done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		if closeErr := c.reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warn("fetch sale event failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchBackoff):
			}
			continue
		}

		if err := c.handler.Handle(ctx, msg); err != nil {
			// malformed events are dropped so they cannot block the partition
			c.log.Warn("sale event skipped",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit sale event failed",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}
