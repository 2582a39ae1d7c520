package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linskybing/csvflow/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler processes one job message. A returned error nacks the delivery
// without requeue; the job stays Running and is picked up by the poller.
type Handler func(ctx context.Context, msg JobMessage) error

// Consumer reads job messages from a durable queue bound to the job exchange.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	logger   *zap.Logger
}

func NewConsumer(cfg config.RabbitMQConfig, prefetch int, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	setup := func() error {
		if err := declareExchange(ch, cfg.Exchange); err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
		}
		if err := ch.QueueBind(cfg.Queue, bindingAllJobs, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
		}
		if prefetch > 0 {
			if err := ch.Qos(prefetch, 0, false); err != nil {
				return fmt.Errorf("set qos: %w", err)
			}
		}
		return nil
	}
	if err := setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if prefetch < 1 {
		prefetch = 1
	}
	return &Consumer{conn: conn, channel: ch, queue: cfg.Queue, prefetch: prefetch, logger: logger}, nil
}

// Run blocks until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	c.logger.Info("consuming job messages", zap.String("queue", c.queue), zap.Int("prefetch", c.prefetch))
	return c.consume(ctx, msgs, handle)
}

// consume handles up to prefetch deliveries at once and waits for the ones
// in flight before returning.
func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery, handle Handler) error {
	var g errgroup.Group
	g.SetLimit(c.prefetch)
	defer func() {
		_ = g.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			g.Go(func() error {
				c.dispatch(ctx, d, handle)
				return nil
			})
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	var msg JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("malformed job message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		c.logger.Warn("job message failed",
			zap.String("file_id", msg.FileID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}
