package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one envelope. A returned error requeues the message
// once; a second failure drops it.
type Handler func(ctx context.Context, env Envelope) error

// Consumer drains a queue with a small worker pool
type Consumer struct {
	conn     *Connection
	queue    string
	handler  Handler
	workers  int
	prefetch int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int
	Prefetch int
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{Workers: 2, Prefetch: 4}
}

// NewConsumer creates a consumer for queue
func NewConsumer(conn *Connection, queue string, handler Handler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start begins consuming until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	slog.Info("consumer started", "queue", c.queue, "workers", c.workers)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.work(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) work(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.process(ctx, id, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, worker int, msg amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		slog.Error("dropping malformed message", "queue", c.queue, "worker", worker, "error", err)
		_ = msg.Reject(false)
		return
	}

	if err := c.handler(ctx, env); err != nil {
		slog.Warn("message handler failed",
			"queue", c.queue,
			"id", env.ID,
			"redelivered", msg.Redelivered,
			"error", err)
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("ack failed", "id", env.ID, "error", err)
	}
}

// Stop cancels the workers and waits for them
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	slog.Info("consumer stopped", "queue", c.queue)
}
