// Package queue carries practice records over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RecordQueueName receives finished practice records.
const RecordQueueName = "kata.records"

var ErrClosed = errors.New("connection closed")

// Connection manages a RabbitMQ connection and channel, reconnecting with
// backoff when the broker drops it.
type Connection struct {
	url string

	mu         sync.RWMutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	closed     bool
	reconnects int
}

// NewConnection dials url and declares the record queue.
func NewConnection(url string) (*Connection, error) {
	c := &Connection{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareQueues(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	go c.watch(conn)

	slog.Info("connected to RabbitMQ", "url", redact(c.url))
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		RecordQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(7 * 24 * time.Hour / time.Millisecond),
		},
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", RecordQueueName, err)
	}
	return nil
}

// watch reconnects after an unexpected close.
func (c *Connection) watch(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return
	}

	for attempt := 1; attempt <= 10; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnects++
		c.mu.Unlock()

		backoff := min(time.Duration(1<<(attempt-1))*time.Second, 30*time.Second)
		slog.Warn("RabbitMQ connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", backoff)
		time.Sleep(backoff)

		if cerr := c.connect(); cerr != nil {
			slog.Error("reconnect failed", "error", cerr, "attempt", attempt)
			continue
		}
		return
	}
	slog.Error("giving up on RabbitMQ after 10 attempts")
}

// Channel returns the current channel
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.channel == nil {
		return nil, ErrClosed
	}
	return c.channel, nil
}

// IsConnected reports whether the underlying connection is open
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and connection and stops reconnecting
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishJSON publishes data as a persistent JSON message
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// redact hides credentials in a broker URL for logging
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
