/*
Package replica replicates sheet snapshots between sessions over RabbitMQ.

PURPOSE:
  Every committed snapshot is published to a fanout exchange. Each process
  binds its own exclusive queue to the exchange and applies what arrives
  from other processes, replacing its whole state (last writer wins).

MESSAGE:
  {"origin": "<process uuid>", "revision": "<ulid>", "sentAt": "...",
   "state": { ...sheet document... }}

  Each process receives its own messages too. The origin lets the sheet
  service drop them.

SEE ALSO:
  - sheet/sheet.go: Replicator interface, Service.ApplyRemote
*/
package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/warp/order-sheet/sheet"
)

// Message is the wire form of a snapshot.
type Message struct {
	Origin   string          `json:"origin"`
	Revision string          `json:"revision"`
	SentAt   time.Time       `json:"sentAt"`
	State    json.RawMessage `json:"state"`
}

// Encode builds the message body for snap.
func Encode(snap sheet.Snapshot) ([]byte, error) {
	if !json.Valid(snap.Data) {
		return nil, errors.New("snapshot data is not a JSON document")
	}
	body, err := json.Marshal(Message{
		Origin:   snap.Origin,
		Revision: snap.Revision,
		SentAt:   snap.SavedAt,
		State:    snap.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return body, nil
}

// Decode parses a message body.
func Decode(body []byte) (sheet.Snapshot, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return sheet.Snapshot{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if len(msg.State) == 0 {
		return sheet.Snapshot{}, errors.New("message has no state")
	}
	return sheet.Snapshot{
		Revision: msg.Revision,
		Origin:   msg.Origin,
		SavedAt:  msg.SentAt,
		Data:     msg.State,
	}, nil
}

// Channel is the part of *amqp091.Channel the client uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Client publishes and consumes snapshots.
type Client struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	queue    string
}

// Dial connects to url and declares the fanout exchange and this process's
// queue.
func Dial(url, exchange string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	queue, err := setup(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c := NewClient(ch, exchange, queue)
	c.conn = conn
	return c, nil
}

// NewClient wraps an already configured channel.
func NewClient(ch Channel, exchange, queue string) *Client {
	return &Client{channel: ch, exchange: exchange, queue: queue}
}

func setup(ch *amqp091.Channel, exchange string) (string, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare exchange: %w", err)
	}

	// Server-named, exclusive and auto-deleted: one queue per process.
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue: %w", err)
	}
	return q.Name, nil
}

// Replicate publishes snap to every subscriber.
func (c *Client) Replicate(ctx context.Context, snap sheet.Snapshot) error {
	body, err := Encode(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange, // exchange
		"",         // routing key (ignored by fanout)
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   snap.Revision,
			AppId:       snap.Origin,
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	slog.DebugContext(ctx, "published snapshot", "revision", snap.Revision, "exchange", c.exchange)
	return nil
}

// Subscribe applies every received snapshot until ctx is done. Messages that
// cannot be decoded or applied are dropped.
func (c *Client) Subscribe(ctx context.Context, apply func(context.Context, sheet.Snapshot) error) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		true,    // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "subscribed to sheet snapshots", "exchange", c.exchange, "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("snapshot channel closed")
			}

			snap, err := Decode(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "failed to decode snapshot", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := apply(ctx, snap); err != nil {
				slog.ErrorContext(ctx, "failed to apply snapshot",
					"error", err,
					"revision", snap.Revision,
					"origin", snap.Origin)
				delivery.Nack(false, false)
				continue
			}

			delivery.Ack(false)
		}
	}
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
