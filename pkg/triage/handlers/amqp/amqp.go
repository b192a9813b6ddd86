// Package amqp files AgentOutputs on a RabbitMQ topic exchange, one routing
// key per handler.
package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
)

const DefaultExchange = "ar.events"

// Routing keys per handler.
const (
	KeyCashApplication = "ar.cash_application"
	KeyDisputes        = "ar.disputes"
	KeySupport         = "ar.support"
)

// Publisher is the subset of *amqp091.Channel the filers use.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Connection owns one broker connection and channel. Channels are not safe
// for concurrent publishing, so publishes are serialised.
type Connection struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string

	mu sync.Mutex
}

// Dial connects and declares a durable topic exchange.
func Dial(url, exchange string) (*Connection, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}
	return &Connection{conn: conn, channel: ch, exchange: exchange}, nil
}

func (c *Connection) Exchange() string {
	return c.exchange
}

func (c *Connection) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn.IsClosed() {
		return amqp091.ErrClosed
	}
	return c.channel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Filer publishes the full AgentOutput JSON under a fixed routing key.
type Filer struct {
	name     string
	key      string
	exchange string
	pub      Publisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewFiler(name, key, exchange string, pub Publisher, logger *zap.Logger) *Filer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filer{name: name, key: key, exchange: exchange, pub: pub, logger: logger, now: time.Now}
}

func (f *Filer) Name() string {
	return f.name
}

func (f *Filer) RoutingKey() string {
	return f.key
}

func (f *Filer) Handle(ctx context.Context, out schema.AgentOutput) error {
	body, err := out.MarshalJSON()
	if err != nil {
		return fmt.Errorf("amqp: encode output: %w", err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    f.now().UTC(),
		Type:         string(out.Category()),
		Headers: amqp091.Table{
			"handler":  f.name,
			"reply_id": out.ResponseEmail().ID,
		},
		Body: body,
	}
	if err := f.pub.PublishWithContext(ctx, f.exchange, f.key, false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", f.key, err)
	}
	f.logger.Debug("email published",
		zap.String("handler", f.name),
		zap.String("exchange", f.exchange),
		zap.String("routing_key", f.key),
		zap.String("message_id", msg.MessageId),
	)
	return nil
}

// Handlers binds a Filer to every category on the given exchange.
func Handlers(pub Publisher, exchange string, logger *zap.Logger) route.Handlers {
	return route.Handlers{
		CashApplication: NewFiler(route.CashApplicationHandler, KeyCashApplication, exchange, pub, logger),
		Disputes:        NewFiler(route.DisputesHandler, KeyDisputes, exchange, pub, logger),
		ARSupport:       NewFiler(route.ARSupportHandler, KeySupport, exchange, pub, logger),
	}
}
