// Package notify publishes discovery events to an AMQP broker.
//
// Events go to a durable topic exchange with routing key "fleetscope.<org>.<event type>",
// so consumers can bind to one organization ("fleetscope.549236.#") or one kind of event
// ("fleetscope.*.discovery_complete").
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"fleetscope/internal/service"
)

// DefaultExchange is used when no exchange name is configured
const DefaultExchange = "fleetscope.events"

// PublishTimeout bounds a single publish
var PublishTimeout = 5 * time.Second

// Channel is the part of *amqp.Channel the publisher needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends discovery events to a topic exchange
type Publisher struct {
	ch       Channel
	conn     io.Closer
	exchange string
	logger   *logrus.Logger
}

// Dial connects to the broker at rawURL and declares exchange
func Dial(rawURL, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("can't parse broker url: %w", err)
	}
	logger.WithField("broker", u.Redacted()).Debug("Connecting to broker")

	conn, err := amqp.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("can't connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("can't open channel: %w", err)
	}

	p, err := NewPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares exchange on ch. An empty exchange uses DefaultExchange.
func NewPublisher(ch Channel, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // delete when unused
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("can't declare exchange %s: %w", exchange, err)
	}

	return &Publisher{ch: ch, exchange: exchange, logger: logger}, nil
}

// RoutingKey returns the routing key of e
func RoutingKey(e service.Event) string {
	org := e.OrgID()
	if org == "" {
		org = "all"
	}
	return fmt.Sprintf("fleetscope.%s.%s", org, e.Type)
}

// Publish sends one event
func (p *Publisher) Publish(ctx context.Context, e service.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		RoutingKey(e), // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         string(e.Type),
			Body:         body,
		})
}

// Forward publishes every event of bus until ctx is done. Failed publishes are logged and dropped.
func (p *Publisher) Forward(ctx context.Context, bus *service.EventBus) {
	ch := make(chan service.Event, 64)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if err := p.Publish(ctx, e); err != nil {
				p.logger.WithError(err).WithField("type", e.Type).Warn("Failed to publish event")
				continue
			}
			p.logger.WithField("key", RoutingKey(e)).Debug("Published event")
		}
	}
}

// Close closes the channel and, when Dial opened it, the connection
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
