package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/gcart-api/internal/usecase"
)

const (
	DefaultExchange   = "cart.events"
	DefaultRoutingKey = "cart.changed"
	DefaultQueue      = "cart.changed.q"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string // empty: publish only, consumers bind their own queue
}

func (t Topology) withDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = DefaultExchange
	}
	if t.RoutingKey == "" {
		t.RoutingKey = DefaultRoutingKey
	}
	return t
}

// RabbitPublisher implements usecase.CartEvents
type RabbitPublisher struct {
	ch   Channel
	topo Topology
}

// NewRabbitPublisher sets up the exchange, optional queue and binding once at
// startup and puts the channel in confirm mode.
func NewRabbitPublisher(ch Channel, topo Topology) (*RabbitPublisher, error) {
	topo = topo.withDefaults()

	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		topo.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if topo.Queue != "" {
		// 2. declare queue
		q, err := ch.QueueDeclare(
			topo.Queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("declare queue: %w", err)
		}

		// 3. bind queue → exchange
		if err := ch.QueueBind(q.Name, topo.RoutingKey, topo.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("queue bind: %w", err)
		}
	}

	// 4. publisher confirms, awaited per message in PublishChanged
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitPublisher{ch: ch, topo: topo}, nil
}

// PublishChanged sends a "cart.changed" event and waits for the broker ack.
func (p *RabbitPublisher) PublishChanged(ctx context.Context, msg usecase.CartChangedMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    fmt.Sprintf("%s:%d", msg.CartID, msg.At.UnixNano()),
		Timestamp:    msg.At,
		Type:         msg.Action,
		Body:         body,
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.topo.Exchange,   // exchange
		p.topo.RoutingKey, // routing key
		false,             // mandatory
		false,             // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if dc == nil {
		return nil
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish: broker nacked %s", pub.MessageId)
	}
	return nil
}

var _ usecase.CartEvents = (*RabbitPublisher)(nil)
