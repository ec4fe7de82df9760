// Package events publishes committed ticketing events to RabbitMQ.
//
// Every event goes to one durable topic exchange with the event type as
// routing key, so consumers bind to "distribution.*" or
// "staff_settlement.cleared" as they need. Messages are JSON and
// persistent. A failed publish is returned to the engine, which logs it;
// the ticketing operation itself has already committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/warp/ticket-engine/ticketing"
)

// Message is the wire form of a ticketing.Event.
type Message struct {
	Type              string           `json:"type"`
	ScopeID           string           `json:"scope_id"`
	BundleID          string           `json:"bundle_id,omitempty"`
	DistributionID    string           `json:"distribution_id,omitempty"`
	StaffID           string           `json:"staff_id,omitempty"`
	StaffSettlementID string           `json:"staff_settlement_id,omitempty"`
	Tickets           int64            `json:"tickets,omitempty"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	User              string           `json:"user,omitempty"`
	At                time.Time        `json:"at"`
}

// Encode converts ev to its JSON message body.
func Encode(ev ticketing.Event) ([]byte, error) {
	m := Message{
		Type:              string(ev.Type),
		ScopeID:           string(ev.ScopeID),
		BundleID:          string(ev.BundleID),
		DistributionID:    string(ev.DistributionID),
		StaffID:           string(ev.StaffID),
		StaffSettlementID: string(ev.StaffSettlementID),
		Tickets:           ev.Tickets,
		User:              ev.User,
		At:                ev.At.UTC(),
	}
	if !ev.Amount.IsZero() {
		amount := ev.Amount
		m.Amount = &amount
	}
	return json.Marshal(m)
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements ticketing.Publisher on an AMQP channel.
type Publisher struct {
	conn     *amqp.Connection // nil when built with NewPublisher
	exchange string

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
	ch channel
}

var _ ticketing.Publisher = (*Publisher)(nil)

// Dial connects to url and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}
	p := NewPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// NewPublisher publishes on an already open channel.
func NewPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish sends ev with its type as routing key.
func (p *Publisher) Publish(ctx context.Context, ev ticketing.Event) error {
	body, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At.UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %s failed: %w", ev.Type, err)
	}
	return nil
}

// Close closes the channel and, when Dial opened it, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
