package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ticket-engine/ticketing"
)

type fakeChannel struct {
	exchange, key string
	msgs          []amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange, f.key = exchange, key
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func settledEvent() ticketing.Event {
	return ticketing.Event{
		Type:           ticketing.EventDistributionSettled,
		ScopeID:        "scope-1",
		DistributionID: "dist-1",
		BundleID:       "bundle-1",
		StaffID:        "staff-1",
		Tickets:        60,
		Amount:         decimal.RequireFromString("600"),
		User:           "ops",
		At:             time.Date(2025, 7, 2, 18, 30, 0, 0, time.UTC),
	}
}

func TestPublish_RoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "ticketing.events")

	require.NoError(t, p.Publish(context.Background(), settledEvent()))

	assert.Equal(t, "ticketing.events", ch.exchange)
	assert.Equal(t, "distribution.settled", ch.key)
	require.Len(t, ch.msgs, 1)
	msg := ch.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "distribution.settled", msg.Type)

	var m Message
	require.NoError(t, json.Unmarshal(msg.Body, &m))
	assert.Equal(t, "dist-1", m.DistributionID)
	assert.Equal(t, int64(60), m.Tickets)
	require.NotNil(t, m.Amount)
	assert.True(t, decimal.RequireFromString("600").Equal(*m.Amount))
}

func TestEncode_OmitsUnsetFields(t *testing.T) {
	body, err := Encode(ticketing.Event{
		Type:     ticketing.EventBundleCreated,
		ScopeID:  "scope-1",
		BundleID: "bundle-1",
		Tickets:  100,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.NotContains(t, raw, "amount")
	assert.NotContains(t, raw, "distribution_id")
	assert.Equal(t, "bundle.created", raw["type"])
}

func TestPublish_ErrorIsReturned(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewPublisher(ch, "ticketing.events")

	err := p.Publish(context.Background(), settledEvent())
	assert.ErrorIs(t, err, amqp.ErrClosed)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
