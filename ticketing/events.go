package ticketing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a committed state change.
type EventType string

const (
	EventBundleCreated          EventType = "bundle.created"
	EventBundleRetired          EventType = "bundle.retired"
	EventDistributionCreated    EventType = "distribution.created"
	EventDistributionEdited     EventType = "distribution.edited"
	EventDistributionCancelled  EventType = "distribution.cancelled"
	EventDistributionSettled    EventType = "distribution.settled"
	EventDistributionUnsettled  EventType = "distribution.unsettled"
	EventStaffSettlementCreated EventType = "staff_settlement.created"
	EventStaffSettlementCleared EventType = "staff_settlement.cleared"
)

// Event is published after the transaction that produced it commits.
// Fields that don't apply to the event type are left zero.
type Event struct {
	Type              EventType
	ScopeID           ScopeID
	BundleID          BundleID
	DistributionID    DistributionID
	StaffID           StaffID
	StaffSettlementID StaffSettlementID
	Tickets           int64
	Amount            decimal.Decimal
	User              string
	At                time.Time
}

// Publisher receives committed events. A publish failure never undoes the
// operation; the engine only logs it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher fans an event out to every publisher and joins the errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
