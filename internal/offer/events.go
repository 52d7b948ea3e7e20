package offer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"dispatch/internal/domain"
)

// EventType names one step of an offer's lifecycle.
type EventType string

const (
	EventCreated  EventType = "OFFER_CREATED"
	EventAccepted EventType = "OFFER_ACCEPTED"
	EventRejected EventType = "OFFER_REJECTED"
	EventExpired  EventType = "OFFER_EXPIRED"
)

// Event is the payload fanned out whenever an assignment changes state.
type Event struct {
	Type         EventType `json:"type"`
	AssignmentID string    `json:"assignment_id"`
	OrderID      string    `json:"order_id"`
	DriverID     string    `json:"driver_id"`
	Round        int       `json:"round"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DriverInbox pushes a realtime notification to one driver's open
// connection, if any. Implemented over a websocket hub; a driver with no
// open socket simply misses the push; the driver handler's
// GET /drivers/:id/assignments/offered endpoint is the fallback (spec 6).
type DriverInbox interface {
	Notify(driverID string, assignment *domain.Assignment) error
}

// Publisher fans out offer lifecycle events and pushes to driver inboxes.
// Both effects are best-effort: a failure here must never fail the offer
// transaction that already committed.
type Publisher struct {
	inbox  DriverInbox
	writer *kafka.Writer
}

// NewPublisher wires a driver inbox and an optional Kafka writer. writer
// may be nil, in which case events are logged only.
func NewPublisher(inbox DriverInbox, writer *kafka.Writer) *Publisher {
	return &Publisher{inbox: inbox, writer: writer}
}

// PublishOffered notifies the driver's inbox and emits an OFFER_CREATED
// event.
func (p *Publisher) PublishOffered(ctx context.Context, a *domain.Assignment) {
	if p.inbox != nil {
		if err := p.inbox.Notify(a.DriverID, a); err != nil {
			log.Printf("offer: inbox notify failed for driver %s: %v", a.DriverID, err)
		}
	}
	p.emit(ctx, Event{
		Type:         EventCreated,
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		DriverID:     a.DriverID,
		Round:        a.OfferRound,
		OccurredAt:   time.Now(),
	})
}

// PublishTransition emits an event for a non-creation lifecycle step.
func (p *Publisher) PublishTransition(ctx context.Context, evt EventType, a *domain.Assignment, at time.Time) {
	p.emit(ctx, Event{
		Type:         evt,
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		DriverID:     a.DriverID,
		Round:        a.OfferRound,
		OccurredAt:   at,
	})
}

func (p *Publisher) emit(ctx context.Context, evt Event) {
	if p.writer == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("offer: marshal event failed: %v", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.AssignmentID),
		Value: data,
	}); err != nil {
		log.Printf("offer: publish event failed: %v", err)
	}
}

// Close releases the underlying Kafka writer, if any.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
