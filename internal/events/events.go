// Package events publishes appointment and ledger lifecycle events after
// the owning transaction commits.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentCreated     = "appointment.created"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentConfirmed   = "appointment.confirmed"
	AppointmentCompleted   = "appointment.completed"
	AppointmentExpired     = "appointment.expired"
	MovementRecorded       = "ledger.movement.recorded"
)

type Event struct {
	ID          string    `json:"event_id"`
	Type        string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     any       `json:"payload"`
}

// New stamps an event id and time.
func New(eventType, aggregateID string, payload any) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		ID:          id.String(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
