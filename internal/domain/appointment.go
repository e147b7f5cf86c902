package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type AppointmentState string

const (
	StatePending   AppointmentState = "PENDING"
	StateConfirmed AppointmentState = "CONFIRMED"
	StateCompleted AppointmentState = "COMPLETED"
	StateCancelled AppointmentState = "CANCELLED"
)

// ActiveStates are the states that hold a slot.
var ActiveStates = []AppointmentState{StatePending, StateConfirmed}

func (s AppointmentState) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateCompleted, StateCancelled:
		return true
	}
	return false
}

func (s AppointmentState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

func (s AppointmentState) Active() bool {
	return s == StatePending || s == StateConfirmed
}

var transitions = map[AppointmentState][]AppointmentState{
	StatePending:   {StateConfirmed, StateCancelled},
	StateConfirmed: {StateCompleted, StateCancelled},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
// Terminal states have no outgoing edges.
func CanTransition(from, to AppointmentState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PayNowKind is what a customer asked to pay online at booking time.
type PayNowKind string

const (
	PayNowNone    PayNowKind = ""
	PayNowDeposit PayNowKind = "DEPOSIT"
	PayNowFull    PayNowKind = "FULL"
)

func (k PayNowKind) Valid() bool {
	return k == PayNowNone || k == PayNowDeposit || k == PayNowFull
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	ClientID   string           `bun:"client_id,notnull" json:"client_id"`
	StaffID    string           `bun:"staff_id,notnull" json:"staff_id"`
	ServiceID  uuid.UUID        `bun:"service_id,notnull,type:uuid" json:"service_id"`
	StartTime  time.Time        `bun:"start_time,notnull" json:"start_time"`
	EndTime    time.Time        `bun:"end_time,notnull" json:"end_time"`
	State      AppointmentState `bun:"state,notnull" json:"state"`
	AmountPaid decimal.Decimal  `bun:"amount_paid,type:numeric(12,2),notnull" json:"amount_paid"`
	Notes      string           `bun:"notes" json:"notes,omitempty"`
	// PaymentDeadline is when the latest checkout link for this booking stops being payable.
	PaymentDeadline *time.Time `bun:"payment_deadline" json:"payment_deadline,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

func (a Appointment) Span() Span {
	return Span{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
