package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AgendaBlock closes a range for booking. A nil StaffID is a general
// closure that applies to every staff member.
type AgendaBlock struct {
	bun.BaseModel `bun:"table:agenda_blocks"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	StartTime time.Time `bun:"start_time,notnull" json:"start_time"`
	EndTime   time.Time `bun:"end_time,notnull" json:"end_time"`
	StaffID   *string   `bun:"staff_id" json:"staff_id,omitempty"`
	Reason    string    `bun:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (b AgendaBlock) General() bool { return b.StaffID == nil }

func (b AgendaBlock) Span() Span {
	return Span{Start: b.StartTime, End: b.EndTime}
}

// AppliesTo reports whether the block closes staffID's agenda.
func (b AgendaBlock) AppliesTo(staffID string) bool {
	return b.StaffID == nil || *b.StaffID == staffID
}

func (b *AgendaBlock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return nil
}
