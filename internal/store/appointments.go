package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"barbershop/backend/internal/domain"
)

type AppointmentFilter struct {
	ClientID string
	StaffID  string
	// From and To bound the start instant as [From, To); zero values are unbounded.
	From   time.Time
	To     time.Time
	States []domain.AppointmentState
}

type BlockFilter struct {
	// Overlapping selects blocks intersecting this span; a zero End is unbounded.
	Overlapping domain.Span
}

type MovementFilter struct {
	AccountID    uuid.UUID
	TaggedUserID string
	// Before and BeforeID page backwards past the movement at (Before, BeforeID).
	// A nil BeforeID compares on Before alone; a zero Before starts from the newest.
	Before   time.Time
	BeforeID uuid.UUID
	// Limit of zero returns every matching row.
	Limit int
}

type ProfileReader interface {
	GetClient(ctx context.Context, userID string) (domain.Client, error)
	GetBarber(ctx context.Context, userID string) (domain.Barber, error)
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
}

type Store interface {
	ProfileReader

	// InStaffTransaction runs fn in a transaction that holds the staff member's
	// calendar lock, serialising every slot decision for that staff member.
	// It also holds the shop calendar lock in shared mode.
	InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx Tx) error) error
	// InShopTransaction runs fn holding the shop calendar lock exclusively, so
	// it is serialised against every InStaffTransaction.
	InShopTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)
	// ExpiredPending lists PENDING appointments created before cutoff whose
	// payment deadline, if any, also passed before cutoff. Oldest first.
	ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error)
	// DeletePending hard-deletes the appointment if it still matches
	// ExpiredPending for cutoff. It reports whether a row was removed.
	DeletePending(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error)

	GetBlock(ctx context.Context, id uuid.UUID) (domain.AgendaBlock, error)
	ListBlocks(ctx context.Context, f BlockFilter) ([]domain.AgendaBlock, error)

	FindPaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error)
	CentralAccount(ctx context.Context) (domain.LedgerAccount, error)
	ListMovements(ctx context.Context, f MovementFilter) ([]domain.LedgerMovement, error)
}
