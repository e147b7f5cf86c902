package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
)

// Tx is the set of reads and writes that must share one transaction.
// Slot decisions, settlements and ledger postings are made through it.
type Tx interface {
	// LockAppointment loads an appointment and holds its row lock until the transaction ends.
	LockAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// OverlappingAppointments returns active appointments of staffID that intersect span,
	// skipping exclude.
	OverlappingAppointments(ctx context.Context, staffID string, span domain.Span, exclude uuid.UUID) ([]domain.Appointment, error)
	// OverlappingBlocks returns blocks intersecting span that belong to staffID,
	// plus general blocks when includeGeneral is set. An empty staffID selects no
	// staff-specific blocks.
	OverlappingBlocks(ctx context.Context, span domain.Span, staffID string, includeGeneral bool) ([]domain.AgendaBlock, error)
	InsertAppointment(ctx context.Context, appt *domain.Appointment) error
	UpdateAppointment(ctx context.Context, appt *domain.Appointment) error

	InsertBlock(ctx context.Context, block *domain.AgendaBlock) error
	DeleteBlock(ctx context.Context, id uuid.UUID) error

	PaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error)
	PaymentForAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Payment, error)
	InsertPayment(ctx context.Context, p *domain.Payment) error

	// LockCentralAccount returns the central account, creating it on first use,
	// and holds its row lock until the transaction ends.
	LockCentralAccount(ctx context.Context) (domain.LedgerAccount, error)
	SetAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	InsertMovement(ctx context.Context, m *domain.LedgerMovement) error
}
