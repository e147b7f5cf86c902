// Package payments describes the online payment provider the cash box settles against.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
)

var ErrNotConfigured = errors.New("payment provider not configured")

// Status is the provider's canonical view of one payment.
type Status struct {
	ExternalID string
	// Status is domain.PaymentStatusApproved for settled payments; any other
	// value is provider specific and means "not yet".
	Status string
	// ExternalReference is the appointment id attached when the link was created.
	ExternalReference string
	GrossAmount       decimal.Decimal
	NetAmount         decimal.Decimal
	Method            string
}

func (s Status) Approved() bool { return s.Status == domain.PaymentStatusApproved }

// AppointmentID parses ExternalReference.
func (s Status) AppointmentID() (uuid.UUID, error) {
	return uuid.Parse(s.ExternalReference)
}

type LinkRequest struct {
	AppointmentID uuid.UUID
	ClientID      string
	Kind          domain.PayNowKind
	Title         string
	Amount        decimal.Decimal
	// ExpiresAt is when the link must stop accepting payment.
	ExpiresAt time.Time
}

type Provider interface {
	FetchPaymentStatus(ctx context.Context, externalID string) (Status, error)
	CreatePaymentLink(ctx context.Context, req LinkRequest) (string, error)
}

// Disabled rejects every call. Used when no provider credentials are configured.
type Disabled struct{}

func (Disabled) FetchPaymentStatus(context.Context, string) (Status, error) {
	return Status{}, ErrNotConfigured
}

func (Disabled) CreatePaymentLink(context.Context, LinkRequest) (string, error) {
	return "", ErrNotConfigured
}
