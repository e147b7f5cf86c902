package cashbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/events"
	"barbershop/backend/internal/payments"
	"barbershop/backend/internal/store"
)

// Outcome says what OnPaymentConfirmed did with a notification.
type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeNotApproved Outcome = "not_approved"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeOrphaned    Outcome = "orphaned"
	OutcomeUnavailable Outcome = "provider_unavailable"
)

var (
	errOrphaned  = errors.New("payment references no appointment")
	errDuplicate = errors.New("payment already recorded")
)

// OnPaymentConfirmed records an approved provider payment against its
// appointment. It is safe under redelivery: a payment is recorded at most
// once, and every outcome other than a store failure returns a nil error.
func (s *Service) OnPaymentConfirmed(ctx context.Context, externalID string) (Outcome, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", domain.InvalidInput("external payment id is required")
	}
	log := s.log.With(slog.String("external_payment_id", externalID))

	// Talk to the provider before any transaction is opened.
	status, err := s.provider.FetchPaymentStatus(ctx, externalID)
	if err != nil {
		log.Warn("payment status fetch failed", slog.Any("err", err))
		return OutcomeUnavailable, nil
	}
	if !status.Approved() {
		log.Info("payment not approved, ignoring", slog.String("status", status.Status))
		return OutcomeNotApproved, nil
	}

	if _, err := s.store.FindPaymentByExternalID(ctx, externalID); err == nil {
		log.Info("payment already recorded, ignoring replay")
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("replay guard: %w", err)
	}

	apptID, err := status.AppointmentID()
	if err != nil {
		log.Warn("payment has no appointment reference", slog.String("external_reference", status.ExternalReference))
		return OutcomeOrphaned, nil
	}
	current, err := s.store.GetAppointment(ctx, apptID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("payment references a missing appointment", slog.String("appointment_id", apptID.String()))
		return OutcomeOrphaned, nil
	}
	if err != nil {
		return "", fmt.Errorf("load appointment: %w", err)
	}
	svc, err := s.store.GetService(ctx, current.ServiceID)
	if err != nil {
		return "", fmt.Errorf("load service: %w", lookupErr(err, "service"))
	}

	var (
		out       domain.Appointment
		movement  domain.LedgerMovement
		confirmed bool
	)
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		appt, err := tx.LockAppointment(ctx, apptID)
		if errors.Is(err, store.ErrNotFound) {
			return errOrphaned
		}
		if err != nil {
			return err
		}

		pay := domain.Payment{
			ExternalPaymentID: externalID,
			AppointmentID:     appt.ID,
			GrossAmount:       status.GrossAmount,
			NetAmount:         status.NetAmount,
			Status:            domain.PaymentStatusApproved,
			Method:            status.Method,
		}
		if err := tx.InsertPayment(ctx, &pay); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errDuplicate
			}
			return err
		}

		appt.AmountPaid = status.GrossAmount
		// A payment landing on an expired or cancelled booking is still money in the till.
		if domain.CanTransition(appt.State, domain.StateConfirmed) {
			appt.State = domain.StateConfirmed
			confirmed = true
		}
		if err := tx.UpdateAppointment(ctx, &appt); err != nil {
			return err
		}
		out = appt

		category := domain.CategoryWebDeposit
		if status.GrossAmount.GreaterThanOrEqual(svc.Price) {
			category = domain.CategoryWebFullPayment
		}
		client := appt.ClientID
		ref := appt.ID
		movement = domain.LedgerMovement{
			Direction:     domain.DirectionIn,
			Category:      category,
			Amount:        status.GrossAmount,
			Method:        status.Method,
			Description:   "Online payment " + externalID,
			AppointmentID: &ref,
			TaggedUserID:  &client,
		}
		return post(ctx, tx, &movement)
	})
	switch {
	case errors.Is(err, errDuplicate):
		log.Info("payment recorded concurrently, ignoring replay")
		return OutcomeDuplicate, nil
	case errors.Is(err, errOrphaned):
		log.Warn("payment references a missing appointment", slog.String("appointment_id", apptID.String()))
		return OutcomeOrphaned, nil
	case err != nil:
		return "", fmt.Errorf("settle payment %s: %w", externalID, err)
	}

	log.Info(
		"payment settled",
		slog.String("appointment_id", out.ID.String()),
		slog.String("amount", status.GrossAmount.StringFixed(2)),
		slog.String("category", string(movement.Category)),
		slog.String("state", string(out.State)),
	)
	evts := []events.Event{events.New(events.MovementRecorded, movement.ID.String(), movement)}
	if confirmed {
		evts = append(evts, events.New(events.AppointmentConfirmed, out.ID.String(), out))
	}
	s.publish(ctx, evts...)
	return OutcomeSettled, nil
}

// CreatePaymentLink opens a provider checkout for the client's pending
// booking: the deposit or the full service price. The booking's payment
// deadline is pushed out to the link's expiry first.
func (s *Service) CreatePaymentLink(ctx context.Context, p domain.Principal, id uuid.UUID, kind domain.PayNowKind) (string, error) {
	if kind == domain.PayNowNone || !kind.Valid() {
		return "", domain.InvalidInput("pay_now must be DEPOSIT or FULL")
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return "", lookupErr(err, "appointment")
	}
	if p.Role != domain.RoleClient || appt.ClientID != p.ID {
		return "", domain.Forbidden("only the booking client can pay for this appointment")
	}
	if appt.State != domain.StatePending {
		return "", domain.InvalidState("only pending appointments can be paid online, this one is %s", strings.ToLower(string(appt.State)))
	}
	svc, err := s.store.GetService(ctx, appt.ServiceID)
	if err != nil {
		return "", lookupErr(err, "service")
	}
	amount := svc.Price
	if kind == domain.PayNowDeposit {
		barber, err := s.store.GetBarber(ctx, appt.StaffID)
		if err != nil {
			return "", lookupErr(err, "barber")
		}
		amount = s.depositFor(barber)
		if amount.GreaterThan(svc.Price) {
			amount = svc.Price
		}
	}

	// The deadline is stored before the link exists so the expiry sweep can
	// never delete a booking that still has a payable link.
	deadline := s.now().Add(s.cfg.LinkTTL)
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.LockAppointment(ctx, appt.ID)
		if err != nil {
			return lookupErr(err, "appointment")
		}
		if locked.State != domain.StatePending {
			return domain.InvalidState("only pending appointments can be paid online, this one is %s", strings.ToLower(string(locked.State)))
		}
		if locked.PaymentDeadline != nil && !locked.PaymentDeadline.Before(deadline) {
			return nil
		}
		locked.PaymentDeadline = &deadline
		return tx.UpdateAppointment(ctx, &locked)
	})
	if err != nil {
		return "", fmt.Errorf("stamp payment deadline: %w", err)
	}

	url, err := s.provider.CreatePaymentLink(ctx, payments.LinkRequest{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		Kind:          kind,
		Title:         svc.Name,
		Amount:        amount,
		ExpiresAt:     deadline,
	})
	if err != nil {
		return "", fmt.Errorf("create payment link: %w", err)
	}
	s.log.Info(
		"payment link created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("amount", amount.StringFixed(2)),
		slog.Time("payment_deadline", deadline),
	)
	return url, nil
}

func (s *Service) depositFor(b domain.Barber) decimal.Decimal {
	if b.DepositAmount.Valid && b.DepositAmount.Decimal.IsPositive() {
		return b.DepositAmount.Decimal
	}
	return s.cfg.DefaultDeposit
}
