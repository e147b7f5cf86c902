// Package cashbox settles appointment payments and keeps the central cash ledger.
//
// Every real money movement posts against the single central account. Staff
// wallets are never stored: they are folded from the movements tagged to the
// staff member each time they are read.
package cashbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/events"
	"barbershop/backend/internal/payments"
	"barbershop/backend/internal/store"
)

type Config struct {
	// DefaultDeposit applies when the barber has no deposit amount of their own.
	DefaultDeposit decimal.Decimal
	AdminPageSize  int
	WalletPageSize int
	// LinkTTL is how long a checkout link stays payable.
	LinkTTL time.Duration
}

type Service struct {
	store    store.Store
	provider payments.Provider
	events   events.Publisher
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

func NewService(st store.Store, provider payments.Provider, pub events.Publisher, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if provider == nil {
		provider = payments.Disabled{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if !cfg.DefaultDeposit.IsPositive() {
		cfg.DefaultDeposit = decimal.NewFromInt(2000)
	}
	if cfg.AdminPageSize <= 0 {
		cfg.AdminPageSize = 100
	}
	if cfg.WalletPageSize <= 0 {
		cfg.WalletPageSize = 50
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 30 * time.Minute
	}
	return &Service{
		store:    st,
		provider: provider,
		events:   pub,
		cfg:      cfg,
		log:      log.With(slog.String("component", "service.cashbox")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Complete marks a confirmed appointment as delivered and posts whatever the
// client still owes as a booking settlement earned by the barber.
func (s *Service) Complete(ctx context.Context, p domain.Principal, id uuid.UUID, method string) (domain.Appointment, error) {
	if !p.IsAdmin() && p.Role != domain.RoleBarber {
		return domain.Appointment{}, domain.Forbidden("only staff can complete an appointment")
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "cash"
	}

	current, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, lookupErr(err, "appointment")
	}
	svc, err := s.store.GetService(ctx, current.ServiceID)
	if err != nil {
		return domain.Appointment{}, lookupErr(err, "service")
	}

	var (
		out      domain.Appointment
		movement *domain.LedgerMovement
	)
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return lookupErr(err, "appointment")
		}
		if !p.CanActOn(appt) {
			return domain.Forbidden("only an administrator or the assigned barber may complete this appointment")
		}
		if appt.State != domain.StateConfirmed {
			return domain.InvalidState("only confirmed appointments can be completed, this one is %s", strings.ToLower(string(appt.State)))
		}

		paid := decimal.Zero
		pay, err := tx.PaymentForAppointment(ctx, appt.ID)
		switch {
		case err == nil && pay.Approved():
			paid = pay.GrossAmount
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}

		appt.State = domain.StateCompleted
		if err := tx.UpdateAppointment(ctx, &appt); err != nil {
			return err
		}
		out = appt

		remaining := svc.Price.Sub(paid)
		if !remaining.IsPositive() {
			return nil
		}
		staff := appt.StaffID
		apptID := appt.ID
		mv := domain.LedgerMovement{
			Direction:     domain.DirectionIn,
			Category:      domain.CategoryBookingSettlement,
			Amount:        remaining,
			Method:        method,
			Description:   "Settlement of " + svc.Name,
			AppointmentID: &apptID,
			TaggedUserID:  &staff,
		}
		if err := post(ctx, tx, &mv); err != nil {
			return err
		}
		movement = &mv
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return domain.Appointment{}, err
		}
		return domain.Appointment{}, fmt.Errorf("complete appointment: %w", err)
	}

	attrs := []any{
		slog.String("appointment_id", out.ID.String()),
		slog.String("staff_id", out.StaffID),
		slog.String("by", p.ID),
	}
	if movement != nil {
		attrs = append(attrs, slog.String("settled", movement.Amount.StringFixed(2)), slog.String("method", method))
	}
	s.log.Info("appointment completed", attrs...)

	evts := []events.Event{events.New(events.AppointmentCompleted, out.ID.String(), out)}
	if movement != nil {
		evts = append(evts, events.New(events.MovementRecorded, movement.ID.String(), *movement))
	}
	s.publish(ctx, evts...)
	return out, nil
}

type ManualMovementInput struct {
	// TaggedUserID is whose wallet the movement counts towards. Empty tags the caller.
	TaggedUserID string
	Direction    domain.Direction
	Category     domain.Category
	Amount       decimal.Decimal
	Method       string
	Description  string
}

// RecordManualMovement posts a staff-initiated deposit or withdrawal against
// the central account. Outflows may take the balance below zero.
func (s *Service) RecordManualMovement(ctx context.Context, p domain.Principal, in ManualMovementInput) (domain.LedgerMovement, error) {
	switch p.Role {
	case domain.RoleAdmin:
	case domain.RoleBarber:
		if in.TaggedUserID != "" && in.TaggedUserID != p.ID {
			return domain.LedgerMovement{}, domain.Forbidden("barbers can only record movements on their own wallet")
		}
	default:
		return domain.LedgerMovement{}, domain.Forbidden("only staff can record cash movements")
	}
	if in.TaggedUserID == "" {
		in.TaggedUserID = p.ID
	}
	if !in.Direction.Valid() {
		return domain.LedgerMovement{}, domain.InvalidInput("direction must be IN or OUT")
	}
	if !in.Category.Valid() {
		return domain.LedgerMovement{}, domain.InvalidInput("unknown category %q", in.Category)
	}
	if systemCategory(in.Category) {
		return domain.LedgerMovement{}, domain.InvalidInput("category %q is posted by settlements only", in.Category)
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return domain.LedgerMovement{}, domain.InvalidInput("amount must be at least 0.01")
	}

	tagged := in.TaggedUserID
	mv := domain.LedgerMovement{
		Direction:    in.Direction,
		Category:     in.Category,
		Amount:       amount,
		Method:       strings.TrimSpace(in.Method),
		Description:  strings.TrimSpace(in.Description),
		TaggedUserID: &tagged,
	}
	err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return post(ctx, tx, &mv)
	})
	if err != nil {
		return domain.LedgerMovement{}, fmt.Errorf("record movement: %w", err)
	}

	s.log.Info(
		"manual movement recorded",
		slog.String("movement_id", mv.ID.String()),
		slog.String("direction", string(mv.Direction)),
		slog.String("category", string(mv.Category)),
		slog.String("amount", mv.Amount.StringFixed(2)),
		slog.String("tagged_user_id", tagged),
		slog.String("by", p.ID),
	)
	s.publish(ctx, events.New(events.MovementRecorded, mv.ID.String(), mv))
	return mv, nil
}

func systemCategory(c domain.Category) bool {
	switch c {
	case domain.CategoryBookingSettlement, domain.CategoryWebDeposit, domain.CategoryWebFullPayment:
		return true
	}
	return false
}

// post appends mv to the central account and moves the running balance in
// the same transaction. The account row stays locked until commit.
func post(ctx context.Context, tx store.Tx, mv *domain.LedgerMovement) error {
	account, err := tx.LockCentralAccount(ctx)
	if err != nil {
		return fmt.Errorf("lock central account: %w", err)
	}
	mv.AccountID = account.ID
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return tx.SetAccountBalance(ctx, account.ID, account.Balance.Add(mv.Signed()))
}

func (s *Service) publish(ctx context.Context, evts ...events.Event) {
	if err := s.events.Publish(ctx, evts...); err != nil {
		s.log.Warn("event publish failed", slog.Any("err", err), slog.Int("count", len(evts)))
	}
}

func lookupErr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(what)
	}
	return err
}
