package appointments

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
	"barbershop/backend/internal/store"
	"barbershop/backend/internal/timewindow"
)

type Config struct {
	Policy timewindow.Policy
	// DepositRequired makes every new booking wait in PENDING for an online payment.
	DepositRequired bool
	// ClientNotice is the minimum lead time for client-initiated reschedules and cancellations.
	ClientNotice time.Duration
	// SlotStep is the granularity of occupancy marks.
	SlotStep time.Duration
}

type Service struct {
	store  store.Store
	events events.Publisher
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, pub events.Publisher, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.ClientNotice <= 0 {
		cfg.ClientNotice = 12 * time.Hour
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	return &Service{
		store:  st,
		events: pub,
		cfg:    cfg,
		log:    log.With(slog.String("component", "service.appointments")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	ClientID  string
	StaffID   string
	ServiceID uuid.UUID
	Start     time.Time
	PayNow    domain.PayNowKind
	Notes     string
}

func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (domain.Appointment, error) {
	if p.Role == domain.RoleClient && in.ClientID == "" {
		in.ClientID = p.ID
	}
	if err := authorizeCreate(p, in); err != nil {
		return domain.Appointment{}, err
	}
	if err := validateCreate(in); err != nil {
		return domain.Appointment{}, err
	}

	svc, err := s.resolveProfiles(ctx, in)
	if err != nil {
		return domain.Appointment{}, err
	}

	start := in.Start.UTC()
	if err := s.checkStart(start); err != nil {
		return domain.Appointment{}, err
	}
	span := domain.Span{Start: start, End: start.Add(svc.Duration())}

	appt := domain.Appointment{
		ClientID:   in.ClientID,
		StaffID:    in.StaffID,
		ServiceID:  in.ServiceID,
		StartTime:  span.Start,
		EndTime:    span.End,
		State:      s.initialState(in.PayNow),
		AmountPaid: decimal.Zero,
		Notes:      strings.TrimSpace(in.Notes),
	}

	err = s.store.InStaffTransaction(ctx, in.StaffID, func(ctx context.Context, tx store.Tx) error {
		if err := checkSlot(ctx, tx, in.StaffID, span, uuid.Nil); err != nil {
			return err
		}
		return tx.InsertAppointment(ctx, &appt)
	})
	if err != nil {
		return domain.Appointment{}, s.slotErr(err, "create", in.StaffID, span)
	}

	s.log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("staff_id", appt.StaffID),
		slog.String("client_id", appt.ClientID),
		slog.Time("start_time", appt.StartTime),
		slog.String("state", string(appt.State)),
	)
	s.publish(ctx, events.New(events.AppointmentCreated, appt.ID.String(), appt))
	return appt, nil
}

func authorizeCreate(p domain.Principal, in CreateInput) error {
	switch p.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleClient:
		if in.ClientID == p.ID {
			return nil
		}
		return domain.Forbidden("clients can only book for themselves")
	case domain.RoleBarber:
		if in.StaffID == p.ID {
			return nil
		}
		return domain.Forbidden("barbers can only book into their own agenda")
	}
	return domain.Forbidden("unknown role")
}

func validateCreate(in CreateInput) error {
	if in.ClientID == "" {
		return domain.InvalidInput("client_id is required")
	}
	if in.StaffID == "" {
		return domain.InvalidInput("staff_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return domain.InvalidInput("service_id is required")
	}
	if in.Start.IsZero() {
		return domain.InvalidInput("start_time is required")
	}
	if !in.PayNow.Valid() {
		return domain.InvalidInput("pay_now must be DEPOSIT or FULL")
	}
	return nil
}

func (s *Service) resolveProfiles(ctx context.Context, in CreateInput) (domain.Service, error) {
	if _, err := s.store.GetClient(ctx, in.ClientID); err != nil {
		return domain.Service{}, lookupErr(err, "client profile")
	}
	barber, err := s.store.GetBarber(ctx, in.StaffID)
	if err != nil {
		return domain.Service{}, lookupErr(err, "barber")
	}
	if !barber.Active {
		return domain.Service{}, domain.NotFound("barber")
	}
	svc, err := s.store.GetService(ctx, in.ServiceID)
	if err != nil {
		return domain.Service{}, lookupErr(err, "service")
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return domain.Service{}, domain.NotFound("service")
	}
	return svc, nil
}

// checkStart applies the past-booking and business-hours rules, in that order.
func (s *Service) checkStart(start time.Time) error {
	if start.Before(s.now()) {
		return &domain.Error{Kind: domain.KindPastBooking, Message: "cannot book a slot in the past"}
	}
	if !s.cfg.Policy.Contains(start) {
		return &domain.Error{
			Kind:    domain.KindOutsideBusinessHours,
			Message: "the shop is closed at that time; open hours are " + s.cfg.Policy.Describe(),
		}
	}
	return nil
}

func (s *Service) initialState(payNow domain.PayNowKind) domain.AppointmentState {
	if s.cfg.DepositRequired || payNow != domain.PayNowNone {
		return domain.StatePending
	}
	return domain.StateConfirmed
}

// checkSlot rejects span when an agenda block or another active appointment
// of staffID intersects it. Blocks take precedence over appointments.
func checkSlot(ctx context.Context, tx store.Tx, staffID string, span domain.Span, exclude uuid.UUID) error {
	blocks, err := tx.OverlappingBlocks(ctx, span, staffID, true)
	if err != nil {
		return err
	}
	if len(blocks) > 0 {
		return domain.SlotBlocked(blocks[0].Reason)
	}
	taken, err := tx.OverlappingAppointments(ctx, staffID, span, exclude)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return domain.SlotTaken()
	}
	return nil
}

func (s *Service) slotErr(err error, op, staffID string, span domain.Span) error {
	if errors.Is(err, store.ErrConflict) {
		err = domain.SlotTaken()
	}
	if kind := domain.KindOf(err); kind != "" {
		s.log.Info(
			"appointment "+op+" rejected",
			slog.String("kind", string(kind)),
			slog.String("staff_id", staffID),
			slog.Time("start_time", span.Start),
			slog.Time("end_time", span.End),
		)
		return err
	}
	return fmt.Errorf("%s appointment: %w", op, err)
}

func (s *Service) Reschedule(ctx context.Context, p domain.Principal, id uuid.UUID, newStart time.Time) (domain.Appointment, error) {
	current, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, lookupErr(err, "appointment")
	}
	if err := s.authorizeChange(p, current); err != nil {
		return domain.Appointment{}, err
	}
	if newStart.IsZero() {
		return domain.Appointment{}, domain.InvalidInput("new start_time is required")
	}

	start := newStart.UTC()
	if err := s.checkStart(start); err != nil {
		return domain.Appointment{}, err
	}
	span := domain.Span{Start: start, End: start.Add(current.Span().Duration())}

	var out domain.Appointment
	err = s.store.InStaffTransaction(ctx, current.StaffID, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return lookupErr(err, "appointment")
		}
		if err := s.authorizeChange(p, locked); err != nil {
			return err
		}
		if err := checkSlot(ctx, tx, locked.StaffID, span, locked.ID); err != nil {
			return err
		}
		locked.StartTime = span.Start
		locked.EndTime = span.End
		if err := tx.UpdateAppointment(ctx, &locked); err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return domain.Appointment{}, s.slotErr(err, "reschedule", current.StaffID, span)
	}

	s.log.Info(
		"appointment rescheduled",
		slog.String("appointment_id", out.ID.String()),
		slog.String("by", p.ID),
		slog.Time("old_start_time", current.StartTime),
		slog.Time("start_time", out.StartTime),
	)
	s.publish(ctx, events.New(events.AppointmentRescheduled, out.ID.String(), out))
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return lookupErr(err, "appointment")
		}
		if err := s.authorizeChange(p, appt); err != nil {
			return err
		}
		if p.Role == domain.RoleClient {
			pay, err := tx.PaymentForAppointment(ctx, appt.ID)
			switch {
			case err == nil && pay.Approved():
				return &domain.Error{
					Kind:    domain.KindAlreadySettled,
					Message: "this booking is already paid; ask the shop to cancel or reschedule it",
				}
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
		if !domain.CanTransition(appt.State, domain.StateCancelled) {
			return domain.InvalidState("cannot cancel a %s appointment", strings.ToLower(string(appt.State)))
		}
		appt.State = domain.StateCancelled
		if err := tx.UpdateAppointment(ctx, &appt); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return domain.Appointment{}, err
		}
		return domain.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}

	s.log.Info("appointment cancelled", slog.String("appointment_id", out.ID.String()), slog.String("by", p.ID), slog.String("role", string(p.Role)))
	s.publish(ctx, events.New(events.AppointmentCancelled, out.ID.String(), out))
	return out, nil
}

// authorizeChange applies the shared reschedule/cancel guard: ownership,
// then lifecycle, then the client notice window.
func (s *Service) authorizeChange(p domain.Principal, a domain.Appointment) error {
	if !p.CanActOn(a) {
		return domain.Forbidden("only an administrator, the assigned barber or the booking client may change this appointment")
	}
	if a.State.Terminal() {
		return domain.InvalidState("appointment is already %s", strings.ToLower(string(a.State)))
	}
	if p.Role == domain.RoleClient && a.StartTime.Sub(s.now()) < s.cfg.ClientNotice {
		return domain.TooLate(formatNotice(s.cfg.ClientNotice))
	}
	return nil
}

func formatNotice(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", slog.Any("err", err), slog.String("event_type", evt.Type), slog.String("aggregate_id", evt.AggregateID))
	}
}

func lookupErr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(what)
	}
	return err
}
