package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

// occupying lists the states shown as busy on the public slot grid.
var occupying = []domain.AppointmentState{domain.StatePending, domain.StateConfirmed, domain.StateCompleted}

// QueryOccupied returns the sorted "HH:MM" marks of staffID's busy slots on date,
// counting non-cancelled appointments and agenda blocks that apply to the staff member.
func (s *Service) QueryOccupied(ctx context.Context, staffID, date string) ([]string, error) {
	if staffID == "" {
		return nil, domain.InvalidInput("staff_id is required")
	}
	day, err := s.cfg.Policy.DayRange(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetBarber(ctx, staffID); err != nil {
		return nil, lookupErr(err, "barber")
	}

	// An appointment can start up to a day earlier and still spill into this one.
	appts, err := s.store.ListAppointments(ctx, store.AppointmentFilter{
		StaffID: staffID,
		From:    day.Start.Add(-24 * time.Hour),
		To:      day.End,
		States:  occupying,
	})
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, store.BlockFilter{Overlapping: day})
	if err != nil {
		return nil, err
	}

	spans := make([]domain.Span, 0, len(appts)+len(blocks))
	for _, a := range appts {
		spans = append(spans, a.Span())
	}
	for _, b := range blocks {
		if b.AppliesTo(staffID) {
			spans = append(spans, b.Span())
		}
	}
	return s.cfg.Policy.OccupiedMarks(day, spans, s.cfg.SlotStep), nil
}

// QueryByRange lists appointments starting in [from, to). Administrators may
// filter by any staff member or none; barbers only see their own agenda.
func (s *Service) QueryByRange(ctx context.Context, p domain.Principal, from, to time.Time, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error) {
	if !to.After(from) {
		return nil, domain.InvalidInput("range end must be after range start")
	}
	switch p.Role {
	case domain.RoleAdmin:
	case domain.RoleBarber:
		if staffID != "" && staffID != p.ID {
			return nil, domain.Forbidden("barbers can only view their own agenda")
		}
		staffID = p.ID
	default:
		return nil, domain.Forbidden("only staff can view the agenda")
	}
	return s.store.ListAppointments(ctx, store.AppointmentFilter{
		StaffID: staffID,
		From:    from.UTC(),
		To:      to.UTC(),
		States:  states,
	})
}

func (s *Service) QueryByDate(ctx context.Context, p domain.Principal, date, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error) {
	day, err := s.cfg.Policy.DayRange(date)
	if err != nil {
		return nil, err
	}
	return s.QueryByRange(ctx, p, day.Start, day.End, staffID, states...)
}

func (s *Service) QueryByClient(ctx context.Context, p domain.Principal, clientID string, states ...domain.AppointmentState) ([]domain.Appointment, error) {
	if clientID == "" && p.Role == domain.RoleClient {
		clientID = p.ID
	}
	if clientID == "" {
		return nil, domain.InvalidInput("client_id is required")
	}
	if !p.IsAdmin() && !(p.Role == domain.RoleClient && p.ID == clientID) {
		return nil, domain.Forbidden("clients can only view their own appointments")
	}
	return s.store.ListAppointments(ctx, store.AppointmentFilter{ClientID: clientID, States: states})
}

func (s *Service) QueryByStaff(ctx context.Context, p domain.Principal, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error) {
	if staffID == "" && p.Role == domain.RoleBarber {
		staffID = p.ID
	}
	if staffID == "" {
		return nil, domain.InvalidInput("staff_id is required")
	}
	if !p.IsAdmin() && !(p.Role == domain.RoleBarber && p.ID == staffID) {
		return nil, domain.Forbidden("barbers can only view their own agenda")
	}
	return s.store.ListAppointments(ctx, store.AppointmentFilter{StaffID: staffID, States: states})
}

func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, lookupErr(err, "appointment")
	}
	if !p.CanActOn(a) {
		return domain.Appointment{}, domain.Forbidden("not your appointment")
	}
	return a, nil
}
