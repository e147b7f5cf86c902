package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"barbershop/backend/internal/auth"
	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/service/agenda"
	"barbershop/backend/internal/service/appointments"
	"barbershop/backend/internal/service/cashbox"
)

type Server struct {
	scheduling schedulingService
	agenda     agendaService
	cashbox    cashboxService
	log        *slog.Logger
}

var _ BarbershopServer = (*Server)(nil)

type schedulingService interface {
	Create(ctx context.Context, p domain.Principal, in appointments.CreateInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, p domain.Principal, id uuid.UUID, newStart time.Time) (domain.Appointment, error)
	Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error)
	QueryOccupied(ctx context.Context, staffID, date string) ([]string, error)
	QueryByRange(ctx context.Context, p domain.Principal, from, to time.Time, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error)
	QueryByDate(ctx context.Context, p domain.Principal, date, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error)
	QueryByClient(ctx context.Context, p domain.Principal, clientID string, states ...domain.AppointmentState) ([]domain.Appointment, error)
	QueryByStaff(ctx context.Context, p domain.Principal, staffID string, states ...domain.AppointmentState) ([]domain.Appointment, error)
}

type agendaService interface {
	CreateBlock(ctx context.Context, p domain.Principal, in agenda.CreateBlockInput) (domain.AgendaBlock, error)
	DeleteBlock(ctx context.Context, p domain.Principal, id uuid.UUID) error
	ListUpcoming(ctx context.Context) ([]domain.AgendaBlock, error)
	ListByDate(ctx context.Context, date string) ([]domain.AgendaBlock, error)
}

type cashboxService interface {
	Complete(ctx context.Context, p domain.Principal, id uuid.UUID, method string) (domain.Appointment, error)
	RecordManualMovement(ctx context.Context, p domain.Principal, in cashbox.ManualMovementInput) (domain.LedgerMovement, error)
	CentralView(ctx context.Context, p domain.Principal, after cashbox.Cursor) (cashbox.CentralLedger, error)
	WalletView(ctx context.Context, p domain.Principal, userID string) (cashbox.Wallet, error)
	CreatePaymentLink(ctx context.Context, p domain.Principal, id uuid.UUID, kind domain.PayNowKind) (string, error)
}

func NewServer(sched schedulingService, blocks agendaService, cash cashboxService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		scheduling: sched,
		agenda:     blocks,
		cashbox:    cash,
		log:        log.With(slog.String("component", "grpc.barbershop")),
	}
}

func (s *Server) rpcLog(ctx context.Context, rpc string) *slog.Logger {
	log := s.log.With(slog.String("rpc", rpc))
	if id := RequestID(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	return log
}

func caller(ctx context.Context) (domain.Principal, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return domain.Principal{}, status.Error(codes.Unauthenticated, "a valid bearer token is required")
	}
	return p, nil
}

func (s *Server) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	log := s.rpcLog(ctx, "CreateAppointment")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.StartTime == nil {
		return nil, invalid(log, "missing_times", "start_time is required", slog.String("user_id", p.ID))
	}
	serviceID, err := parseID(log, "service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	payNow := domain.PayNowKind(strings.ToUpper(strings.TrimSpace(req.PayNow)))
	if !payNow.Valid() {
		return nil, invalid(log, "invalid_pay_now", "pay_now must be DEPOSIT or FULL", slog.String("pay_now", req.PayNow))
	}

	appt, err := s.scheduling.Create(ctx, p, appointments.CreateInput{
		ClientID:  req.ClientID,
		StaffID:   req.StaffID,
		ServiceID: serviceID,
		Start:     *req.StartTime,
		PayNow:    payNow,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, toStatus(log, "appointment create rejected", err,
			slog.String("user_id", p.ID),
			slog.String("staff_id", req.StaffID),
			slog.Time("start_time", *req.StartTime),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("client_id", appt.ClientID),
		slog.String("staff_id", appt.StaffID),
		slog.Time("start_time", appt.StartTime),
		slog.String("state", string(appt.State)),
	)

	resp := &CreateAppointmentResponse{Appointment: toAppointment(appt)}
	if payNow != domain.PayNowNone && appt.State == domain.StatePending && p.Role == domain.RoleClient {
		// The booking stands even without a link; the client can ask for one later.
		url, err := s.cashbox.CreatePaymentLink(ctx, p, appt.ID, payNow)
		if err != nil {
			log.Warn("payment link failed", slog.Any("err", err), slog.String("appointment_id", appt.ID.String()))
		} else {
			resp.PaymentURL = url
		}
	}
	return resp, nil
}

func (s *Server) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLog(ctx, "RescheduleAppointment")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if req.StartTime == nil {
		return nil, invalid(log, "missing_times", "start_time is required", slog.String("appointment_id", id.String()))
	}

	appt, err := s.scheduling.Reschedule(ctx, p, id, *req.StartTime)
	if err != nil {
		return nil, toStatus(log, "appointment reschedule rejected", err,
			slog.String("appointment_id", id.String()),
			slog.String("user_id", p.ID),
		)
	}

	log.Info(
		"appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *Server) CancelAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLog(ctx, "CancelAppointment")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.scheduling.Cancel(ctx, p, id)
	if err != nil {
		return nil, toStatus(log, "appointment cancel rejected", err,
			slog.String("appointment_id", id.String()),
			slog.String("user_id", p.ID),
		)
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()), slog.String("user_id", p.ID))
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *Server) CompleteAppointment(ctx context.Context, req *CompleteAppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLog(ctx, "CompleteAppointment")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.cashbox.Complete(ctx, p, id, req.Method)
	if err != nil {
		return nil, toStatus(log, "appointment complete rejected", err,
			slog.String("appointment_id", id.String()),
			slog.String("user_id", p.ID),
		)
	}

	log.Info("appointment completed", slog.String("appointment_id", appt.ID.String()), slog.String("user_id", p.ID))
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *Server) GetAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLog(ctx, "GetAppointment")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.scheduling.Get(ctx, p, id)
	if err != nil {
		return nil, toStatus(log, "appointment lookup rejected", err, slog.String("appointment_id", id.String()))
	}
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *Server) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.rpcLog(ctx, "ListAppointments")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	states, err := parseStates(log, req.States)
	if err != nil {
		return nil, err
	}

	var appts []domain.Appointment
	switch {
	case req.Date != "":
		appts, err = s.scheduling.QueryByDate(ctx, p, req.Date, req.StaffID, states...)
	case req.From != nil || req.To != nil:
		if req.From == nil || req.To == nil {
			return nil, invalid(log, "missing_window", "from and to are required together", slog.String("user_id", p.ID))
		}
		appts, err = s.scheduling.QueryByRange(ctx, p, *req.From, *req.To, req.StaffID, states...)
	case req.ClientID != "":
		appts, err = s.scheduling.QueryByClient(ctx, p, req.ClientID, states...)
	case req.StaffID != "":
		appts, err = s.scheduling.QueryByStaff(ctx, p, req.StaffID, states...)
	case p.Role == domain.RoleClient:
		appts, err = s.scheduling.QueryByClient(ctx, p, p.ID, states...)
	case p.Role == domain.RoleBarber:
		appts, err = s.scheduling.QueryByStaff(ctx, p, p.ID, states...)
	default:
		return nil, invalid(log, "missing_selector", "one of date, from/to, client_id or staff_id is required", slog.String("user_id", p.ID))
	}
	if err != nil {
		return nil, toStatus(log, "appointments list rejected", err, slog.String("user_id", p.ID))
	}

	log.Debug("appointments listed", slog.String("user_id", p.ID), slog.Int("count", len(appts)))
	return &ListAppointmentsResponse{Appointments: toAppointments(appts)}, nil
}

func (s *Server) ListOccupiedSlots(ctx context.Context, req *ListOccupiedSlotsRequest) (*ListOccupiedSlotsResponse, error) {
	log := s.rpcLog(ctx, "ListOccupiedSlots")

	if strings.TrimSpace(req.StaffID) == "" {
		return nil, invalid(log, "missing_staff", "staff_id is required")
	}
	slots, err := s.scheduling.QueryOccupied(ctx, req.StaffID, req.Date)
	if err != nil {
		return nil, toStatus(log, "occupied slots rejected", err, slog.String("staff_id", req.StaffID), slog.String("date", req.Date))
	}
	if slots == nil {
		slots = []string{}
	}
	return &ListOccupiedSlotsResponse{Slots: slots}, nil
}

func parseStates(log *slog.Logger, raw []string) ([]domain.AppointmentState, error) {
	states := make([]domain.AppointmentState, 0, len(raw))
	for _, r := range raw {
		st := domain.AppointmentState(strings.ToUpper(strings.TrimSpace(r)))
		if !st.Valid() {
			return nil, invalid(log, "invalid_state", "unknown appointment state "+r)
		}
		states = append(states, st)
	}
	return states, nil
}
