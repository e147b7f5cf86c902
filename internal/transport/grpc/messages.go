package grpc

import (
	"time"

	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
)

type Appointment struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"client_id"`
	StaffID    string          `json:"staff_id"`
	ServiceID  string          `json:"service_id"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	State      string          `json:"state"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type AgendaBlock struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	StaffID   string    `json:"staff_id,omitempty"`
	General   bool      `json:"general"`
	Reason    string    `json:"reason,omitempty"`
}

type Movement struct {
	ID            string          `json:"id"`
	Direction     string          `json:"direction"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	Description   string          `json:"description,omitempty"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	TaggedUserID  string          `json:"tagged_user_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreateAppointmentRequest struct {
	ClientID  string     `json:"client_id"`
	StaffID   string     `json:"staff_id"`
	ServiceID string     `json:"service_id"`
	StartTime *time.Time `json:"start_time"`
	// PayNow is DEPOSIT or FULL to receive a checkout link with the booking.
	PayNow string `json:"pay_now,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type CreateAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
	PaymentURL  string      `json:"payment_url,omitempty"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string     `json:"appointment_id"`
	StartTime     *time.Time `json:"start_time"`
}

type AppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type CompleteAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Method        string `json:"method,omitempty"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

// ListAppointmentsRequest selects one projection: a local date, an instant
// range, a client's bookings or a staff member's bookings, checked in that order.
type ListAppointmentsRequest struct {
	Date     string     `json:"date,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	ClientID string     `json:"client_id,omitempty"`
	StaffID  string     `json:"staff_id,omitempty"`
	States   []string   `json:"states,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type ListOccupiedSlotsRequest struct {
	StaffID string `json:"staff_id"`
	Date    string `json:"date"`
}

type ListOccupiedSlotsResponse struct {
	Slots []string `json:"slots"`
}

type CreateAgendaBlockRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	StaffID   string     `json:"staff_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

type AgendaBlockResponse struct {
	Block AgendaBlock `json:"block"`
}

type DeleteAgendaBlockRequest struct {
	BlockID string `json:"block_id"`
}

type Empty struct{}

type ListAgendaBlocksRequest struct {
	// Date limits the listing to one local day; empty lists upcoming blocks.
	Date string `json:"date,omitempty"`
}

type ListAgendaBlocksResponse struct {
	Blocks []AgendaBlock `json:"blocks"`
}

type RecordManualMovementRequest struct {
	TaggedUserID string          `json:"tagged_user_id,omitempty"`
	Direction    string          `json:"direction"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method,omitempty"`
	Description  string          `json:"description,omitempty"`
}

type MovementResponse struct {
	Movement Movement `json:"movement"`
}

// GetCentralLedgerRequest pages backwards past the movement at (Before,
// BeforeID); pass back the previous response's next_before and next_before_id.
type GetCentralLedgerRequest struct {
	Before   *time.Time `json:"before,omitempty"`
	BeforeID string     `json:"before_id,omitempty"`
}

type GetCentralLedgerResponse struct {
	AccountID    string          `json:"account_id,omitempty"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Balance      decimal.Decimal `json:"balance"`
	Movements    []Movement      `json:"movements"`
	NextBefore   *time.Time      `json:"next_before,omitempty"`
	NextBeforeID string          `json:"next_before_id,omitempty"`
}

type GetMyWalletRequest struct {
	// UserID lets administrators inspect another wallet.
	UserID string `json:"user_id,omitempty"`
}

type GetMyWalletResponse struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Movements []Movement      `json:"movements"`
}

type CreatePaymentLinkRequest struct {
	AppointmentID string `json:"appointment_id"`
	Kind          string `json:"kind"`
}

type CreatePaymentLinkResponse struct {
	URL string `json:"url"`
}

func toAppointment(a domain.Appointment) Appointment {
	return Appointment{
		ID:         a.ID.String(),
		ClientID:   a.ClientID,
		StaffID:    a.StaffID,
		ServiceID:  a.ServiceID.String(),
		StartTime:  a.StartTime.UTC(),
		EndTime:    a.EndTime.UTC(),
		State:      string(a.State),
		AmountPaid: a.AmountPaid,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func toAppointments(in []domain.Appointment) []Appointment {
	out := make([]Appointment, 0, len(in))
	for _, a := range in {
		out = append(out, toAppointment(a))
	}
	return out
}

func toAgendaBlock(b domain.AgendaBlock) AgendaBlock {
	out := AgendaBlock{
		ID:        b.ID.String(),
		StartTime: b.StartTime.UTC(),
		EndTime:   b.EndTime.UTC(),
		General:   b.General(),
		Reason:    b.Reason,
	}
	if b.StaffID != nil {
		out.StaffID = *b.StaffID
	}
	return out
}

func toMovement(m domain.LedgerMovement) Movement {
	out := Movement{
		ID:          m.ID.String(),
		Direction:   string(m.Direction),
		Category:    string(m.Category),
		Amount:      m.Amount,
		Method:      m.Method,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.AppointmentID != nil {
		out.AppointmentID = m.AppointmentID.String()
	}
	if m.TaggedUserID != nil {
		out.TaggedUserID = *m.TaggedUserID
	}
	return out
}

func toMovements(in []domain.LedgerMovement) []Movement {
	out := make([]Movement, 0, len(in))
	for _, m := range in {
		out = append(out, toMovement(m))
	}
	return out
}
