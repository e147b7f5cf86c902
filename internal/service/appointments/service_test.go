package appointments

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/events"
	"barbershop/backend/internal/store/storetest"
	"barbershop/backend/internal/timewindow"
)

var (
	client1 = domain.Principal{ID: "c1", Role: domain.RoleClient}
	client2 = domain.Principal{ID: "c2", Role: domain.RoleClient}
	barber1 = domain.Principal{ID: "b1", Role: domain.RoleBarber}
	barber2 = domain.Principal{ID: "b2", Role: domain.RoleBarber}
	admin   = domain.Principal{ID: "admin", Role: domain.RoleAdmin}

	haircutID = uuid.MustParse("00000000-0000-0000-0000-000000000101")
)

type fixture struct {
	st        *storetest.Memory
	svc       *Service
	loc       *time.Location
	published []events.Event
}

type recordingPublisher struct {
	mu   sync.Mutex
	f    *fixture
	fail error
}

func (r *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.f.published = append(r.f.published, evts...)
	return r.fail
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	policy, err := timewindow.NewPolicy("America/Argentina/Buenos_Aires", "09:00-14:00,17:00-22:00")
	if err != nil {
		t.Fatalf("NewPolicy error: %v", err)
	}

	st := storetest.NewMemory()
	st.AddClient(domain.Client{UserID: "c1", FullName: "Client One"})
	st.AddClient(domain.Client{UserID: "c2", FullName: "Client Two"})
	st.AddBarber(domain.Barber{UserID: "b1", FullName: "Barber One", Active: true})
	st.AddBarber(domain.Barber{UserID: "b2", FullName: "Barber Two", Active: true})
	st.AddService(domain.Service{ID: haircutID, Name: "Haircut", Price: decimal.NewFromInt(5000), DurationMinutes: 30, Active: true})

	cfg := Config{Policy: policy, ClientNotice: 12 * time.Hour, SlotStep: 30 * time.Minute}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{st: st, loc: policy.Location}
	svc := NewService(st, &recordingPublisher{f: f}, cfg, nil)
	now := time.Date(2023, 12, 31, 9, 0, 0, 0, policy.Location)
	svc.now = func() time.Time { return now }
	f.svc = svc
	return f
}

func (f *fixture) at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, f.loc)
}

func (f *fixture) book(t *testing.T, p domain.Principal, staff string, start time.Time) (domain.Appointment, error) {
	t.Helper()
	return f.svc.Create(context.Background(), p, CreateInput{StaffID: staff, ServiceID: haircutID, Start: start})
}

func TestCreate_BusinessHoursScenario(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.book(t, client1, "b1", f.at(1, 9, 0))
	if err != nil {
		t.Fatalf("first booking error: %v", err)
	}
	if first.State != domain.StateConfirmed {
		t.Fatalf("state = %s, want CONFIRMED", first.State)
	}
	if got := first.EndTime.Sub(first.StartTime); got != 30*time.Minute {
		t.Fatalf("duration = %s, want 30m", got)
	}

	_, err = f.book(t, client2, "b1", f.at(1, 9, 15))
	if !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("overlapping booking err = %v, want slot taken", err)
	}

	_, err = f.book(t, client2, "b1", f.at(1, 8, 0))
	if !errors.Is(err, domain.ErrOutsideBusinessHours) {
		t.Fatalf("08:00 booking err = %v, want outside business hours", err)
	}

	if _, err := f.book(t, client2, "b1", f.at(1, 9, 30)); err != nil {
		t.Fatalf("adjacent booking error: %v", err)
	}
	if _, err := f.book(t, client2, "b2", f.at(1, 9, 0)); err != nil {
		t.Fatalf("other barber same slot error: %v", err)
	}
	if len(f.published) != 3 || f.published[0].Type != events.AppointmentCreated {
		t.Fatalf("published = %v, want 3 created events", f.published)
	}
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		p    domain.Principal
		in   CreateInput
		want error
	}{
		{
			name: "past booking",
			p:    client1,
			in:   CreateInput{StaffID: "b1", ServiceID: haircutID, Start: time.Date(2023, 12, 30, 10, 0, 0, 0, f.loc)},
			want: domain.ErrPastBooking,
		},
		{
			name: "missing client profile",
			p:    domain.Principal{ID: "ghost", Role: domain.RoleClient},
			in:   CreateInput{StaffID: "b1", ServiceID: haircutID, Start: f.at(1, 10, 0)},
			want: domain.ErrNotFound,
		},
		{
			name: "unknown barber",
			p:    client1,
			in:   CreateInput{StaffID: "nobody", ServiceID: haircutID, Start: f.at(1, 10, 0)},
			want: domain.ErrNotFound,
		},
		{
			name: "unknown service",
			p:    client1,
			in:   CreateInput{StaffID: "b1", ServiceID: uuid.New(), Start: f.at(1, 10, 0)},
			want: domain.ErrNotFound,
		},
		{
			name: "client booking for someone else",
			p:    client1,
			in:   CreateInput{ClientID: "c2", StaffID: "b1", ServiceID: haircutID, Start: f.at(1, 10, 0)},
			want: domain.ErrForbidden,
		},
		{
			name: "barber booking into another agenda",
			p:    barber1,
			in:   CreateInput{ClientID: "c1", StaffID: "b2", ServiceID: haircutID, Start: f.at(1, 10, 0)},
			want: domain.ErrForbidden,
		},
		{
			name: "invalid pay now",
			p:    client1,
			in:   CreateInput{StaffID: "b1", ServiceID: haircutID, Start: f.at(1, 10, 0), PayNow: "HALF"},
			want: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.p, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if got := len(f.st.Appointments()); got != 0 {
		t.Fatalf("rejected bookings persisted %d rows", got)
	}
}

func TestCreate_BlockPrecedence(t *testing.T) {
	f := newFixture(t, nil)
	f.st.PutBlock(domain.AgendaBlock{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, f.loc),
		EndTime:   time.Date(2024, 1, 2, 0, 0, 0, 0, f.loc),
		Reason:    "Holiday",
	})
	staff := "b2"
	f.st.PutBlock(domain.AgendaBlock{
		StartTime: f.at(2, 10, 0),
		EndTime:   f.at(2, 12, 0),
		StaffID:   &staff,
		Reason:    "Dentist",
	})

	for _, barber := range []string{"b1", "b2"} {
		for _, start := range []time.Time{f.at(1, 9, 0), f.at(1, 13, 30), f.at(1, 21, 30)} {
			_, err := f.book(t, client1, barber, start)
			if !errors.Is(err, domain.ErrSlotBlocked) {
				t.Fatalf("booking %s at %s err = %v, want slot blocked", barber, start, err)
			}
			if reason := domain.ReasonOf(err); reason != "Holiday" {
				t.Fatalf("reason = %q, want Holiday", reason)
			}
		}
	}

	_, err := f.book(t, client1, "b2", f.at(2, 11, 45))
	if !errors.Is(err, domain.ErrSlotBlocked) || domain.ReasonOf(err) != "Dentist" {
		t.Fatalf("staff block err = %v (reason %q)", err, domain.ReasonOf(err))
	}
	if _, err := f.book(t, client1, "b1", f.at(2, 11, 45)); err != nil {
		t.Fatalf("staff block leaked to b1: %v", err)
	}
	// Ends exactly when the block starts.
	if _, err := f.book(t, client1, "b2", f.at(2, 9, 30)); err != nil {
		t.Fatalf("booking touching block start: %v", err)
	}
}

func TestCreate_InitialState(t *testing.T) {
	t.Run("pay now leaves booking pending", func(t *testing.T) {
		f := newFixture(t, nil)
		a, err := f.svc.Create(context.Background(), client1, CreateInput{StaffID: "b1", ServiceID: haircutID, Start: f.at(1, 10, 0), PayNow: domain.PayNowDeposit})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if a.State != domain.StatePending {
			t.Fatalf("state = %s, want PENDING", a.State)
		}
	})

	t.Run("deposit required leaves booking pending", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.DepositRequired = true })
		a, err := f.book(t, client1, "b1", f.at(1, 10, 0))
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if a.State != domain.StatePending {
			t.Fatalf("state = %s, want PENDING", a.State)
		}
	})
}

func TestCreate_NoDoubleBookingUnderConcurrency(t *testing.T) {
	f := newFixture(t, nil)
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := client1
			if i%2 == 1 {
				p = client2
			}
			// Half of the requests target an overlapping, not identical, start.
			start := f.at(1, 10, 0)
			if i%3 == 0 {
				start = f.at(1, 10, 15)
			}
			_, err := f.svc.Create(context.Background(), p, CreateInput{StaffID: "b1", ServiceID: haircutID, Start: start})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || taken != n-1 {
		t.Fatalf("succeeded = %d, taken = %d; want 1 and %d", succeeded, taken, n-1)
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	own, err := f.book(t, client1, "b1", f.at(1, 10, 0))
	if err != nil {
		t.Fatalf("book error: %v", err)
	}
	other, err := f.book(t, client2, "b1", f.at(1, 11, 0))
	if err != nil {
		t.Fatalf("book error: %v", err)
	}

	t.Run("overlapping its own old range is allowed", func(t *testing.T) {
		moved, err := f.svc.Reschedule(ctx, client1, own.ID, f.at(1, 10, 15))
		if err != nil {
			t.Fatalf("Reschedule error: %v", err)
		}
		if !moved.EndTime.Equal(f.at(1, 10, 45)) {
			t.Fatalf("end = %s, want 10:45", moved.EndTime)
		}
		if moved.State != own.State {
			t.Fatalf("state changed to %s", moved.State)
		}
	})

	t.Run("slot taken by another booking", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, client1, own.ID, f.at(1, 10, 45))
		if !errors.Is(err, domain.ErrSlotTaken) {
			t.Fatalf("err = %v, want slot taken", err)
		}
	})

	t.Run("outside business hours", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, barber1, own.ID, f.at(1, 15, 0))
		if !errors.Is(err, domain.ErrOutsideBusinessHours) {
			t.Fatalf("err = %v, want outside business hours", err)
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		if _, err := f.svc.Reschedule(ctx, client2, own.ID, f.at(1, 12, 0)); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("client2 err = %v, want forbidden", err)
		}
		if _, err := f.svc.Reschedule(ctx, barber2, own.ID, f.at(1, 12, 0)); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("barber2 err = %v, want forbidden", err)
		}
	})

	t.Run("missing appointment", func(t *testing.T) {
		if _, err := f.svc.Reschedule(ctx, admin, uuid.New(), f.at(1, 12, 0)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("client inside notice window", func(t *testing.T) {
		soon := f.st.PutAppointment(domain.Appointment{
			ClientID: "c1", StaffID: "b2", ServiceID: haircutID,
			StartTime: time.Date(2023, 12, 31, 15, 0, 0, 0, f.loc),
			EndTime:   time.Date(2023, 12, 31, 15, 30, 0, 0, f.loc),
			State:     domain.StateConfirmed,
		})
		_, err := f.svc.Reschedule(ctx, client1, soon.ID, f.at(1, 12, 0))
		if !errors.Is(err, domain.ErrTooLate) {
			t.Fatalf("err = %v, want too late", err)
		}
		if err.Error() != "12 hours notice required" {
			t.Fatalf("message = %q", err.Error())
		}
		if _, err := f.svc.Reschedule(ctx, barber2, soon.ID, f.at(1, 12, 0)); err != nil {
			t.Fatalf("barber reschedule inside window: %v", err)
		}
	})

	t.Run("terminal appointment", func(t *testing.T) {
		if _, err := f.svc.Cancel(ctx, admin, other.ID); err != nil {
			t.Fatalf("Cancel error: %v", err)
		}
		_, err := f.svc.Reschedule(ctx, admin, other.ID, f.at(1, 12, 0))
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("err = %v, want invalid state", err)
		}
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("client inside notice window", func(t *testing.T) {
		f := newFixture(t, nil)
		soon := f.st.PutAppointment(domain.Appointment{
			ClientID: "c1", StaffID: "b1", ServiceID: haircutID,
			StartTime: time.Date(2023, 12, 31, 15, 0, 0, 0, f.loc),
			EndTime:   time.Date(2023, 12, 31, 15, 30, 0, 0, f.loc),
			State:     domain.StateConfirmed,
		})
		_, err := f.svc.Cancel(ctx, client1, soon.ID)
		if !errors.Is(err, domain.ErrTooLate) {
			t.Fatalf("err = %v, want too late", err)
		}
	})

	t.Run("client cannot cancel a paid booking", func(t *testing.T) {
		f := newFixture(t, nil)
		a, err := f.book(t, client1, "b1", f.at(1, 10, 0))
		if err != nil {
			t.Fatalf("book error: %v", err)
		}
		f.st.PutPayment(domain.Payment{
			ExternalPaymentID: "pi_1", AppointmentID: a.ID,
			GrossAmount: decimal.NewFromInt(2000), NetAmount: decimal.NewFromInt(1900),
			Status: domain.PaymentStatusApproved,
		})

		if _, err := f.svc.Cancel(ctx, client1, a.ID); !errors.Is(err, domain.ErrAlreadySettled) {
			t.Fatalf("err = %v, want already settled", err)
		}
		cancelled, err := f.svc.Cancel(ctx, barber1, a.ID)
		if err != nil {
			t.Fatalf("barber cancel error: %v", err)
		}
		if cancelled.State != domain.StateCancelled {
			t.Fatalf("state = %s, want CANCELLED", cancelled.State)
		}
	})

	t.Run("cancelled slot frees the agenda and cannot be revived", func(t *testing.T) {
		f := newFixture(t, nil)
		a, err := f.book(t, client1, "b1", f.at(1, 10, 0))
		if err != nil {
			t.Fatalf("book error: %v", err)
		}
		if _, err := f.svc.Cancel(ctx, client1, a.ID); err != nil {
			t.Fatalf("Cancel error: %v", err)
		}
		if _, err := f.svc.Cancel(ctx, admin, a.ID); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("second cancel err = %v, want invalid state", err)
		}
		if _, err := f.book(t, client2, "b1", f.at(1, 10, 0)); err != nil {
			t.Fatalf("rebooking freed slot: %v", err)
		}
	})

	t.Run("completed appointment stays completed", func(t *testing.T) {
		f := newFixture(t, nil)
		done := f.st.PutAppointment(domain.Appointment{
			ClientID: "c1", StaffID: "b1", ServiceID: haircutID,
			StartTime: f.at(1, 10, 0), EndTime: f.at(1, 10, 30),
			State: domain.StateCompleted,
		})
		if _, err := f.svc.Cancel(ctx, admin, done.ID); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("err = %v, want invalid state", err)
		}
		got, err := f.st.GetAppointment(ctx, done.ID)
		if err != nil {
			t.Fatalf("GetAppointment error: %v", err)
		}
		if got.State != domain.StateCompleted {
			t.Fatalf("state = %s, want COMPLETED", got.State)
		}
	})
}

func TestQueryOccupied(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.book(t, client1, "b1", f.at(1, 9, 0)); err != nil {
		t.Fatalf("book error: %v", err)
	}
	gone, err := f.book(t, client2, "b1", f.at(1, 11, 0))
	if err != nil {
		t.Fatalf("book error: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, admin, gone.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := f.book(t, client2, "b2", f.at(1, 12, 0)); err != nil {
		t.Fatalf("book error: %v", err)
	}
	staff := "b1"
	f.st.PutBlock(domain.AgendaBlock{StartTime: f.at(1, 20, 0), EndTime: f.at(1, 21, 0), StaffID: &staff, Reason: "Training"})

	marks, err := f.svc.QueryOccupied(ctx, "b1", "2024-01-01")
	if err != nil {
		t.Fatalf("QueryOccupied error: %v", err)
	}
	want := []string{"09:00", "20:00", "20:30"}
	if !reflect.DeepEqual(marks, want) {
		t.Fatalf("marks = %v, want %v", marks, want)
	}

	if _, err := f.svc.QueryOccupied(ctx, "b1", "2024/01/01"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad date err = %v, want invalid input", err)
	}
}

func TestQueries_Authorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	late, err := f.book(t, client1, "b1", f.at(1, 12, 0))
	if err != nil {
		t.Fatalf("book error: %v", err)
	}
	early, err := f.book(t, client1, "b1", f.at(1, 9, 0))
	if err != nil {
		t.Fatalf("book error: %v", err)
	}
	if _, err := f.book(t, client2, "b2", f.at(1, 9, 0)); err != nil {
		t.Fatalf("book error: %v", err)
	}

	mine, err := f.svc.QueryByClient(ctx, client1, "")
	if err != nil {
		t.Fatalf("QueryByClient error: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != early.ID || mine[1].ID != late.ID {
		t.Fatalf("QueryByClient = %v, want [early late]", mine)
	}
	if _, err := f.svc.QueryByClient(ctx, client2, "c1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign client err = %v, want forbidden", err)
	}

	agenda, err := f.svc.QueryByDate(ctx, barber1, "2024-01-01", "")
	if err != nil {
		t.Fatalf("QueryByDate error: %v", err)
	}
	if len(agenda) != 2 {
		t.Fatalf("barber agenda len = %d, want 2", len(agenda))
	}
	if _, err := f.svc.QueryByDate(ctx, barber1, "2024-01-01", "b2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign agenda err = %v, want forbidden", err)
	}
	all, err := f.svc.QueryByDate(ctx, admin, "2024-01-01", "")
	if err != nil {
		t.Fatalf("admin QueryByDate error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin agenda len = %d, want 3", len(all))
	}
	if _, err := f.svc.QueryByRange(ctx, client1, f.at(1, 0, 0), f.at(2, 0, 0), ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("client range err = %v, want forbidden", err)
	}

	pending, err := f.svc.QueryByStaff(ctx, barber1, "", domain.StatePending)
	if err != nil {
		t.Fatalf("QueryByStaff error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending len = %d, want 0", len(pending))
	}

	if _, err := f.svc.Get(ctx, client2, early.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("Get by stranger err = %v, want forbidden", err)
	}
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.events = &recordingPublisher{f: f, fail: errors.New("broker down")}

	if _, err := f.book(t, client1, "b1", f.at(1, 10, 0)); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(f.st.Appointments()) != 1 {
		t.Fatalf("booking not persisted")
	}
}
