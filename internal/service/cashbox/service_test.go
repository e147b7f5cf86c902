package cashbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/payments"
	"barbershop/backend/internal/store/storetest"
)

var (
	admin   = domain.Principal{ID: "admin", Role: domain.RoleAdmin}
	barber1 = domain.Principal{ID: "b1", Role: domain.RoleBarber}
	barber2 = domain.Principal{ID: "b2", Role: domain.RoleBarber}
	client1 = domain.Principal{ID: "c1", Role: domain.RoleClient}
	client2 = domain.Principal{ID: "c2", Role: domain.RoleClient}

	haircutID = uuid.MustParse("00000000-0000-0000-0000-000000000201")
)

type fakeProvider struct {
	fetchFn func(ctx context.Context, externalID string) (payments.Status, error)
	linkFn  func(ctx context.Context, req payments.LinkRequest) (string, error)
}

func (f *fakeProvider) FetchPaymentStatus(ctx context.Context, externalID string) (payments.Status, error) {
	if f.fetchFn == nil {
		panic("FetchPaymentStatus not configured")
	}
	return f.fetchFn(ctx, externalID)
}

func (f *fakeProvider) CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (string, error) {
	if f.linkFn == nil {
		panic("CreatePaymentLink not configured")
	}
	return f.linkFn(ctx, req)
}

func newTestService(t *testing.T, provider payments.Provider) (*Service, *storetest.Memory) {
	t.Helper()
	st := storetest.NewMemory()
	st.AddClient(domain.Client{UserID: "c1", FullName: "Client One"})
	st.AddBarber(domain.Barber{UserID: "b1", FullName: "Barber One", Active: true})
	st.AddBarber(domain.Barber{
		UserID: "b2", FullName: "Barber Two", Active: true,
		DepositAmount: decimal.NewNullDecimal(decimal.NewFromInt(1500)),
	})
	st.AddService(domain.Service{ID: haircutID, Name: "Haircut", Price: decimal.NewFromInt(5000), DurationMinutes: 30, Active: true})
	return NewService(st, provider, nil, Config{}, nil), st
}

func putAppointment(st *storetest.Memory, staff string, state domain.AppointmentState) domain.Appointment {
	// Each fixture gets its own hour so state changes never trip the overlap check.
	start := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC).Add(time.Duration(len(st.Appointments())) * time.Hour)
	return st.PutAppointment(domain.Appointment{
		ClientID:   "c1",
		StaffID:    staff,
		ServiceID:  haircutID,
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		State:      state,
		AmountPaid: decimal.Zero,
	})
}

func approved(apptID uuid.UUID, gross int64) func(ctx context.Context, externalID string) (payments.Status, error) {
	return func(ctx context.Context, externalID string) (payments.Status, error) {
		return payments.Status{
			ExternalID:        externalID,
			Status:            domain.PaymentStatusApproved,
			ExternalReference: apptID.String(),
			GrossAmount:       decimal.NewFromInt(gross),
			NetAmount:         decimal.NewFromInt(gross).Mul(decimal.RequireFromString("0.95")),
			Method:            "card",
		}, nil
	}
}

func TestOnPaymentConfirmed_SettlesDeposit(t *testing.T) {
	provider := &fakeProvider{}
	svc, st := newTestService(t, provider)
	appt := putAppointment(st, "b1", domain.StatePending)
	provider.fetchFn = approved(appt.ID, 2000)

	outcome, err := svc.OnPaymentConfirmed(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("OnPaymentConfirmed error: %v", err)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %s, want settled", outcome)
	}

	got, err := st.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment error: %v", err)
	}
	if got.State != domain.StateConfirmed || !got.AmountPaid.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("appointment = %s paid %s, want CONFIRMED paid 2000", got.State, got.AmountPaid)
	}

	movements := st.Movements()
	if len(movements) != 1 {
		t.Fatalf("movements = %d, want 1", len(movements))
	}
	mv := movements[0]
	if mv.Category != domain.CategoryWebDeposit || !mv.TaggedTo("c1") || !mv.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("movement = %+v", mv)
	}
	central, err := st.CentralAccount(context.Background())
	if err != nil {
		t.Fatalf("CentralAccount error: %v", err)
	}
	if !central.Balance.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("central balance = %s, want 2000", central.Balance)
	}
}

func TestOnPaymentConfirmed_FullPaymentCategory(t *testing.T) {
	provider := &fakeProvider{}
	svc, st := newTestService(t, provider)
	appt := putAppointment(st, "b1", domain.StatePending)
	provider.fetchFn = approved(appt.ID, 5000)

	if _, err := svc.OnPaymentConfirmed(context.Background(), "pi_full"); err != nil {
		t.Fatalf("OnPaymentConfirmed error: %v", err)
	}
	if got := st.Movements()[0].Category; got != domain.CategoryWebFullPayment {
		t.Fatalf("category = %s, want web-full-payment", got)
	}
}

func TestOnPaymentConfirmed_Idempotent(t *testing.T) {
	provider := &fakeProvider{}
	svc, st := newTestService(t, provider)
	appt := putAppointment(st, "b1", domain.StatePending)
	provider.fetchFn = approved(appt.ID, 2000)
	ctx := context.Background()

	if _, err := svc.OnPaymentConfirmed(ctx, "pi_1"); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}
	outcome, err := svc.OnPaymentConfirmed(ctx, "pi_1")
	if err != nil {
		t.Fatalf("second delivery error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", outcome)
	}

	// Concurrent redeliveries race past the replay guard; the unique payment wins.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.OnPaymentConfirmed(ctx, "pi_1"); err != nil {
				t.Errorf("redelivery error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(st.Payments()); got != 1 {
		t.Fatalf("payments = %d, want 1", got)
	}
	if got := len(st.Movements()); got != 1 {
		t.Fatalf("movements = %d, want 1", got)
	}
	central, _ := st.CentralAccount(ctx)
	if !central.Balance.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("central balance = %s, want 2000", central.Balance)
	}
}

func TestOnPaymentConfirmed_NoOps(t *testing.T) {
	ctx := context.Background()

	t.Run("provider failure", func(t *testing.T) {
		svc, st := newTestService(t, &fakeProvider{
			fetchFn: func(ctx context.Context, externalID string) (payments.Status, error) {
				return payments.Status{}, errors.New("timeout")
			},
		})
		outcome, err := svc.OnPaymentConfirmed(ctx, "pi_x")
		if err != nil || outcome != OutcomeUnavailable {
			t.Fatalf("outcome = %s, err = %v", outcome, err)
		}
		if len(st.Payments()) != 0 {
			t.Fatalf("payment recorded on provider failure")
		}
	})

	t.Run("not approved", func(t *testing.T) {
		svc, st := newTestService(t, nil)
		appt := putAppointment(st, "b1", domain.StatePending)
		svc.provider = &fakeProvider{
			fetchFn: func(ctx context.Context, externalID string) (payments.Status, error) {
				return payments.Status{Status: "processing", ExternalReference: appt.ID.String()}, nil
			},
		}
		outcome, err := svc.OnPaymentConfirmed(ctx, "pi_p")
		if err != nil || outcome != OutcomeNotApproved {
			t.Fatalf("outcome = %s, err = %v", outcome, err)
		}
		got, _ := st.GetAppointment(ctx, appt.ID)
		if got.State != domain.StatePending {
			t.Fatalf("state = %s, want PENDING", got.State)
		}
	})

	t.Run("orphaned payment", func(t *testing.T) {
		svc, st := newTestService(t, &fakeProvider{fetchFn: approved(uuid.New(), 2000)})
		outcome, err := svc.OnPaymentConfirmed(ctx, "pi_o")
		if err != nil || outcome != OutcomeOrphaned {
			t.Fatalf("outcome = %s, err = %v", outcome, err)
		}
		if len(st.Movements()) != 0 {
			t.Fatalf("orphan posted a movement")
		}
	})

	t.Run("cancelled booking keeps its state", func(t *testing.T) {
		provider := &fakeProvider{}
		svc, st := newTestService(t, provider)
		appt := putAppointment(st, "b1", domain.StateCancelled)
		provider.fetchFn = approved(appt.ID, 2000)
		outcome, err := svc.OnPaymentConfirmed(ctx, "pi_c")
		if err != nil || outcome != OutcomeSettled {
			t.Fatalf("outcome = %s, err = %v", outcome, err)
		}
		got, _ := st.GetAppointment(ctx, appt.ID)
		if got.State != domain.StateCancelled {
			t.Fatalf("state = %s, want CANCELLED", got.State)
		}
	})
}

func TestComplete_SettlesRemainingBalance(t *testing.T) {
	provider := &fakeProvider{}
	svc, st := newTestService(t, provider)
	ctx := context.Background()
	appt := putAppointment(st, "b1", domain.StatePending)
	provider.fetchFn = approved(appt.ID, 2000)

	if _, err := svc.OnPaymentConfirmed(ctx, "pi_1"); err != nil {
		t.Fatalf("OnPaymentConfirmed error: %v", err)
	}
	before, err := svc.WalletView(ctx, barber1, "")
	if err != nil {
		t.Fatalf("WalletView error: %v", err)
	}

	done, err := svc.Complete(ctx, barber1, appt.ID, "cash")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if done.State != domain.StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", done.State)
	}

	var settlement *domain.LedgerMovement
	for _, mv := range st.Movements() {
		if mv.Category == domain.CategoryBookingSettlement {
			mv := mv
			settlement = &mv
		}
	}
	if settlement == nil {
		t.Fatalf("no settlement movement posted")
	}
	if !settlement.Amount.Equal(decimal.NewFromInt(3000)) || !settlement.TaggedTo("b1") || settlement.Method != "cash" {
		t.Fatalf("settlement = %+v", settlement)
	}

	after, err := svc.WalletView(ctx, barber1, "")
	if err != nil {
		t.Fatalf("WalletView error: %v", err)
	}
	if delta := after.Balance.Sub(before.Balance); !delta.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("wallet delta = %s, want 3000", delta)
	}
	central, _ := st.CentralAccount(ctx)
	if !central.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("central balance = %s, want 5000", central.Balance)
	}
}

func TestComplete_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid booking settles the full price", func(t *testing.T) {
		svc, st := newTestService(t, nil)
		appt := putAppointment(st, "b1", domain.StateConfirmed)
		if _, err := svc.Complete(ctx, admin, appt.ID, ""); err != nil {
			t.Fatalf("Complete error: %v", err)
		}
		mv := st.Movements()
		if len(mv) != 1 || !mv[0].Amount.Equal(decimal.NewFromInt(5000)) || mv[0].Method != "cash" {
			t.Fatalf("movements = %+v", mv)
		}
	})

	t.Run("fully prepaid booking posts nothing", func(t *testing.T) {
		svc, st := newTestService(t, nil)
		appt := putAppointment(st, "b1", domain.StateConfirmed)
		st.PutPayment(domain.Payment{
			ExternalPaymentID: "pi_f", AppointmentID: appt.ID,
			GrossAmount: decimal.NewFromInt(5000), NetAmount: decimal.NewFromInt(4800),
			Status: domain.PaymentStatusApproved,
		})
		if _, err := svc.Complete(ctx, barber1, appt.ID, "card"); err != nil {
			t.Fatalf("Complete error: %v", err)
		}
		if n := len(st.Movements()); n != 0 {
			t.Fatalf("movements = %d, want 0", n)
		}
	})

	t.Run("authorization and state", func(t *testing.T) {
		svc, st := newTestService(t, nil)
		pending := putAppointment(st, "b1", domain.StatePending)
		confirmed := putAppointment(st, "b1", domain.StateConfirmed)

		if _, err := svc.Complete(ctx, client1, confirmed.ID, "cash"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("client err = %v, want forbidden", err)
		}
		if _, err := svc.Complete(ctx, barber2, confirmed.ID, "cash"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("other barber err = %v, want forbidden", err)
		}
		if _, err := svc.Complete(ctx, admin, pending.ID, "cash"); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("pending err = %v, want invalid state", err)
		}
		if _, err := svc.Complete(ctx, admin, uuid.New(), "cash"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("missing err = %v, want not found", err)
		}
		if _, err := svc.Complete(ctx, admin, confirmed.ID, "cash"); err != nil {
			t.Fatalf("Complete error: %v", err)
		}
		if _, err := svc.Complete(ctx, admin, confirmed.ID, "cash"); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("second complete err = %v, want invalid state", err)
		}
		if n := len(st.Movements()); n != 1 {
			t.Fatalf("movements = %d, want 1", n)
		}
	})
}

func TestRecordManualMovement(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	in, err := svc.RecordManualMovement(ctx, admin, ManualMovementInput{
		TaggedUserID: "b1", Direction: domain.DirectionIn, Category: domain.CategoryAdjustment,
		Amount: decimal.NewFromInt(1000), Description: "float",
	})
	if err != nil {
		t.Fatalf("RecordManualMovement error: %v", err)
	}
	if !in.TaggedTo("b1") {
		t.Fatalf("movement tagged to %v, want b1", in.TaggedUserID)
	}

	out, err := svc.RecordManualMovement(ctx, barber1, ManualMovementInput{
		Direction: domain.DirectionOut, Category: domain.CategoryWithdrawal, Amount: decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("barber withdrawal error: %v", err)
	}
	if !out.TaggedTo("b1") {
		t.Fatalf("barber movement not tagged to self")
	}

	central, _ := st.CentralAccount(ctx)
	if !central.Balance.Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("central balance = %s, want -500", central.Balance)
	}

	tests := []struct {
		name string
		p    domain.Principal
		in   ManualMovementInput
		want error
	}{
		{"client", client1, ManualMovementInput{Direction: domain.DirectionIn, Category: domain.CategoryOther, Amount: decimal.NewFromInt(1)}, domain.ErrForbidden},
		{"barber tagging colleague", barber1, ManualMovementInput{TaggedUserID: "b2", Direction: domain.DirectionIn, Category: domain.CategoryOther, Amount: decimal.NewFromInt(1)}, domain.ErrForbidden},
		{"zero amount", admin, ManualMovementInput{Direction: domain.DirectionIn, Category: domain.CategoryOther, Amount: decimal.Zero}, domain.ErrInvalidInput},
		{"rounds to zero", admin, ManualMovementInput{Direction: domain.DirectionOut, Category: domain.CategorySupplies, Amount: decimal.RequireFromString("0.004")}, domain.ErrInvalidInput},
		{"negative amount", admin, ManualMovementInput{Direction: domain.DirectionOut, Category: domain.CategoryOther, Amount: decimal.NewFromInt(-5)}, domain.ErrInvalidInput},
		{"bad direction", admin, ManualMovementInput{Direction: "SIDEWAYS", Category: domain.CategoryOther, Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"unknown category", admin, ManualMovementInput{Direction: domain.DirectionIn, Category: "lottery", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"settlement category", admin, ManualMovementInput{Direction: domain.DirectionIn, Category: domain.CategoryBookingSettlement, Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordManualMovement(ctx, tt.p, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(st.Movements()); n != 2 {
		t.Fatalf("movements = %d, want 2", n)
	}
}

func TestViews(t *testing.T) {
	svc, st := newTestService(t, nil)
	svc.cfg.AdminPageSize = 2
	svc.cfg.WalletPageSize = 1
	ctx := context.Background()

	if view, err := svc.CentralView(ctx, admin, Cursor{}); err != nil || !view.Account.Balance.IsZero() || len(view.Movements) != 0 {
		t.Fatalf("empty CentralView = %+v, %v", view, err)
	}

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := func(i int, p domain.Principal, dir domain.Direction, amount int64) {
		t.Helper()
		st.SetClock(base.Add(time.Duration(i) * time.Minute))
		if _, err := svc.RecordManualMovement(ctx, p, ManualMovementInput{
			Direction: dir, Category: domain.CategoryOther, Amount: decimal.NewFromInt(amount),
		}); err != nil {
			t.Fatalf("RecordManualMovement error: %v", err)
		}
	}
	record(0, barber1, domain.DirectionIn, 700)
	record(1, barber2, domain.DirectionIn, 300)
	record(2, barber1, domain.DirectionOut, 200)

	first, err := svc.CentralView(ctx, admin, Cursor{})
	if err != nil {
		t.Fatalf("CentralView error: %v", err)
	}
	if !first.Account.Balance.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("balance = %s, want 800", first.Account.Balance)
	}
	if len(first.Movements) != 2 || first.Next.IsZero() {
		t.Fatalf("first page = %d movements, next %v", len(first.Movements), first.Next)
	}
	second, err := svc.CentralView(ctx, admin, first.Next)
	if err != nil {
		t.Fatalf("CentralView page 2 error: %v", err)
	}
	if len(second.Movements) != 1 || !second.Next.IsZero() {
		t.Fatalf("second page = %d movements, next %v", len(second.Movements), second.Next)
	}
	if _, err := svc.CentralView(ctx, barber1, Cursor{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("barber CentralView err = %v, want forbidden", err)
	}

	wallet, err := svc.WalletView(ctx, barber1, "")
	if err != nil {
		t.Fatalf("WalletView error: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("wallet = %s, want 500", wallet.Balance)
	}
	if len(wallet.Movements) != 1 || wallet.Movements[0].Direction != domain.DirectionOut {
		t.Fatalf("wallet page = %+v, want newest movement only", wallet.Movements)
	}
	if _, err := svc.WalletView(ctx, barber1, "b2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign wallet err = %v, want forbidden", err)
	}
	other, err := svc.WalletView(ctx, admin, "b2")
	if err != nil || !other.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("admin view of b2 = %+v, %v", other, err)
	}
}

func TestCentralView_PagesThroughSharedTimestamps(t *testing.T) {
	svc, st := newTestService(t, nil)
	svc.cfg.AdminPageSize = 2
	ctx := context.Background()

	st.SetClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	for i := 0; i < 5; i++ {
		if _, err := svc.RecordManualMovement(ctx, admin, ManualMovementInput{
			Direction: domain.DirectionIn, Category: domain.CategoryOther, Amount: decimal.NewFromInt(int64(i + 1)),
		}); err != nil {
			t.Fatalf("RecordManualMovement error: %v", err)
		}
	}

	seen := map[uuid.UUID]bool{}
	var cursor Cursor
	for page := 0; page < 5; page++ {
		view, err := svc.CentralView(ctx, admin, cursor)
		if err != nil {
			t.Fatalf("CentralView error: %v", err)
		}
		for _, mv := range view.Movements {
			if seen[mv.ID] {
				t.Fatalf("movement %s returned twice", mv.ID)
			}
			seen[mv.ID] = true
		}
		if view.Next.IsZero() {
			break
		}
		cursor = view.Next
	}
	if len(seen) != 5 {
		t.Fatalf("paged through %d movements, want 5", len(seen))
	}
}

func TestCreatePaymentLink_StampsPaymentDeadline(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var got payments.LinkRequest
	provider := &fakeProvider{
		linkFn: func(ctx context.Context, req payments.LinkRequest) (string, error) {
			got = req
			return "https://checkout.example/" + req.AppointmentID.String(), nil
		},
	}
	svc, st := newTestService(t, provider)
	svc.cfg.LinkTTL = time.Hour
	svc.now = func() time.Time { return now }
	appt := putAppointment(st, "b1", domain.StatePending)

	stored := func() domain.Appointment {
		t.Helper()
		a, err := st.GetAppointment(ctx, appt.ID)
		if err != nil {
			t.Fatalf("GetAppointment error: %v", err)
		}
		return a
	}

	if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowDeposit); err != nil {
		t.Fatalf("CreatePaymentLink error: %v", err)
	}
	want := now.Add(time.Hour)
	if !got.ExpiresAt.Equal(want) {
		t.Fatalf("link expires at %s, want %s", got.ExpiresAt, want)
	}
	if d := stored().PaymentDeadline; d == nil || !d.Equal(want) {
		t.Fatalf("payment deadline = %v, want %s", d, want)
	}

	// A later link extends the deadline; an earlier one never shortens it.
	now = now.Add(20 * time.Minute)
	if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowFull); err != nil {
		t.Fatalf("second CreatePaymentLink error: %v", err)
	}
	if d := stored().PaymentDeadline; d == nil || !d.Equal(now.Add(time.Hour)) {
		t.Fatalf("extended deadline = %v", d)
	}
	svc.cfg.LinkTTL = 30 * time.Minute
	if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowFull); err != nil {
		t.Fatalf("third CreatePaymentLink error: %v", err)
	}
	if d := stored().PaymentDeadline; d == nil || !d.Equal(now.Add(time.Hour)) {
		t.Fatalf("deadline moved earlier to %v", d)
	}
}

func TestCreatePaymentLink(t *testing.T) {
	ctx := context.Background()
	var got payments.LinkRequest
	provider := &fakeProvider{
		linkFn: func(ctx context.Context, req payments.LinkRequest) (string, error) {
			got = req
			return "https://checkout.example/" + req.AppointmentID.String(), nil
		},
	}
	svc, st := newTestService(t, provider)

	t.Run("default deposit", func(t *testing.T) {
		appt := putAppointment(st, "b1", domain.StatePending)
		url, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowDeposit)
		if err != nil {
			t.Fatalf("CreatePaymentLink error: %v", err)
		}
		if url == "" || !got.Amount.Equal(decimal.NewFromInt(2000)) || got.Title != "Haircut" {
			t.Fatalf("request = %+v, url %q", got, url)
		}
	})

	t.Run("barber deposit", func(t *testing.T) {
		appt := putAppointment(st, "b2", domain.StatePending)
		if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowDeposit); err != nil {
			t.Fatalf("CreatePaymentLink error: %v", err)
		}
		if !got.Amount.Equal(decimal.NewFromInt(1500)) {
			t.Fatalf("amount = %s, want 1500", got.Amount)
		}
	})

	t.Run("full price", func(t *testing.T) {
		appt := putAppointment(st, "b2", domain.StatePending)
		if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowFull); err != nil {
			t.Fatalf("CreatePaymentLink error: %v", err)
		}
		if !got.Amount.Equal(decimal.NewFromInt(5000)) || got.Kind != domain.PayNowFull {
			t.Fatalf("request = %+v", got)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		pending := putAppointment(st, "b1", domain.StatePending)
		confirmed := putAppointment(st, "b1", domain.StateConfirmed)
		if _, err := svc.CreatePaymentLink(ctx, client2, pending.ID, domain.PayNowFull); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("stranger err = %v, want forbidden", err)
		}
		if _, err := svc.CreatePaymentLink(ctx, client1, confirmed.ID, domain.PayNowFull); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("confirmed err = %v, want invalid state", err)
		}
		if _, err := svc.CreatePaymentLink(ctx, client1, pending.ID, domain.PayNowNone); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("no kind err = %v, want invalid input", err)
		}
	})

	t.Run("provider not configured", func(t *testing.T) {
		svc, st := newTestService(t, nil)
		appt := putAppointment(st, "b1", domain.StatePending)
		if _, err := svc.CreatePaymentLink(ctx, client1, appt.ID, domain.PayNowFull); !errors.Is(err, payments.ErrNotConfigured) {
			t.Fatalf("err = %v, want not configured", err)
		}
	})
}
