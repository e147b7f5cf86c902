package stripepay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"barbershop/backend/internal/domain"
)

func TestStatusFromIntent(t *testing.T) {
	t.Run("succeeded maps to approved", func(t *testing.T) {
		pi := &stripe.PaymentIntent{
			ID:                 "pi_123",
			Status:             stripe.PaymentIntentStatusSucceeded,
			Amount:             200000,
			AmountReceived:     200000,
			Metadata:           map[string]string{"appointment_id": " 0190c0de-0000-7000-8000-000000000001 "},
			PaymentMethodTypes: []string{"card"},
			LatestCharge: &stripe.Charge{
				BalanceTransaction: &stripe.BalanceTransaction{Net: 188000},
			},
		}
		got := statusFromIntent(pi)
		if !got.Approved() || got.Status != domain.PaymentStatusApproved {
			t.Fatalf("status = %q, want approved", got.Status)
		}
		if !got.GrossAmount.Equal(decimal.NewFromInt(2000)) {
			t.Fatalf("gross = %s, want 2000", got.GrossAmount)
		}
		if !got.NetAmount.Equal(decimal.NewFromInt(1880)) {
			t.Fatalf("net = %s, want 1880", got.NetAmount)
		}
		id, err := got.AppointmentID()
		if err != nil || id.String() != "0190c0de-0000-7000-8000-000000000001" {
			t.Fatalf("appointment id = %v, %v", id, err)
		}
	})

	t.Run("other statuses pass through", func(t *testing.T) {
		pi := &stripe.PaymentIntent{ID: "pi_9", Status: stripe.PaymentIntentStatusProcessing, Amount: 1050}
		got := statusFromIntent(pi)
		if got.Approved() {
			t.Fatalf("processing intent reported approved")
		}
		if got.Status != "processing" {
			t.Fatalf("status = %q", got.Status)
		}
		if !got.NetAmount.Equal(decimal.RequireFromString("10.50")) {
			t.Fatalf("net = %s, want gross fallback 10.50", got.NetAmount)
		}
		if _, err := got.AppointmentID(); err == nil {
			t.Fatalf("expected parse error for missing reference")
		}
	})
}

func TestMinorUnits(t *testing.T) {
	if got := toMinorUnits(decimal.RequireFromString("2000")); got != 200000 {
		t.Fatalf("toMinorUnits(2000) = %d", got)
	}
	if got := toMinorUnits(decimal.RequireFromString("12.345")); got != 1235 {
		t.Fatalf("toMinorUnits(12.345) = %d", got)
	}
	if got := fromMinorUnits(1999); !got.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("fromMinorUnits(1999) = %s", got)
	}
}
