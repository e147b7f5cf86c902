// Package stripepay adapts Stripe payment intents and checkout sessions to payments.Provider.
package stripepay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/payments"
)

const metadataAppointmentID = "appointment_id"

type Config struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	// LinkTTL is how long a checkout link stays payable. Stripe accepts 30m to 24h.
	LinkTTL time.Duration
}

type Provider struct {
	api *client.API
	cfg Config
	log *slog.Logger
	now func() time.Time
}

var _ payments.Provider = (*Provider)(nil)

func NewProvider(cfg Config, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "ars"
	}
	if cfg.LinkTTL < 30*time.Minute {
		cfg.LinkTTL = 30 * time.Minute
	}
	return &Provider{
		api: client.New(cfg.SecretKey, nil),
		cfg: cfg,
		log: log.With(slog.String("component", "payments.stripe")),
		now: time.Now,
	}
}

func (p *Provider) FetchPaymentStatus(ctx context.Context, externalID string) (payments.Status, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")

	pi, err := p.api.PaymentIntents.Get(externalID, params)
	if err != nil {
		return payments.Status{}, fmt.Errorf("stripe: get payment intent %s: %w", externalID, err)
	}
	return statusFromIntent(pi), nil
}

func (p *Provider) CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (string, error) {
	amount := toMinorUnits(req.Amount)
	if amount <= 0 {
		return "", fmt.Errorf("stripe: non-positive amount %s", req.Amount)
	}
	title := req.Title
	if title == "" {
		title = "Barbershop booking"
	}
	if req.Kind == domain.PayNowDeposit {
		title += " (deposit)"
	}
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(p.cfg.LinkTTL)
	}
	metadata := map[string]string{
		metadataAppointmentID: req.AppointmentID.String(),
		"pay_now":             string(req.Kind),
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.cfg.SuccessURL),
		CancelURL:         stripe.String(p.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.ClientID),
		ExpiresAt:         stripe.Int64(expiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.cfg.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	params.Context = ctx
	// One session per appointment, kind and deadline; retries of the same call reuse it.
	params.IdempotencyKey = stripe.String(fmt.Sprintf("checkout:%s:%s:%d", req.AppointmentID, req.Kind, expiresAt.Unix()))

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	p.log.Info(
		"checkout session created",
		slog.String("session_id", sess.ID),
		slog.String("appointment_id", req.AppointmentID.String()),
		slog.String("amount", req.Amount.StringFixed(2)),
	)
	return sess.URL, nil
}

func statusFromIntent(pi *stripe.PaymentIntent) payments.Status {
	out := payments.Status{
		ExternalID:        pi.ID,
		Status:            string(pi.Status),
		ExternalReference: strings.TrimSpace(pi.Metadata[metadataAppointmentID]),
		Method:            "card",
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		out.Status = domain.PaymentStatusApproved
	}

	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}
	out.GrossAmount = fromMinorUnits(received)
	out.NetAmount = out.GrossAmount
	if pi.LatestCharge != nil && pi.LatestCharge.BalanceTransaction != nil {
		out.NetAmount = fromMinorUnits(pi.LatestCharge.BalanceTransaction.Net)
	}
	if len(pi.PaymentMethodTypes) > 0 {
		out.Method = pi.PaymentMethodTypes[0]
	}
	return out
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
