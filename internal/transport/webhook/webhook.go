// Package webhook serves the HTTP side of the server: payment provider
// notifications and a liveness check.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"barbershop/backend/internal/service/cashbox"
)

const maxBodyBytes = 1 << 20

type settler interface {
	OnPaymentConfirmed(ctx context.Context, externalID string) (cashbox.Outcome, error)
}

type Config struct {
	// Secret is the endpoint signing secret; empty disables the endpoint.
	Secret    string
	Tolerance time.Duration
}

type Handler struct {
	settler settler
	cfg     Config
	log     *slog.Logger
}

func NewHandler(s settler, cfg Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	return &Handler{
		settler: s,
		cfg:     cfg,
		log:     log.With(slog.String("component", "http.webhook")),
	}
}

// NewRouter mounts the webhook and health routes and wraps them for tracing.
func NewRouter(h *Handler) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/webhooks/stripe", h.Stripe)

	return otelhttp.NewHandler(router, "barbershop.http")
}

// Stripe verifies the notification signature and hands succeeded payments to
// settlement. Settlement no-ops (replays, unapproved or orphaned payments)
// are acknowledged with a 200. A store failure answers 500 so the provider
// redelivers; settlement is idempotent, so the retry is safe.
func (h *Handler) Stripe(c *gin.Context) {
	if strings.TrimSpace(h.cfg.Secret) == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe webhook not configured"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.cfg.Secret, h.cfg.Tolerance)
	if err != nil {
		h.log.Warn("stripe signature rejected", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	log := h.log.With(slog.String("provider_event_id", evt.ID), slog.String("event_type", string(evt.Type)))

	paymentID := paymentIntentID(log, evt)
	if paymentID == "" {
		log.Debug("stripe event ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	outcome, err := h.settler.OnPaymentConfirmed(c.Request.Context(), paymentID)
	if err != nil {
		log.Error("payment settlement failed", slog.Any("err", err), slog.String("payment_id", paymentID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		return
	}

	log.Info("stripe event handled", slog.String("payment_id", paymentID), slog.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

// paymentIntentID returns the payment the event settles, or "" for event
// types settlement does not care about.
func paymentIntentID(log *slog.Logger, evt stripe.Event) string {
	switch evt.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			log.Error("invalid payment intent payload", slog.Any("err", err))
			return ""
		}
		return pi.ID
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			log.Error("invalid checkout session payload", slog.Any("err", err))
			return ""
		}
		if session.PaymentIntent == nil {
			log.Warn("checkout session without payment intent", slog.String("session_id", session.ID))
			return ""
		}
		return session.PaymentIntent.ID
	}
	return ""
}
