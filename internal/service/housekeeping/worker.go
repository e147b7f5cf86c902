// Package housekeeping expires abandoned bookings so their slots return to the agenda.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"barbershop/backend/internal/events"
	"barbershop/backend/internal/store"
)

type Config struct {
	Interval time.Duration
	// Grace is how long a PENDING booking may wait for its payment, counted
	// from creation and from the close of its latest payment link.
	Grace     time.Duration
	BatchSize int
}

type Worker struct {
	store  store.Store
	events events.Publisher
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

// Report summarises one sweep.
type Report struct {
	Scanned int
	Deleted int
	Failed  int
}

func NewWorker(st store.Store, pub events.Publisher, cfg Config, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		store:  st,
		events: pub,
		cfg:    cfg,
		log:    log.With(slog.String("component", "housekeeping")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("expiry sweep started", slog.Duration("interval", w.cfg.Interval), slog.Duration("grace", w.cfg.Grace))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error("expiry sweep failed", slog.Any("err", err))
			}
		}
	}
}

// RunOnce deletes up to one batch of PENDING appointments older than the
// grace window. A booking with a checkout link is kept until the link has
// been closed for the grace window too. A row that fails to delete is logged and skipped; only a
// failure to list candidates is returned.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	cutoff := w.now().Add(-w.cfg.Grace)
	expired, err := w.store.ExpiredPending(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(expired)}
	var evts []events.Event
	for _, appt := range expired {
		if ctx.Err() != nil {
			break
		}
		deleted, err := w.store.DeletePending(ctx, appt.ID, cutoff)
		if err != nil {
			report.Failed++
			w.log.Warn("expire appointment failed", slog.Any("err", err), slog.String("appointment_id", appt.ID.String()))
			continue
		}
		// Confirmed, removed or given a fresh payment link since it was listed.
		if !deleted {
			continue
		}
		report.Deleted++
		evts = append(evts, events.New(events.AppointmentExpired, appt.ID.String(), appt))
	}

	if report.Deleted > 0 || report.Failed > 0 {
		w.log.Info(
			"expiry sweep finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("deleted", report.Deleted),
			slog.Int("failed", report.Failed),
			slog.Time("cutoff", cutoff),
		)
	}
	if len(evts) > 0 {
		if err := w.events.Publish(ctx, evts...); err != nil {
			w.log.Warn("event publish failed", slog.Any("err", err), slog.Int("count", len(evts)))
		}
	}
	return report, nil
}
