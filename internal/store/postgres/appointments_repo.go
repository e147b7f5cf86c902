package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

const (
	constraintNoOverlap  = "appointments_no_overlap"
	constraintActiveSlot = "appointments_active_slot_key"

	shopCalendarKey = "shop-calendar"
)

type Repo struct {
	db *bun.DB
}

var _ store.Store = (*Repo)(nil)

func NewRepo(db *bun.DB) *Repo {
	return &Repo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

var _ store.Tx = calendarTx{}

func (r *Repo) InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx store.Tx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock_shared(hashtext(?))", shopCalendarKey).Exec(ctx); err != nil {
			return err
		}
		if err := lockStaffCalendar(ctx, tx, staffID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
	if isSerializationFailure(err) {
		return store.ErrConflict
	}
	return err
}

func (r *Repo) InShopTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", shopCalendarKey).Exec(ctx); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
	if isSerializationFailure(err) {
		return store.ErrConflict
	}
	return err
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockStaffCalendar(ctx context.Context, tx bun.Tx, staffID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "staff:"+staffID).Exec(ctx)
	return err
}

func (r *Repo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().Model(&a).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *Repo) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.StaffID != "" {
		q = q.Where("staff_id = ?", f.StaffID)
	}
	if !f.From.IsZero() {
		q = q.Where("start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", f.To)
	}
	if len(f.States) > 0 {
		q = q.Where("state IN (?)", bun.In(f.States))
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("state = ?", domain.StatePending).
		Where("created_at < ?", cutoff).
		Where("(payment_deadline IS NULL OR payment_deadline < ?)", cutoff).
		OrderExpr("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) DeletePending(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	// The guard is re-evaluated against the committed row, so a payment link
	// opened after ExpiredPending listed the appointment keeps it alive.
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Where("state = ?", domain.StatePending).
		Where("(payment_deadline IS NULL OR payment_deadline < ?)", cutoff).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r calendarTx) LockAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r calendarTx) OverlappingAppointments(ctx context.Context, staffID string, span domain.Span, exclude uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.tx.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Where("state IN (?)", bun.In(domain.ActiveStates)).
		Where("start_time < ?", span.End).
		Where("end_time > ?", span.Start)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) InsertAppointment(ctx context.Context, appt *domain.Appointment) error {
	_, err := r.tx.NewInsert().Model(appt).Exec(ctx)
	return mapWriteErr(err)
}

func (r calendarTx) UpdateAppointment(ctx context.Context, appt *domain.Appointment) error {
	res, err := r.tx.NewUpdate().
		Model(appt).
		Column("start_time", "end_time", "state", "amount_paid", "notes", "payment_deadline", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return mapWriteErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			if pgErr.ConstraintName == constraintNoOverlap {
				return store.ErrConflict
			}
		case "23505":
			if pgErr.ConstraintName == constraintActiveSlot {
				return store.ErrConflict
			}
			return store.ErrDuplicate
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
