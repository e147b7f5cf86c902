package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

func (r *Repo) FindPaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.NewSelect().Model(&p).Where("external_payment_id = ?", externalID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Payment{}, notFound(err)
	}
	return p, nil
}

func (r *Repo) CentralAccount(ctx context.Context) (domain.LedgerAccount, error) {
	var a domain.LedgerAccount
	err := r.db.NewSelect().Model(&a).Where("code = ?", domain.CentralAccountCode).Limit(1).Scan(ctx)
	if err != nil {
		return domain.LedgerAccount{}, notFound(err)
	}
	return a, nil
}

func (r *Repo) ListMovements(ctx context.Context, f store.MovementFilter) ([]domain.LedgerMovement, error) {
	var rows []domain.LedgerMovement
	q := r.db.NewSelect().Model(&rows)
	if f.AccountID != uuid.Nil {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.TaggedUserID != "" {
		q = q.Where("tagged_user_id = ?", f.TaggedUserID)
	}
	switch {
	case f.Before.IsZero():
	case f.BeforeID != uuid.Nil:
		q = q.Where("(created_at, id) < (?, ?)", f.Before, f.BeforeID)
	default:
		q = q.Where("created_at < ?", f.Before)
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) PaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	var p domain.Payment
	err := r.tx.NewSelect().Model(&p).Where("external_payment_id = ?", externalID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Payment{}, notFound(err)
	}
	return p, nil
}

func (r calendarTx) PaymentForAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Payment, error) {
	var p domain.Payment
	err := r.tx.NewSelect().Model(&p).Where("appointment_id = ?", appointmentID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Payment{}, notFound(err)
	}
	return p, nil
}

func (r calendarTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.tx.NewInsert().Model(p).Exec(ctx)
	return mapWriteErr(err)
}

func (r calendarTx) LockCentralAccount(ctx context.Context) (domain.LedgerAccount, error) {
	seed := domain.LedgerAccount{
		Code:    domain.CentralAccountCode,
		Name:    domain.CentralAccountName,
		Balance: decimal.Zero,
	}
	if _, err := r.tx.NewInsert().Model(&seed).On("CONFLICT (code) DO NOTHING").Exec(ctx); err != nil {
		return domain.LedgerAccount{}, err
	}

	var a domain.LedgerAccount
	err := r.tx.NewSelect().
		Model(&a).
		Where("code = ?", domain.CentralAccountCode).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.LedgerAccount{}, notFound(err)
	}
	return a, nil
}

func (r calendarTx) SetAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.LedgerAccount)(nil)).
		Set("balance = ?", balance).
		Set("updated_at = now()").
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return err
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

func (r calendarTx) InsertMovement(ctx context.Context, m *domain.LedgerMovement) error {
	_, err := r.tx.NewInsert().Model(m).Exec(ctx)
	return err
}
