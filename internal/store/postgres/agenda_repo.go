package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

func (r *Repo) GetBlock(ctx context.Context, id uuid.UUID) (domain.AgendaBlock, error) {
	var b domain.AgendaBlock
	if err := r.db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.AgendaBlock{}, notFound(err)
	}
	return b, nil
}

func (r *Repo) ListBlocks(ctx context.Context, f store.BlockFilter) ([]domain.AgendaBlock, error) {
	var rows []domain.AgendaBlock
	q := r.db.NewSelect().Model(&rows)
	if !f.Overlapping.Start.IsZero() {
		q = q.Where("end_time > ?", f.Overlapping.Start)
	}
	if !f.Overlapping.End.IsZero() {
		q = q.Where("start_time < ?", f.Overlapping.End)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) OverlappingBlocks(ctx context.Context, span domain.Span, staffID string, includeGeneral bool) ([]domain.AgendaBlock, error) {
	if staffID == "" && !includeGeneral {
		return nil, nil
	}
	var rows []domain.AgendaBlock
	err := r.tx.NewSelect().
		Model(&rows).
		Where("start_time < ?", span.End).
		Where("end_time > ?", span.Start).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if staffID != "" {
				q = q.WhereOr("staff_id = ?", staffID)
			}
			if includeGeneral {
				q = q.WhereOr("staff_id IS NULL")
			}
			return q
		}).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) InsertBlock(ctx context.Context, block *domain.AgendaBlock) error {
	_, err := r.tx.NewInsert().Model(block).Exec(ctx)
	return err
}

func (r calendarTx) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.NewDelete().
		Model((*domain.AgendaBlock)(nil)).
		Where("id = ?", id).
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
