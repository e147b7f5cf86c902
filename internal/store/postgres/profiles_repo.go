package postgres

import (
	"context"

	"github.com/google/uuid"

	"barbershop/backend/internal/domain"
)

func (r *Repo) GetClient(ctx context.Context, userID string) (domain.Client, error) {
	var c domain.Client
	if err := r.db.NewSelect().Model(&c).Where("user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return domain.Client{}, notFound(err)
	}
	return c, nil
}

func (r *Repo) GetBarber(ctx context.Context, userID string) (domain.Barber, error) {
	var b domain.Barber
	if err := r.db.NewSelect().Model(&b).Where("user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return domain.Barber{}, notFound(err)
	}
	return b, nil
}

func (r *Repo) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var s domain.Service
	if err := r.db.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Service{}, notFound(err)
	}
	return s, nil
}
