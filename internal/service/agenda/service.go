// Package agenda manages administrative closures of the booking calendar.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
	"barbershop/backend/internal/timewindow"
)

type Service struct {
	store  store.Store
	policy timewindow.Policy
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, policy timewindow.Policy, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  st,
		policy: policy,
		log:    log.With(slog.String("component", "service.agenda")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateBlockInput struct {
	Start time.Time
	End   time.Time
	// StaffID scopes the block to one barber; empty closes the whole shop.
	StaffID string
	Reason  string
}

func (s *Service) CreateBlock(ctx context.Context, p domain.Principal, in CreateBlockInput) (domain.AgendaBlock, error) {
	switch p.Role {
	case domain.RoleAdmin:
	case domain.RoleBarber:
		if in.StaffID == "" {
			in.StaffID = p.ID
		}
		if in.StaffID != p.ID {
			return domain.AgendaBlock{}, domain.Forbidden("barbers can only block their own agenda")
		}
	default:
		return domain.AgendaBlock{}, domain.Forbidden("only staff can block the agenda")
	}

	if in.Start.IsZero() || in.End.IsZero() {
		return domain.AgendaBlock{}, domain.InvalidInput("start_time and end_time are required")
	}
	span := domain.Span{Start: in.Start.UTC(), End: in.End.UTC()}
	if !span.Valid() {
		return domain.AgendaBlock{}, domain.InvalidInput("end_time must be after start_time")
	}
	if span.Start.Before(s.now()) {
		return domain.AgendaBlock{}, domain.InvalidInput("cannot block a range in the past")
	}

	block := domain.AgendaBlock{
		StartTime: span.Start,
		EndTime:   span.End,
		Reason:    strings.TrimSpace(in.Reason),
	}
	if in.StaffID != "" {
		if _, err := s.store.GetBarber(ctx, in.StaffID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.AgendaBlock{}, domain.NotFound("barber")
			}
			return domain.AgendaBlock{}, err
		}
		staff := in.StaffID
		block.StaffID = &staff
	}

	insert := func(ctx context.Context, tx store.Tx) error {
		// Only blocks of the same scope conflict; a staff block may sit inside a shop closure.
		existing, err := tx.OverlappingBlocks(ctx, span, in.StaffID, in.StaffID == "")
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return domain.SlotBlocked(existing[0].Reason)
		}
		return tx.InsertBlock(ctx, &block)
	}

	// A closure is ordered against every booking decision: a booking either
	// sees the block or committed before it existed.
	var err error
	if in.StaffID != "" {
		err = s.store.InStaffTransaction(ctx, in.StaffID, insert)
	} else {
		err = s.store.InShopTransaction(ctx, insert)
	}
	if err != nil {
		if domain.KindOf(err) != "" {
			return domain.AgendaBlock{}, err
		}
		return domain.AgendaBlock{}, fmt.Errorf("create agenda block: %w", err)
	}

	s.log.Info(
		"agenda block created",
		slog.String("block_id", block.ID.String()),
		slog.String("staff_id", in.StaffID),
		slog.Time("start_time", block.StartTime),
		slog.Time("end_time", block.EndTime),
		slog.String("by", p.ID),
	)
	return block, nil
}

func (s *Service) DeleteBlock(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	block, err := s.store.GetBlock(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound("agenda block")
		}
		return err
	}
	if !canManage(p, block) {
		return domain.Forbidden("only an administrator or the blocked barber may remove this block")
	}

	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteBlock(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("agenda block")
	}
	if err != nil {
		return fmt.Errorf("delete agenda block: %w", err)
	}

	s.log.Info("agenda block deleted", slog.String("block_id", id.String()), slog.String("by", p.ID))
	return nil
}

func canManage(p domain.Principal, b domain.AgendaBlock) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleBarber:
		return !b.General() && *b.StaffID == p.ID
	}
	return false
}

// ListUpcoming returns blocks that have not ended yet, soonest first.
func (s *Service) ListUpcoming(ctx context.Context) ([]domain.AgendaBlock, error) {
	return s.store.ListBlocks(ctx, store.BlockFilter{Overlapping: domain.Span{Start: s.now()}})
}

// ListByDate returns blocks intersecting the given local calendar day.
func (s *Service) ListByDate(ctx context.Context, date string) ([]domain.AgendaBlock, error) {
	day, err := s.policy.DayRange(date)
	if err != nil {
		return nil, err
	}
	return s.store.ListBlocks(ctx, store.BlockFilter{Overlapping: day})
}
