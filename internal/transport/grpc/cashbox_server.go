package grpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/service/cashbox"
)

func (s *Server) RecordManualMovement(ctx context.Context, req *RecordManualMovementRequest) (*MovementResponse, error) {
	log := s.rpcLog(ctx, "RecordManualMovement")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	mv, err := s.cashbox.RecordManualMovement(ctx, p, cashbox.ManualMovementInput{
		TaggedUserID: req.TaggedUserID,
		Direction:    domain.Direction(strings.ToUpper(strings.TrimSpace(req.Direction))),
		Category:     domain.Category(strings.ToLower(strings.TrimSpace(req.Category))),
		Amount:       req.Amount,
		Method:       req.Method,
		Description:  req.Description,
	})
	if err != nil {
		return nil, toStatus(log, "manual movement rejected", err,
			slog.String("user_id", p.ID),
			slog.String("category", req.Category),
		)
	}

	log.Info(
		"manual movement recorded",
		slog.String("movement_id", mv.ID.String()),
		slog.String("direction", string(mv.Direction)),
		slog.String("category", string(mv.Category)),
		slog.String("amount", mv.Amount.StringFixed(2)),
		slog.String("user_id", p.ID),
	)
	return &MovementResponse{Movement: toMovement(mv)}, nil
}

func (s *Server) GetCentralLedger(ctx context.Context, req *GetCentralLedgerRequest) (*GetCentralLedgerResponse, error) {
	log := s.rpcLog(ctx, "GetCentralLedger")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var after cashbox.Cursor
	if req.Before != nil {
		after.CreatedAt = *req.Before
	}
	if req.BeforeID != "" {
		if req.Before == nil {
			return nil, invalid(log, "before_id_without_before", "before_id requires before")
		}
		id, err := parseID(log, "before_id", req.BeforeID)
		if err != nil {
			return nil, err
		}
		after.ID = id
	}

	view, err := s.cashbox.CentralView(ctx, p, after)
	if err != nil {
		return nil, toStatus(log, "central ledger rejected", err, slog.String("user_id", p.ID))
	}

	resp := &GetCentralLedgerResponse{
		Code:      view.Account.Code,
		Name:      view.Account.Name,
		Balance:   view.Account.Balance,
		Movements: toMovements(view.Movements),
	}
	if view.Account.ID != uuid.Nil {
		resp.AccountID = view.Account.ID.String()
	}
	if !view.Next.IsZero() {
		next := view.Next.CreatedAt.UTC()
		resp.NextBefore = &next
		resp.NextBeforeID = view.Next.ID.String()
	}
	return resp, nil
}

func (s *Server) GetMyWallet(ctx context.Context, req *GetMyWalletRequest) (*GetMyWalletResponse, error) {
	log := s.rpcLog(ctx, "GetMyWallet")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = p.ID
	}

	w, err := s.cashbox.WalletView(ctx, p, userID)
	if err != nil {
		return nil, toStatus(log, "wallet rejected", err, slog.String("user_id", p.ID), slog.String("wallet_user_id", userID))
	}
	return &GetMyWalletResponse{
		UserID:    w.UserID,
		Balance:   w.Balance,
		Movements: toMovements(w.Movements),
	}, nil
}

func (s *Server) CreatePaymentLink(ctx context.Context, req *CreatePaymentLinkRequest) (*CreatePaymentLinkResponse, error) {
	log := s.rpcLog(ctx, "CreatePaymentLink")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	kind := domain.PayNowKind(strings.ToUpper(strings.TrimSpace(req.Kind)))

	url, err := s.cashbox.CreatePaymentLink(ctx, p, id, kind)
	if err != nil {
		return nil, toStatus(log, "payment link rejected", err, slog.String("appointment_id", id.String()), slog.String("kind", string(kind)))
	}

	log.Info("payment link created", slog.String("appointment_id", id.String()), slog.String("kind", string(kind)))
	return &CreatePaymentLinkResponse{URL: url}, nil
}
