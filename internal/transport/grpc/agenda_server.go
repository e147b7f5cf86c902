package grpc

import (
	"context"
	"log/slog"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/service/agenda"
)

func (s *Server) CreateAgendaBlock(ctx context.Context, req *CreateAgendaBlockRequest) (*AgendaBlockResponse, error) {
	log := s.rpcLog(ctx, "CreateAgendaBlock")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.StartTime == nil || req.EndTime == nil {
		return nil, invalid(log, "missing_times", "start_time and end_time are required", slog.String("user_id", p.ID))
	}

	block, err := s.agenda.CreateBlock(ctx, p, agenda.CreateBlockInput{
		Start:   *req.StartTime,
		End:     *req.EndTime,
		StaffID: req.StaffID,
		Reason:  req.Reason,
	})
	if err != nil {
		return nil, toStatus(log, "agenda block rejected", err,
			slog.String("user_id", p.ID),
			slog.String("staff_id", req.StaffID),
		)
	}

	log.Info(
		"agenda block created",
		slog.String("block_id", block.ID.String()),
		slog.Bool("general", block.General()),
		slog.Time("start_time", block.StartTime),
		slog.Time("end_time", block.EndTime),
	)
	return &AgendaBlockResponse{Block: toAgendaBlock(block)}, nil
}

func (s *Server) DeleteAgendaBlock(ctx context.Context, req *DeleteAgendaBlockRequest) (*Empty, error) {
	log := s.rpcLog(ctx, "DeleteAgendaBlock")

	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(log, "block_id", req.BlockID)
	if err != nil {
		return nil, err
	}

	if err := s.agenda.DeleteBlock(ctx, p, id); err != nil {
		return nil, toStatus(log, "agenda block delete rejected", err, slog.String("block_id", id.String()), slog.String("user_id", p.ID))
	}

	log.Info("agenda block deleted", slog.String("block_id", id.String()), slog.String("user_id", p.ID))
	return &Empty{}, nil
}

func (s *Server) ListAgendaBlocks(ctx context.Context, req *ListAgendaBlocksRequest) (*ListAgendaBlocksResponse, error) {
	log := s.rpcLog(ctx, "ListAgendaBlocks")

	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	var (
		blocks []domain.AgendaBlock
		err    error
	)
	if req.Date != "" {
		blocks, err = s.agenda.ListByDate(ctx, req.Date)
	} else {
		blocks, err = s.agenda.ListUpcoming(ctx)
	}
	if err != nil {
		return nil, toStatus(log, "agenda blocks list rejected", err, slog.String("date", req.Date))
	}

	out := make([]AgendaBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toAgendaBlock(b))
	}
	return &ListAgendaBlocksResponse{Blocks: out}, nil
}
