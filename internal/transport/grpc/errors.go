package grpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/payments"
)

// toStatus maps a service failure onto a gRPC status and logs it at the
// level its kind deserves. Unclassified failures never leak their message.
func toStatus(log *slog.Logger, msg string, err error, attrs ...any) error {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidInput:
		log.Warn("invalid request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindNotFound:
		log.Info(msg, append(attrs, slog.String("kind", string(kind)))...)
		return status.Error(codes.NotFound, err.Error())
	case domain.KindForbidden:
		log.Info(msg, append(attrs, slog.String("kind", string(kind)))...)
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.KindPastBooking,
		domain.KindOutsideBusinessHours,
		domain.KindSlotBlocked,
		domain.KindSlotTaken,
		domain.KindInvalidState,
		domain.KindTooLate,
		domain.KindAlreadySettled:
		log.Info(msg, append(attrs, slog.String("kind", string(kind)), slog.String("detail", err.Error()))...)
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, append(attrs, slog.Any("err", err))...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, payments.ErrNotConfigured):
		log.Warn(msg, append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Unavailable, "online payments are not configured")
	}

	log.Error(msg, append(attrs, slog.Any("err", err))...)
	return status.Error(codes.Internal, "internal error")
}

func invalid(log *slog.Logger, reason, message string, attrs ...any) error {
	log.Warn("invalid request", append(attrs, slog.String("reason", reason))...)
	return status.Error(codes.InvalidArgument, message)
}

func parseID(log *slog.Logger, field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, invalid(log, "invalid_uuid", field+" must be a UUID", slog.String(field, value))
	}
	return id, nil
}
