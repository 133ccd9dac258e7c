package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	"github.com/ogurasousui/ogs-worktime/internal/core/timetracking"
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	// staff の sentinel を包むため先に判定する
	case errors.Is(err, timetracking.ErrStaffUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, timetracking.ErrInvalidID),
		errors.Is(err, timetracking.ErrInvalidStaffID),
		errors.Is(err, timetracking.ErrInvalidActorID),
		errors.Is(err, timetracking.ErrInvalidStatus),
		errors.Is(err, timetracking.ErrInvalidDate),
		errors.Is(err, timetracking.ErrInvalidDateRange),
		errors.Is(err, timetracking.ErrInvalidTimeRange),
		errors.Is(err, timetracking.ErrInvalidBreakMinutes),
		errors.Is(err, timetracking.ErrInvalidAbsenceType),
		errors.Is(err, timetracking.ErrInvalidHalfDay),
		errors.Is(err, staff.ErrInvalidID),
		errors.Is(err, staff.ErrInvalidFirstName),
		errors.Is(err, staff.ErrInvalidLastName),
		errors.Is(err, staff.ErrInvalidEmail),
		errors.Is(err, staff.ErrInvalidRole),
		errors.Is(err, staff.ErrInvalidStatus),
		errors.Is(err, staff.ErrInvalidPageSize),
		errors.Is(err, staff.ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, timetracking.ErrAlreadyCheckedIn), errors.Is(err, staff.ErrEmailAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, timetracking.ErrSessionNotFound),
		errors.Is(err, timetracking.ErrBreakNotFound),
		errors.Is(err, timetracking.ErrAbsenceNotFound),
		errors.Is(err, staff.ErrStaffNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, timetracking.ErrNotCheckedIn),
		errors.Is(err, timetracking.ErrAlreadyCheckedOut),
		errors.Is(err, timetracking.ErrBreakAlreadyActive),
		errors.Is(err, timetracking.ErrNoActiveBreak),
		errors.Is(err, timetracking.ErrAbsenceOverlap),
		errors.Is(err, timetracking.ErrAbsenceAlreadyDecided),
		errors.Is(err, staff.ErrStaffInUse):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
