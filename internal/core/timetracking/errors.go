package timetracking

import "errors"

var (
	ErrInvalidID             = errors.New("timetracking: invalid id")
	ErrInvalidStaffID        = errors.New("timetracking: invalid staff id")
	ErrInvalidActorID        = errors.New("timetracking: invalid actor id")
	ErrInvalidStatus         = errors.New("timetracking: invalid status")
	ErrInvalidDate           = errors.New("timetracking: invalid date")
	ErrInvalidDateRange      = errors.New("timetracking: invalid date range")
	ErrInvalidTimeRange      = errors.New("timetracking: check-out before check-in")
	ErrInvalidBreakMinutes   = errors.New("timetracking: invalid break minutes")
	ErrInvalidAbsenceType    = errors.New("timetracking: invalid absence type")
	ErrInvalidHalfDay        = errors.New("timetracking: half day absence must cover a single day")
	ErrStaffUnavailable      = errors.New("timetracking: staff unavailable")
	ErrSessionNotFound       = errors.New("timetracking: session not found")
	ErrBreakNotFound         = errors.New("timetracking: break not found")
	ErrAbsenceNotFound       = errors.New("timetracking: absence not found")
	ErrAlreadyCheckedIn      = errors.New("timetracking: already checked in")
	ErrNotCheckedIn          = errors.New("timetracking: not checked in")
	ErrAlreadyCheckedOut     = errors.New("timetracking: already checked out")
	ErrBreakAlreadyActive    = errors.New("timetracking: break already active")
	ErrNoActiveBreak         = errors.New("timetracking: no active break")
	ErrAbsenceOverlap        = errors.New("timetracking: absence overlaps an existing absence")
	ErrAbsenceAlreadyDecided = errors.New("timetracking: absence already decided")
)
