package staff

import "errors"

var (
	ErrInvalidID          = errors.New("staff: invalid id")
	ErrInvalidFirstName   = errors.New("staff: invalid first name")
	ErrInvalidLastName    = errors.New("staff: invalid last name")
	ErrInvalidEmail       = errors.New("staff: invalid email")
	ErrInvalidRole        = errors.New("staff: invalid role")
	ErrInvalidStatus      = errors.New("staff: invalid status")
	ErrInvalidPageSize    = errors.New("staff: invalid page size")
	ErrInvalidPageToken   = errors.New("staff: invalid page token")
	ErrStaffNotFound      = errors.New("staff: not found")
	ErrEmailAlreadyExists = errors.New("staff: email already exists")
	ErrStaffInUse         = errors.New("staff: has time-tracking records")
)
