package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidUserID         = errors.New("invalid user ID")
	ErrInvalidDate           = errors.New("date must be YYYY-MM-DD")
	ErrInvalidDayOfWeek      = errors.New("invalid day of week")
	ErrMissingCompletionTime = errors.New("completion time is required")
	ErrNoFieldsToUpdate      = errors.New("at least one field must be provided for update")
)
