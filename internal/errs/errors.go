package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")

	// ErrUnauthenticated means no user id could be resolved for the call.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrInvalidAmount   = errors.New("amount must be a finite number > 0 with at most 11 integer digits and 4 decimal places")
	ErrInvalidBalance  = errors.New("initial balance must have at most 11 integer digits and 4 decimal places")
	ErrInvalidKind     = errors.New("kind must be income or expense")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrInvalidMonth    = errors.New("month must be YYYY-MM")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter ISO code")

	ErrEmptyCategory     = errors.New("category name is required")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrSameCategoryName  = errors.New("new category name equals the old one")

	// ErrEntryNotFound is returned when no entry in a record matches the reference.
	ErrEntryNotFound = errors.New("entry_not_found")
)
