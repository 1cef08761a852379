package domain

// ErrorKind discriminates the failures a caller must render differently
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindConflict   ErrorKind = "CONFLICT"
	KindNotFound   ErrorKind = "NOT_FOUND"
)

// Custom errors
var (
	ErrValidation          = NewDomainError(KindValidation, "invalid input")
	ErrInvalidFormat       = NewDomainError(KindValidation, "invalid time format, expected HH:MM")
	ErrInvalidDate         = NewDomainError(KindValidation, "invalid date, expected YYYY-MM-DD")
	ErrReservationConflict = NewDomainError(KindConflict, "collision")
	ErrReservationNotFound = NewDomainError(KindNotFound, "reservation not found")
)

// DomainError represents a domain-specific error
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError of the same kind, so a detailed validation
// error still satisfies errors.Is(err, ErrValidation).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// NewValidationError creates a validation error with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, message)
}
