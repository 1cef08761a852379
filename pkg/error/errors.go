package error

import (
	"errors"
	"net/http"

	"github.com/fieldbook/fieldbook/internal/domain"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "invalid input", Status: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "reservation not found", Status: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "time slot already booked", Status: http.StatusConflict}
)

func NewBadRequest(detail string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: ErrBadRequest.Message, Detail: detail, Status: http.StatusBadRequest}
}

func NewNotFound(detail string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: ErrNotFound.Message, Detail: detail, Status: http.StatusNotFound}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

func NewConflict(detail string) *AppError {
	return &AppError{Code: "CONFLICT", Message: ErrConflict.Message, Detail: detail, Status: http.StatusConflict}
}

// MapError turns any error into the AppError the HTTP layer renders
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Kind {
		case domain.KindValidation:
			return NewBadRequest(domainErr.Message)
		case domain.KindConflict:
			return NewConflict(domainErr.Message)
		case domain.KindNotFound:
			return NewNotFound(domainErr.Message)
		}
	}

	return NewInternalServer("An unexpected error occurred")
}
