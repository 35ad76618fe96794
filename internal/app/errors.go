package app

import (
	"errors"
	"fmt"
	"net/http"

	"pulseboard/api/internal/auth"
	"pulseboard/api/internal/repo"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message}
}

// toDomainError maps repository and auth errors onto the HTTP boundary.
// Unknown errors become opaque 500s so storage internals never leak.
func toDomainError(err error) *DomainError {
	var de *DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return de
	case errors.Is(err, repo.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, repo.ErrValidation):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, repo.ErrNoActiveUser):
		return domainError(http.StatusUnauthorized, "NO_ACTIVE_USER", "sign in first")
	case errors.Is(err, auth.ErrEmailTaken):
		return domainError(http.StatusConflict, "EMAIL_TAKEN", err.Error())
	case errors.Is(err, auth.ErrMissingFields):
		return domainError(http.StatusBadRequest, "MISSING_FIELDS", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	default:
		return domainError(http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
