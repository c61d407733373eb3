package client

import (
	"errors"
	"fmt"
	"net/http"

	"sparkclean/internal/database"
	"sparkclean/internal/mirror"
	"sparkclean/internal/service"
)

// APIError is a non-2xx answer of the API. It unwraps to the mirror error
// matching its status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return mirror.ErrValidation
	case http.StatusUnauthorized:
		return mirror.ErrUnauthorized
	case http.StatusForbidden:
		return mirror.ErrForbidden
	case http.StatusNotFound:
		return mirror.ErrNotFound
	case http.StatusConflict:
		return mirror.ErrConflict
	}
	return nil
}

// translate maps service and storage errors onto the mirror errors, keeping
// the original in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var target error
	switch {
	case errors.Is(err, service.ErrValidation):
		target = mirror.ErrValidation
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailNotConfirmed):
		target = mirror.ErrUnauthorized
	case errors.Is(err, service.ErrForbidden):
		target = mirror.ErrForbidden
	case errors.Is(err, database.ErrNotFound):
		target = mirror.ErrNotFound
	case errors.Is(err, database.ErrConcurrentModification), errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, database.ErrPriceLocked), errors.Is(err, service.ErrEmailTaken):
		target = mirror.ErrConflict
	default:
		return err
	}
	return fmt.Errorf("%w: %w", target, err)
}
