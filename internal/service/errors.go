package service

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrEmailNotConfirmed  = errors.New("email is not confirmed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many attempts, try again later")
	ErrInvalidTransition  = errors.New("status transition is not allowed")
)

// ValidationError lists the offending fields. It matches ErrValidation with
// errors.Is.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "required"
	}
	if len(e.Fields) == 0 {
		return "validation failed: " + reason
	}
	return "validation failed: " + strings.Join(e.Fields, ", ") + " " + reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(reason string, fields ...string) error {
	return &ValidationError{Fields: fields, Reason: reason}
}

// requireFields returns a ValidationError naming every blank field, in the
// order given. Pairs are name, value.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
