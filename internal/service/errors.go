package service

import (
	"errors"

	"student-helpdesk/internal/validate"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAttachmentTooLarge = validate.ErrAttachmentTooLarge
	ErrStorageDisabled    = errors.New("attachment storage is not configured")
	ErrMailDisabled       = errors.New("outbound mail is not configured")
	ErrEmailDomain        = errors.New("email domain is not allowed to register")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInactiveUser       = errors.New("account is deactivated")
	ErrNotAnonymous       = errors.New("ticket is not anonymous")
)

// ValidationError reports rejected input on a single field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(field string, err error) error {
	if errors.Is(err, validate.ErrAttachmentTooLarge) {
		return err
	}
	return &ValidationError{Field: field, Msg: err.Error()}
}
