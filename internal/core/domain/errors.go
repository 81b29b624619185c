package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrIllegalState    = errors.New("illegal state")
	ErrExternalService = errors.New("external service failure")
	ErrPersistence     = errors.New("persistence failure")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type userMessenger interface {
	UserMessage() string
}

type messageError struct {
	message string
	err     error
}

func (e *messageError) Error() string       { return e.err.Error() }
func (e *messageError) Unwrap() error       { return e.err }
func (e *messageError) UserMessage() string { return e.message }

// WithMessage attaches text meant for end users to err. The error chain,
// and so IsKind, is unchanged.
func WithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &messageError{message: message, err: err}
}

// AttachedMessage returns the outermost user message in err's chain.
func AttachedMessage(err error) (string, bool) {
	var m userMessenger
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg, true
		}
	}
	return "", false
}

// UserMessage returns the attached user message, or err's text when there is none.
func UserMessage(err error) string {
	if msg, ok := AttachedMessage(err); ok {
		return msg
	}
	return err.Error()
}
