package services

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// validationError converts ozzo validation output into a ValidationError.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return WrapError(err, "validate input")
	}
	return ErrBadRequest(err.Error())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validID treats malformed identifiers as missing resources.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
