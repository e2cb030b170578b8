package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
}

func (e ServiceError) Error() string {
	return e.Message
}

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidCode        = "INVALID_OR_EXPIRED_CODE"
	CodeAccountPending     = "PENDING_APPROVAL"
	CodeAccountRejected    = "ACCOUNT_REJECTED"
	CodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidAssertion   = "INVALID_ASSERTION"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidRole        = "INVALID_ROLE"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeConflict           = "CONFLICT"
	CodeUnsupportedFile    = "UNSUPPORTED_FILE"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeExternalService    = "EXTERNAL_SERVICE_FAILURE"
)

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func ErrDuplicateAccount(msg string) error {
	return ServiceError{Status: http.StatusConflict, Code: CodeDuplicateAccount, Message: msg}
}

func ErrInvalidCredentials() error {
	return ServiceError{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, Message: "Invalid email or password"}
}

func ErrInvalidOrExpiredCode() error {
	return ServiceError{Status: http.StatusBadRequest, Code: CodeInvalidCode, Message: "Invalid or expired code"}
}

func ErrAccountPending() error {
	return ServiceError{Status: http.StatusForbidden, Code: CodeAccountPending, Message: "Your account is pending approval"}
}

func ErrAccountRejected() error {
	return ServiceError{Status: http.StatusForbidden, Code: CodeAccountRejected, Message: "Your account has been rejected"}
}

func ErrAccountUnverified() error {
	return ServiceError{Status: http.StatusForbidden, Code: CodeAccountUnverified, Message: "Please verify your email first"}
}

func ErrInvalidAssertion(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Code: CodeInvalidAssertion, Message: msg}
}

func ErrInvalidRole(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Code: CodeInvalidRole, Message: msg}
}

func ErrIllegalTransition(msg string) error {
	return ServiceError{Status: http.StatusConflict, Code: CodeIllegalTransition, Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func ErrUnsupportedFile(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Code: CodeUnsupportedFile, Message: msg}
}

func ErrTooManyAttempts() error {
	return ServiceError{Status: http.StatusTooManyRequests, Code: CodeTooManyAttempts, Message: "Too many attempts, try again later"}
}

func ErrExternalService(msg string) error {
	return ServiceError{Status: http.StatusBadGateway, Code: CodeExternalService, Message: msg}
}

// HasCode reports whether err is a ServiceError carrying code.
func HasCode(err error, code string) bool {
	var svcErr ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code == code
	}
	return false
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
