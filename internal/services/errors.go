package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid         ErrorCode = "invalid"
	ErrorUnauthorized    ErrorCode = "unauthorized"
	ErrorForbidden       ErrorCode = "forbidden"
	ErrorNotFound        ErrorCode = "not_found"
	ErrorConflict        ErrorCode = "conflict"
	ErrorGone            ErrorCode = "gone"
	ErrorTooManyRequests ErrorCode = "too_many_requests"
	ErrorBadGateway      ErrorCode = "bad_gateway"
)

// ServiceError is a caller-facing failure. Key is an i18n message key the API
// layer may localize; Message is the English fallback.
type ServiceError struct {
	Code    ErrorCode
	Key     string
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewGoneError(msg string) error      { return &ServiceError{Code: ErrorGone, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string) error { return &ServiceError{Code: ErrorBadGateway, Message: msg} }

func NewTooManyRequestsError(msg string) error {
	return &ServiceError{Code: ErrorTooManyRequests, Message: msg}
}

func withKey(err error, key string) error {
	if se, ok := AsServiceError(err); ok {
		se.Key = key
	}
	return err
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

const (
	errFormNotFound     = "form.not_found"
	errResponseNotFound = "response.not_found"
)

func formNotFound() error { return withKey(NewNotFoundError("Form not found"), errFormNotFound) }

func responseNotFound() error {
	return withKey(NewNotFoundError("Response not found"), errResponseNotFound)
}
