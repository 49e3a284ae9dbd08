// Package serrors defines the error values returned across module boundaries.
// Every error carries a stable ErrorCode which the HTTP layer maps to a status.
package serrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type ErrorCode string

const (
	Internal             ErrorCode = "Internal"
	SavingChanges        ErrorCode = "SavingChanges"
	NotFound             ErrorCode = "NotFound"
	UserNotFound         ErrorCode = "UserNotFound"
	RoleNotFound         ErrorCode = "RoleNotFound"
	TenantNotFound       ErrorCode = "TenantNotFound"
	NotificationNotFound ErrorCode = "NotificationNotFound"
	SystemAlertNotFound  ErrorCode = "SystemAlertNotFound"
	DeviceNotFound       ErrorCode = "DeviceNotFound"
	Validation           ErrorCode = "Validation"
	Forbidden            ErrorCode = "Forbidden"
	Unauthenticated      ErrorCode = "Unauthenticated"
	AuthenticationFailed ErrorCode = "AuthenticationFailed"
	AccountLocked        ErrorCode = "AccountLocked"
	AccountDisabled      ErrorCode = "AccountDisabled"
	MfaCodeInvalid       ErrorCode = "MfaCodeInvalid"
	MfaChallengeExpired  ErrorCode = "MfaChallengeExpired"
	Conflict             ErrorCode = "Conflict"
	LastAdmin            ErrorCode = "LastAdmin"
	PasswordResetInvalid ErrorCode = "PasswordResetInvalid"
	TooManyRequests      ErrorCode = "TooManyRequests"
)

// HTTPStatus maps a code to the status written by the JSON API.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case NotFound, UserNotFound, RoleNotFound, TenantNotFound,
		NotificationNotFound, SystemAlertNotFound, DeviceNotFound:
		return http.StatusNotFound
	case Validation, MfaCodeInvalid, PasswordResetInvalid:
		return http.StatusBadRequest
	case Forbidden, AccountDisabled:
		return http.StatusForbidden
	case Unauthenticated, AuthenticationFailed, MfaChallengeExpired:
		return http.StatusUnauthorized
	case AccountLocked:
		return http.StatusLocked
	case Conflict, LastAdmin:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type BaseError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	LocaleKey string    `json:"-"`
}

func (e *BaseError) Error() string {
	return e.Message
}

// Is reports equality by code so wrapped sentinels match fresh instances.
func (e *BaseError) Is(target error) bool {
	var t *BaseError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func NewError(code ErrorCode, message, localeKey string) *BaseError {
	return &BaseError{Code: code, Message: message, LocaleKey: localeKey}
}

func Errorf(code ErrorCode, format string, args ...any) *BaseError {
	return &BaseError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError holds per-field messages.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func FieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
	return e
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CodeOf extracts the code of err, defaulting to Internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return Validation
	}
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return Internal
}
