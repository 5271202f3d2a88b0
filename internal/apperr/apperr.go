// Package apperr maps backend failures onto a closed set of application
// error codes, each carrying a sentence that can be shown to the user as is.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/onebills/onebills/internal/backend"
)

// Code is an application error code.
type Code string

const (
	AuthNotAuthenticated   Code = "AUTH_NOT_AUTHENTICATED"
	AuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	AuthEmailAlreadyExists Code = "AUTH_EMAIL_ALREADY_EXISTS"
	AuthPhoneAlreadyExists Code = "AUTH_PHONE_ALREADY_EXISTS"
	AuthWeakPassword       Code = "AUTH_WEAK_PASSWORD"
	AuthInvalidEmail       Code = "AUTH_INVALID_EMAIL"
	AuthInvalidPhone       Code = "AUTH_INVALID_PHONE"
	AuthInvalidOTP         Code = "AUTH_INVALID_OTP"
	AuthSessionExpired     Code = "AUTH_SESSION_EXPIRED"
	AuthRateLimit          Code = "AUTH_RATE_LIMIT"

	ProfileNotFound     Code = "PROFILE_NOT_FOUND"
	ProfileUpdateFailed Code = "PROFILE_UPDATE_FAILED"
	ProfileKYCPending   Code = "PROFILE_KYC_PENDING"

	NetworkError   Code = "NETWORK_ERROR"
	NetworkTimeout Code = "NETWORK_TIMEOUT"
	NetworkOffline Code = "NETWORK_OFFLINE"

	ValidationError         Code = "VALIDATION_ERROR"
	ValidationRequired      Code = "VALIDATION_REQUIRED"
	ValidationInvalidFormat Code = "VALIDATION_INVALID_FORMAT"

	UnknownError    Code = "UNKNOWN_ERROR"
	OperationFailed Code = "OPERATION_FAILED"
)

const genericUserMessage = "Something went wrong. Please try again."

// AppError is a normalized error. Values are only produced by this package,
// so finding one in a chain means normalization already happened.
type AppError struct {
	Code        Code
	Message     string
	UserMessage string
	Original    error
	Details     map[string]string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Original }

// New builds an AppError directly, for failures detected client side.
func New(code Code, message, userMessage string) *AppError {
	return &AppError{Code: code, Message: message, UserMessage: userMessage}
}

// Validation builds a VALIDATION_ERROR whose user message is msg.
func Validation(msg string) *AppError {
	return &AppError{Code: ValidationError, Message: msg, UserMessage: msg}
}

type mapping struct {
	code    Code
	message string
}

var byIdentifier = map[string]mapping{
	backend.CodeInvalidCredentials:     {AuthInvalidCredentials, "Invalid email or password. Please check your credentials and try again."},
	backend.CodeInvalidGrant:           {AuthInvalidCredentials, "Invalid email or password. Please check your credentials and try again."},
	backend.CodeEmailNotConfirmed:      {AuthInvalidCredentials, "Please verify your email address before signing in."},
	backend.CodeSignupDisabled:         {OperationFailed, "Registration is currently disabled. Please contact support."},
	backend.CodeUserAlreadyRegistered:  {AuthEmailAlreadyExists, "An account with this email already exists. Please sign in instead."},
	backend.CodePhoneAlreadyRegistered: {AuthPhoneAlreadyExists, "An account with this phone number already exists. Please sign in instead."},
	backend.CodeWeakPassword:           {AuthWeakPassword, "Your password is too weak. Please choose a stronger password."},
	backend.CodeInvalidEmail:           {AuthInvalidEmail, "Please enter a valid email address."},
	backend.CodeInvalidPhone:           {AuthInvalidPhone, "Please enter a valid phone number."},
	backend.CodeInvalidOTP:             {AuthInvalidOTP, "Invalid verification code. Please check and try again."},
	backend.CodeTokenNotFound:          {AuthInvalidOTP, "Invalid verification code. Please check and try again."},
	backend.CodeExpiredOTP:             {AuthInvalidOTP, "Verification code has expired. Please request a new one."},
	backend.CodeSessionExpired:         {AuthSessionExpired, "Your session has expired. Please sign in again."},
	backend.CodeRefreshTokenNotFound:   {AuthSessionExpired, "Your session has expired. Please sign in again."},
	backend.CodeRateLimitExceeded:      {AuthRateLimit, "Too many attempts. Please wait a few minutes and try again."},
	"over_request_rate_limit":          {AuthRateLimit, "Too many attempts. Please wait a few minutes and try again."},
	"over_sms_send_rate_limit":         {AuthRateLimit, "Too many attempts. Please wait a few minutes and try again."},

	"ECONNABORTED":           {NetworkTimeout, "Request timed out. Please check your connection and try again."},
	"ETIMEDOUT":              {NetworkTimeout, "Request timed out. Please check your connection and try again."},
	"ERR_NETWORK":            {NetworkError, "Network error. Please check your internet connection and try again."},
	"Network request failed": {NetworkError, "Network error. Please check your internet connection and try again."},

	backend.CodeNoRows:              {ProfileNotFound, "Profile not found."},
	backend.CodeUniqueViolation:     {OperationFailed, "This information is already in use. Please use different details."},
	backend.CodeForeignKeyViolation: {OperationFailed, "Invalid reference. Please check your information and try again."},
	backend.CodeNotNullViolation:    {ValidationRequired, "Please fill in all required fields."},
	backend.CodeInvalidTextRepr:     {ValidationInvalidFormat, "Some of the information has an invalid format. Please check and try again."},
}

// Normalize converts any error into an AppError. It never returns nil and is
// idempotent: an error that already wraps an AppError yields that AppError.
func Normalize(err error) *AppError {
	if err == nil {
		return New(UnknownError, "An unknown error occurred", genericUserMessage)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(NetworkTimeout, err.Error(), "Request timed out. Please try again.", err)
	}
	if errors.Is(err, context.Canceled) {
		return wrap(OperationFailed, err.Error(), "The request was cancelled. Please try again.", err)
	}

	message := err.Error()
	var be *backend.Error
	if errors.As(err, &be) {
		if be.Message != "" {
			message = be.Message
		}
		if m, ok := byIdentifier[be.Identifier()]; ok {
			return wrap(m.code, message, m.message, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return wrap(NetworkTimeout, message, "Request timed out. Please check your connection and try again.", err)
		}
		return wrap(NetworkOffline, message, "You appear to be offline. Please check your internet connection and try again.", err)
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "not authenticated"):
		return wrap(AuthNotAuthenticated, message, "You need to sign in to continue.", err)
	case strings.Contains(lower, "network"):
		return wrap(NetworkError, message, "Network error. Please check your connection and try again.", err)
	case strings.Contains(lower, "timeout"):
		return wrap(NetworkTimeout, message, "Request timed out. Please try again.", err)
	}

	return wrap(OperationFailed, message, "An error occurred. Please try again.", err)
}

func wrap(code Code, message, userMessage string, original error) *AppError {
	return &AppError{Code: code, Message: message, UserMessage: userMessage, Original: original}
}

// UserMessage returns the sentence to show for err.
func UserMessage(err error) string {
	if err == nil {
		return genericUserMessage
	}
	return Normalize(err).UserMessage
}

// IsCode reports whether err normalizes to code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Code == code
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	switch Normalize(err).Code {
	case NetworkError, NetworkTimeout, NetworkOffline:
		return true
	}
	return false
}

// IsAuth reports whether err belongs to the authentication family.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(Normalize(err).Code), "AUTH_")
}
