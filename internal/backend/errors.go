package backend

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Backend error identifiers. Auth identifiers follow the hosted auth
// service's error codes; row identifiers are PostgREST/SQLSTATE codes.
const (
	CodeInvalidCredentials     = "invalid_credentials"
	CodeInvalidGrant           = "invalid_grant"
	CodeEmailNotConfirmed      = "email_not_confirmed"
	CodeSignupDisabled         = "signup_disabled"
	CodeUserAlreadyRegistered  = "user_already_registered"
	CodePhoneAlreadyRegistered = "phone_already_registered"
	CodeWeakPassword           = "weak_password"
	CodeInvalidEmail           = "invalid_email"
	CodeInvalidPhone           = "invalid_phone"
	CodeInvalidOTP             = "invalid_otp"
	CodeTokenNotFound          = "token_not_found"
	CodeExpiredOTP             = "expired_otp"
	CodeSessionExpired         = "session_expired"
	CodeRefreshTokenNotFound   = "refresh_token_not_found"
	CodeRateLimitExceeded      = "rate_limit_exceeded"

	CodeNoRows              = "PGRST116"
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeInvalidTextRepr     = "22P02"
)

// Error is the error shape produced by backend calls: a short identifier in
// Code (or Status for transport failures) and free text in Message.
type Error struct {
	Code    string
	Status  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	id := e.Code
	if id == "" {
		id = e.Status
	}
	if id == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", id, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Identifier returns Code, falling back to Status.
func (e *Error) Identifier() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Status
}

// NewError builds an Error with the given identifier and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrNotAuthenticated is returned by row operations that need a session.
var ErrNotAuthenticated = &Error{Message: "Not authenticated"}

// IsNoRows reports whether err is the "no row found" backend error.
func IsNoRows(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Code == CodeNoRows
}

// FromPg translates pgx errors into backend errors so row failures carry the
// same identifiers as the hosted REST layer.
func FromPg(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Code: CodeNoRows, Message: "JSON object requested, multiple (or no) rows returned", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}
	return err
}
