package apperr

import "net/http"

// HTTPStatus maps a code to the status the UI bridge answers with.
func HTTPStatus(code Code) int {
	switch code {
	case AuthNotAuthenticated, AuthSessionExpired, AuthInvalidCredentials:
		return http.StatusUnauthorized
	case AuthEmailAlreadyExists, AuthPhoneAlreadyExists:
		return http.StatusConflict
	case AuthWeakPassword, AuthInvalidEmail, AuthInvalidPhone, AuthInvalidOTP,
		ValidationError, ValidationRequired, ValidationInvalidFormat:
		return http.StatusBadRequest
	case AuthRateLimit:
		return http.StatusTooManyRequests
	case ProfileNotFound:
		return http.StatusNotFound
	case ProfileKYCPending:
		return http.StatusForbidden
	case NetworkTimeout:
		return http.StatusGatewayTimeout
	case NetworkError, NetworkOffline:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
