package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/apperror"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrOperatorKeyInvalid ErrCode = "OPERATOR_KEY_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_ERROR"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrSessionInvalidated:
		return "This session has ended. Start a new one."
	case ErrTokenRequired:
		return "A session token is required."
	case ErrTokenInvalid:
		return "The session token is invalid."
	case ErrOperatorKeyInvalid:
		return "The operator key is missing or wrong."

	case ErrValidation:
		return "Validation failed. Check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownAction:
		return "Unknown session action."

	case ErrNotFound:
		return "Resource not found."
	case ErrSessionNotFound:
		return "Quiz session not found or expired."

	case ErrRateLimitExceeded:
		return "Too many requests. Try again later."

	case ErrUpstream:
		return "The quiz service could not complete the request."

	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}

// FailApp sends a quiz-level error. Validation errors are the caller's
// fault (422); server, network and grading failures come from the quiz
// service (502).
func FailApp(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		Fail(c, http.StatusInternalServerError, ErrInternal)
		return
	}

	status := http.StatusBadGateway
	if appErr.Kind == apperror.KindValidation {
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, envelope(c, nil, &ErrorBody{
		Code:    ErrCode(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}))
}
