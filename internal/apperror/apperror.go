package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags where an error came from. It decides how the UI presents it and
// whether a retry can help.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
	KindServer      Kind = "server"
	KindTaskFailure Kind = "task_failure"
)

// Code is a typed error code enum for consistent error identification.
type Code string

const (
	// ─── Validation ────────────────────────────────────────────────────
	CodeNoCategorySelected Code = "NO_CATEGORY_SELECTED"
	CodeInvalidConfig      Code = "INVALID_CONFIG"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeAlreadyAnswered    Code = "ALREADY_ANSWERED"
	CodeWrongQuestionType  Code = "WRONG_QUESTION_TYPE"
	CodeEmptyAnswer        Code = "EMPTY_ANSWER"
	CodeInvalidReport      Code = "INVALID_REPORT"

	// ─── Transport ─────────────────────────────────────────────────────
	CodeNetwork Code = "NETWORK_ERROR"

	// ─── Server ────────────────────────────────────────────────────────
	CodeInvalidResponse Code = "INVALID_RESPONSE"
	CodeNoQuestions     Code = "NO_QUESTIONS"
	CodeMissingTaskID   Code = "MISSING_TASK_ID"

	// ─── Grading ───────────────────────────────────────────────────────
	CodeTaskFailure Code = "TASK_FAILURE"
)

// HTTPStatusCode builds the fallback code for a non-2xx response without a body code.
func HTTPStatusCode(status int) Code {
	return Code(fmt.Sprintf("HTTP_%d", status))
}

// Message returns a human-readable message for a given error code.
func Message(code Code) string {
	switch code {
	case CodeNoCategorySelected:
		return "Select at least one category."
	case CodeInvalidConfig:
		return "The number of questions must be a positive integer."
	case CodeInvalidState:
		return "This action is not available right now."
	case CodeAlreadyAnswered:
		return "This question has already been answered."
	case CodeWrongQuestionType:
		return "This action does not apply to the current question."
	case CodeEmptyAnswer:
		return "Provide an answer first."
	case CodeInvalidReport:
		return "The report is incomplete."
	case CodeNetwork:
		return "Could not reach the server. Check your connection and try again."
	case CodeInvalidResponse:
		return "The server returned an unexpected response."
	case CodeNoQuestions:
		return "No questions were found for the selected categories."
	case CodeMissingTaskID:
		return "The grading service did not accept the answer."
	case CodeTaskFailure:
		return "Grading failed."
	default:
		return "An unexpected error occurred."
	}
}

// Error is the single structured error type surfaced to the session store
// and its views. Details carries any extra context (HTTP status, task ID).
type Error struct {
	Kind    Kind           `json:"kind"`
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Message, e.Code, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether re-invoking the failed action may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer || e.Kind == KindTaskFailure
}

// WithDetail returns e with one more detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Clone returns a copy safe to hand out of the store.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	out := *e
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// Validation builds a local validation error with the code's default message.
func Validation(code Code) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: Message(code)}
}

// Network wraps a transport failure where no response was received.
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Code: CodeNetwork, Message: Message(CodeNetwork), cause: cause}
}

// Server builds an error from a non-2xx response. Empty code or message
// fall back to HTTP_<status> and the status text.
func Server(status int, code Code, message string) *Error {
	if code == "" {
		code = HTTPStatusCode(status)
	}
	if message == "" {
		message = http.StatusText(status)
		if message == "" {
			message = Message(code)
		}
	}
	return &Error{
		Kind:    KindServer,
		Code:    code,
		Message: message,
		Details: map[string]any{"status": status},
	}
}

// InvalidResponse flags a 2xx response whose body could not be used.
func InvalidResponse(cause error) *Error {
	return &Error{Kind: KindServer, Code: CodeInvalidResponse, Message: Message(CodeInvalidResponse), cause: cause}
}

// TaskFailure builds the error for a grading task that ended in FAILURE.
func TaskFailure(taskID, message string) *Error {
	if message == "" {
		message = Message(CodeTaskFailure)
	}
	return &Error{
		Kind:    KindTaskFailure,
		Code:    CodeTaskFailure,
		Message: message,
		Details: map[string]any{"task_id": taskID},
	}
}

// New builds an error of any kind with the code's default message.
func New(kind Kind, code Code) *Error {
	return &Error{Kind: kind, Code: code, Message: Message(code)}
}

// From normalizes any error into *Error. Errors that already are *Error
// pass through; anything else is treated as a transport failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Network(err)
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
