package gateway

import (
	"encoding/json"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/apperror"
)

// errorEnvelope is the API's error body: {error: code, message: string}.
// Older endpoints put a human sentence in "error" and omit "message".
type errorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// decodeError turns a non-2xx response into a server error, taking code and
// message from the body when present.
func decodeError(status int, body []byte) *apperror.Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperror.Server(status, "", "")
	}

	code := env.Code
	message := env.Message
	switch {
	case code == "" && looksLikeCode(env.Error):
		code = env.Error
	case message == "" && env.Error != "":
		message = env.Error
	}
	if message == "" {
		message = env.Detail
	}

	return apperror.Server(status, apperror.Code(code), message)
}

// looksLikeCode distinguishes "RATE_LIMITED" from "Something went wrong.".
func looksLikeCode(s string) bool {
	if s == "" || strings.ContainsAny(s, " .") {
		return false
	}
	return strings.ToUpper(s) == s
}
