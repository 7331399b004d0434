package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

const defaultAttemptsPerPage = 20

// AttemptLister reads archived attempts.
type AttemptLister interface {
	List(ctx context.Context, f model.AttemptFilter) ([]model.Attempt, int, error)
}

// AttemptHandler serves the attempt archive to operators.
type AttemptHandler struct {
	attempts AttemptLister
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptLister, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListAttempts godoc
// GET /api/v1/operator/attempts
// Lists archived attempts, newest first, optionally filtered by category.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	var f model.AttemptFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = defaultAttemptsPerPage
	}

	attempts, total, err := h.attempts.List(c.Request.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("List attempts failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts},
		response.NewPagination(f.Page, f.PerPage, total))
}
