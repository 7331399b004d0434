package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/validator"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// TokenIssuer issues and revokes hosted session tokens.
type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, sessionID uuid.UUID, clientID string) (string, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
}

// CreateSessionRequest opens a hosted session.
type CreateSessionRequest struct {
	ClientID string `json:"client_id" binding:"omitempty,max=64"`
}

// SessionHandler exposes hosted quiz sessions over HTTP.
type SessionHandler struct {
	hub    *service.SessionHub
	tokens TokenIssuer
	log    zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(hub *service.SessionHub, tokens TokenIssuer, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		hub:    hub,
		tokens: tokens,
		log:    log.With().Str("component", "session_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/sessions
// Starts a hosted session and returns its token and initial state.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	id, store := h.hub.Create(req.ClientID)
	token, err := h.tokens.IssueSessionToken(c.Request.Context(), id, req.ClientID)
	if err != nil {
		h.log.Error().Err(err).Msg("Token issue failed")
		_ = h.hub.Close(id)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id": id,
		"client_id":  req.ClientID,
		"token":      token,
		"state":      newStateView(store.Snapshot(), store.Now()),
	})
}

// GetState godoc
// GET /api/v1/session
func (h *SessionHandler) GetState(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, newStateView(store.Snapshot(), store.Now()))
}

// Dispatch godoc
// POST /api/v1/session/actions
// Applies one store action and returns the resulting state.
func (h *SessionHandler) Dispatch(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req ws.ActionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := applyAction(c.Request.Context(), store, req)
	if errors.Is(err, errUnknownAction) {
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownAction)
		return
	}
	if err != nil {
		response.FailApp(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result": result,
		"state":  newStateView(store.Snapshot(), store.Now()),
	})
}

// GetTaskResult godoc
// GET /api/v1/session/tasks/:task_id
// Polls a grading task once, without touching the session state.
func (h *SessionHandler) GetTaskResult(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	taskID := c.Param("task_id")
	if taskID == "" || len(taskID) > 128 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := store.GetTaskResult(c.Request.Context(), taskID)
	if err != nil {
		response.FailApp(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// End godoc
// DELETE /api/v1/session
func (h *SessionHandler) End(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.hub.Close(claims.SessionID); err != nil && !errors.Is(err, service.ErrSessionNotFound) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if err := h.tokens.RevokeSession(c.Request.Context(), claims.SessionID); err != nil {
		h.log.Warn().Err(err).Str("session_id", claims.SessionID.String()).Msg("Token revoke failed")
	}
	response.Success(c, http.StatusOK, gin.H{"status": "closed"})
}

func (h *SessionHandler) store(c *gin.Context) (*session.Store, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	store, err := h.hub.Get(claims.SessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	return store, true
}
