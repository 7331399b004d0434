package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/validator"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a hosted session over WebSocket.
type WSHandler struct {
	hub      *service.SessionHub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *service.SessionHub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(action ws.Action, msg string, detail interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteError(w.conn, action, msg, detail)
}

// SessionStream godoc
// WS /ws/v1/session/stream
// Pushes a state event on every change and accepts store actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	store, err := h.hub.Get(claims.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	wsLog := h.log.With().
		Str("session_id", claims.SessionID.String()).
		Str("client_id", claims.ClientID).
		Logger()
	wsLog.Info().Msg("Client connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()

	if err := conn.write(h.stateEvent(store)); err != nil {
		return
	}
	go h.pushState(ctx, conn, store, changes, wsLog)

	// Actions run one at a time in arrival order so a submit is applied
	// before the confirm that follows it. Pings are answered by the reader.
	actions := make(chan ws.ActionRequest, actionQueueSize)
	defer func() {
		cancel()
		close(actions)
	}()
	go h.runActions(ctx, conn, store, actions, wsLog)

	for {
		var req ws.ActionRequest
		if err := ws.ReadJSON(raw, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		_ = h.hub.Touch(claims.SessionID)

		if req.Action == ws.ActionPing {
			_ = conn.write(ws.PongResponse{Event: ws.EventPong})
			continue
		}
		if fields := validator.Struct(&req); fields != nil {
			_ = conn.writeError(req.Action, "validation failed", fields)
			continue
		}

		select {
		case actions <- req:
		case <-ctx.Done():
			return
		}
	}
}

// actionQueueSize bounds the actions a client may have outstanding before
// reads stall.
const actionQueueSize = 32

func (h *WSHandler) runActions(ctx context.Context, conn *wsConn, store *session.Store, actions <-chan ws.ActionRequest, log zerolog.Logger) {
	for req := range actions {
		if ctx.Err() != nil {
			continue
		}
		h.runAction(ctx, conn, store, req, log)
	}
}

func (h *WSHandler) runAction(ctx context.Context, conn *wsConn, store *session.Store, req ws.ActionRequest, log zerolog.Logger) {
	result, err := applyAction(ctx, store, req)
	switch {
	case errors.Is(err, errUnknownAction):
		log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		_ = conn.writeError(req.Action, "unknown action: "+string(req.Action), nil)
	case errors.Is(err, context.Canceled):
	case err != nil:
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			_ = conn.writeError(req.Action, appErr.Message, appErr)
			return
		}
		log.Error().Err(err).Str("action", string(req.Action)).Msg("Action failed")
		_ = conn.writeError(req.Action, "action failed", nil)
	default:
		_ = conn.write(ws.ResultEvent{Event: ws.EventResult, Action: req.Action, Data: result})
	}
}

func (h *WSHandler) pushState(ctx context.Context, conn *wsConn, store *session.Store, changes <-chan struct{}, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-store.Done():
			_ = conn.write(ws.StateEvent{Event: ws.EventClosing})
			_ = conn.conn.Close()
			return
		case <-changes:
			if err := conn.write(h.stateEvent(store)); err != nil {
				log.Debug().Err(err).Msg("State push failed")
				return
			}
		}
	}
}

func (h *WSHandler) stateEvent(store *session.Store) ws.StateEvent {
	return ws.StateEvent{Event: ws.EventState, State: newStateView(store.Snapshot(), store.Now())}
}
