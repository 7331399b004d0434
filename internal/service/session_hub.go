package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
)

// ErrSessionNotFound is returned for unknown or reaped sessions.
var ErrSessionNotFound = errors.New("session not found")

// StoreFactory builds the store of a new hosted session.
type StoreFactory func(clientID string) *session.Store

// AttemptSink receives finished attempts for archiving.
type AttemptSink interface {
	Enqueue(ctx context.Context, a model.Attempt) error
}

type hostedSession struct {
	id       uuid.UUID
	clientID string
	store    *session.Store

	mu          sync.Mutex
	lastSeen    time.Time
	archivedGen uint64

	stop chan struct{}
}

func (h *hostedSession) touch(now time.Time) {
	h.mu.Lock()
	h.lastSeen = now
	h.mu.Unlock()
}

func (h *hostedSession) idleSince() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeen
}

// SessionHub owns the quiz stores of all hosted sessions. Each session is
// one store, driven over HTTP or WebSocket by a single client.
type SessionHub struct {
	factory StoreFactory
	sink    AttemptSink
	idle    time.Duration
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*hostedSession
	wg       sync.WaitGroup
}

// NewSessionHub creates a hub. Sessions unused for idle are reaped by Run.
func NewSessionHub(factory StoreFactory, sink AttemptSink, idle time.Duration, log zerolog.Logger) *SessionHub {
	return &SessionHub{
		factory:  factory,
		sink:     sink,
		idle:     idle,
		log:      log.With().Str("component", "session_hub").Logger(),
		sessions: make(map[uuid.UUID]*hostedSession),
	}
}

// Create starts a new hosted session.
func (h *SessionHub) Create(clientID string) (uuid.UUID, *session.Store) {
	hs := &hostedSession{
		id:       uuid.New(),
		clientID: clientID,
		store:    h.factory(clientID),
		lastSeen: time.Now(),
		stop:     make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[hs.id] = hs
	h.mu.Unlock()

	h.wg.Add(1)
	go h.watch(hs)

	h.log.Info().Str("session_id", hs.id.String()).Str("client_id", clientID).Msg("Session created")
	return hs.id, hs.store
}

// Get returns a session's store and marks the session as used.
func (h *SessionHub) Get(id uuid.UUID) (*session.Store, error) {
	hs, err := h.lookup(id)
	if err != nil {
		return nil, err
	}
	hs.touch(time.Now())
	return hs.store, nil
}

// Touch marks a session as used without fetching its store. Long-lived
// streams call it on every client frame.
func (h *SessionHub) Touch(id uuid.UUID) error {
	hs, err := h.lookup(id)
	if err != nil {
		return err
	}
	hs.touch(time.Now())
	return nil
}

func (h *SessionHub) lookup(id uuid.UUID) (*hostedSession, error) {
	h.mu.RLock()
	hs, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return hs, nil
}

// Close ends a session and cancels its outstanding grading.
func (h *SessionHub) Close(id uuid.UUID) error {
	h.mu.Lock()
	hs, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	h.shutdown(hs)
	h.log.Info().Str("session_id", id.String()).Msg("Session closed")
	return nil
}

// Len is the number of live sessions.
func (h *SessionHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Reap closes sessions idle since before now-idle and returns how many.
func (h *SessionHub) Reap(now time.Time) int {
	cutoff := now.Add(-h.idle)

	h.mu.Lock()
	var stale []*hostedSession
	for id, hs := range h.sessions {
		if hs.idleSince().Before(cutoff) {
			stale = append(stale, hs)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, hs := range stale {
		h.shutdown(hs)
	}
	if len(stale) > 0 {
		h.log.Info().Int("count", len(stale)).Msg("Idle sessions reaped")
	}
	return len(stale)
}

// Run reaps idle sessions until ctx ends, then closes all sessions.
func (h *SessionHub) Run(ctx context.Context) {
	interval := h.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case now := <-ticker.C:
			h.Reap(now)
		}
	}
}

func (h *SessionHub) closeAll() {
	h.mu.Lock()
	all := make([]*hostedSession, 0, len(h.sessions))
	for id, hs := range h.sessions {
		all = append(all, hs)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, hs := range all {
		h.shutdown(hs)
	}
	h.wg.Wait()
}

func (h *SessionHub) shutdown(hs *hostedSession) {
	close(hs.stop)
	hs.store.Close()
}

// watch archives every attempt that reaches the results screen with no
// grading outstanding, once per generation.
func (h *SessionHub) watch(hs *hostedSession) {
	defer h.wg.Done()

	changes, unsubscribe := hs.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-hs.stop:
			return
		case <-changes:
			h.maybeArchive(hs)
		}
	}
}

func (h *SessionHub) maybeArchive(hs *hostedSession) {
	st := hs.store.Snapshot()
	if st.View != model.ViewResults && st.View != model.ViewReview {
		return
	}
	if len(st.Checking) > 0 || st.TestEndTime == nil {
		return
	}

	hs.mu.Lock()
	if hs.archivedGen == st.Generation {
		hs.mu.Unlock()
		return
	}
	hs.archivedGen = st.Generation
	hs.mu.Unlock()

	a := AttemptFromState(hs.id, &st)
	if h.sink == nil {
		return
	}
	if err := h.sink.Enqueue(context.Background(), a); err != nil {
		h.log.Error().Err(err).Str("session_id", hs.id.String()).Msg("Attempt not queued")
	}
}

// AttemptFromState summarizes a finished attempt.
func AttemptFromState(sessionID uuid.UUID, st *session.State) model.Attempt {
	a := model.Attempt{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Generation:     int64(st.Generation),
		Categories:     append([]string(nil), st.SelectedCategories...),
		QuestionMode:   st.QuestionMode,
		QuestionCount:  len(st.CurrentQuestions),
		Score:          st.Score,
		MaxScore:       st.MaxScore(),
		TotalTimeSpent: st.TotalTimeSpent,
		StartedAt:      st.TestStartTime,
	}
	if st.TestEndTime != nil {
		a.FinishedAt = *st.TestEndTime
	}
	return a
}
