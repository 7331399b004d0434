package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/grading"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Gateway is the part of the quiz API the store calls.
type Gateway interface {
	ListTests(ctx context.Context) ([]model.TestMetadata, error)
	GetQuestions(ctx context.Context, q model.QuestionQuery) ([]model.Question, error)
	CheckAnswer(ctx context.Context, req model.CheckAnswerRequest) (*model.CheckAnswerResponse, error)
	GetTaskResult(ctx context.Context, taskID string) (*model.TaskResult, error)
	ReportIssue(ctx context.Context, req model.ReportIssueRequest) error
}

// Catalog lists tests. It defaults to the Gateway and can be swapped for a
// cached source.
type Catalog interface {
	ListTests(ctx context.Context) ([]model.TestMetadata, error)
}

// ThemeStore persists the theme preference outside the session lifecycle.
type ThemeStore interface {
	Load(ctx context.Context) (model.Theme, error)
	Save(ctx context.Context, theme model.Theme) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithPollInterval sets the grading poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.pollInterval = d }
}

// WithDefaultNumQuestions sets the batch size of a fresh session.
func WithDefaultNumQuestions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultNum = n
		}
	}
}

// WithThemeStore enables theme persistence.
func WithThemeStore(ts ThemeStore) Option {
	return func(s *Store) { s.themes = ts }
}

// WithCatalog overrides where the test catalog comes from.
func WithCatalog(c Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

// Store is the single source of truth for one quiz session. All mutation
// happens under mu through named actions; readers get deep-copied
// snapshots and change notifications.
type Store struct {
	gw           Gateway
	catalog      Catalog
	themes       ThemeStore
	poller       *grading.Poller
	clock        Clock
	pollInterval time.Duration
	defaultNum   int
	log          zerolog.Logger

	mu    sync.Mutex
	state State
	// genCtx lives as long as the current generation. Every poll and fetch
	// started under a generation is bound to it.
	genCtx    context.Context
	genCancel context.CancelFunc

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Store in the home view.
func New(gw Gateway, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		gw:           gw,
		catalog:      gw,
		clock:        systemClock{},
		pollInterval: grading.DefaultInterval,
		defaultNum:   DefaultNumQuestions,
		log:          log.With().Str("component", "session_store").Logger(),
		subs:         make(map[int]chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.poller = grading.NewPoller(gw, s.pollInterval, log)

	theme := model.ThemeDark
	if s.themes != nil {
		if t, err := s.themes.Load(context.Background()); err == nil && t != "" {
			theme = t
		} else if err != nil {
			s.log.Warn().Err(err).Msg("Theme preference unavailable, using default")
		}
	}

	s.state = initialState(s.defaultNum, theme)
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Now is the store's clock reading, used by displays to derive elapsed time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals coalesce: a slow reader sees at least one signal after
// the latest change. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Dispatch applies a synchronous action. A rejected action is recorded as
// the state's error and returned.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	err := s.applyLocked(a)
	s.mu.Unlock()

	s.notify()
	if err != nil {
		return err
	}
	return nil
}

// applyLocked runs the reducer and ends the previous generation's
// outstanding work if the action started a new one.
func (s *Store) applyLocked(a Action) *apperror.Error {
	gen := s.state.Generation
	err := a.apply(&s.state, s.clock.Now())
	if err != nil {
		s.state.Error = err.Clone()
		s.log.Debug().Str("code", string(err.Code)).Msgf("Action %T rejected", a)
	}
	if s.state.Generation != gen {
		s.rotateGenerationLocked()
	}
	return err
}

func (s *Store) rotateGenerationLocked() {
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
}

// bind derives a context that ends when either ctx ends or the given
// generation context is cancelled.
func bind(ctx, genCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(genCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Close cancels all outstanding work and waits for background pollers.
func (s *Store) Close() {
	s.mu.Lock()
	s.genCancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the store has been closed.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// ─── Named actions ────────────────────────────────────────────────────

func (s *Store) GoToSetup() error { return s.Dispatch(GoToSetup{}) }
func (s *Store) ToggleCategory(id string) error { return s.Dispatch(ToggleCategory{ID: id}) }
func (s *Store) ConfirmAnswer() error { return s.Dispatch(ConfirmAnswer{}) }
func (s *Store) NextQuestion() error { return s.Dispatch(NextQuestion{}) }
func (s *Store) ResetTest() error { return s.Dispatch(ResetTest{}) }
func (s *Store) ReviewAnswers() error { return s.Dispatch(ReviewAnswers{}) }
func (s *Store) BackToResults() error { return s.Dispatch(BackToResults{}) }
func (s *Store) ClearError() error { return s.Dispatch(ClearError{}) }
func (s *Store) SetQuestionMode(m model.QuestionMode) error {
	return s.Dispatch(SetQuestionMode{Mode: m})
}

func (s *Store) SetConfig(num int, timerEnabled bool) error {
	return s.Dispatch(SetConfig{NumQuestions: num, TimerEnabled: timerEnabled})
}

func (s *Store) SubmitAnswer(id model.QuestionID, answer model.Answer) error {
	return s.Dispatch(SubmitAnswer{QuestionID: id, Answer: answer})
}

// SetError records err against the current generation. A non-empty
// questionID ends that question's grading attempt; an empty one ends every
// outstanding attempt.
func (s *Store) SetError(err *apperror.Error, questionID model.QuestionID) error {
	s.mu.Lock()
	a := SetError{Err: err, QuestionID: questionID, Generation: s.state.Generation}
	s.applyLocked(a)
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetLastAnswerFeedback commits a grading result for questionID against the
// current generation.
func (s *Store) SetLastAnswerFeedback(fb model.GradingFeedback, questionID model.QuestionID) error {
	s.mu.Lock()
	a := SetLastAnswerFeedback{QuestionID: questionID, Feedback: fb, Generation: s.state.Generation}
	s.applyLocked(a)
	s.mu.Unlock()
	s.notify()
	return nil
}

// ToggleTheme flips the theme and persists it. A persistence failure is
// returned but the switch stays in effect.
func (s *Store) ToggleTheme(ctx context.Context) error {
	s.mu.Lock()
	next := s.state.Theme.Toggle()
	s.applyLocked(SetTheme{Theme: next})
	s.mu.Unlock()
	s.notify()

	if s.themes == nil {
		return nil
	}
	if err := s.themes.Save(ctx, next); err != nil {
		s.log.Warn().Err(err).Str("theme", string(next)).Msg("Theme not persisted")
		return err
	}
	return nil
}
