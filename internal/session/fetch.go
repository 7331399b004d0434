package session

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// FetchAvailableTests loads the test catalog. Entries without question
// counts get zeroed counts.
func (s *Store) FetchAvailableTests(ctx context.Context) error {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Error = nil
	s.mu.Unlock()
	s.notify()

	tests, err := s.catalog.ListTests(ctx)

	s.mu.Lock()
	s.state.IsLoading = false
	if err != nil {
		appErr := apperror.From(err)
		s.state.Error = appErr.Clone()
		s.mu.Unlock()
		s.notify()
		s.log.Warn().Err(err).Msg("Test catalog fetch failed")
		return appErr
	}
	for i := range tests {
		if tests[i].QuestionCounts == nil {
			tests[i].QuestionCounts = &model.QuestionCounts{}
		}
	}
	s.state.AvailableTests = tests
	s.mu.Unlock()
	s.notify()
	return nil
}

// StartTest begins a test attempt from the setup view. With no category
// selected it records a validation error and makes no request. Otherwise it
// switches to the test view, fetches the batch and starts the timer; on
// failure it falls back to setup with the error recorded.
func (s *Store) StartTest(ctx context.Context) error {
	s.mu.Lock()
	if s.state.View != model.ViewSetup {
		err := apperror.Validation(apperror.CodeInvalidState)
		s.state.Error = err.Clone()
		s.mu.Unlock()
		s.notify()
		return err
	}
	if len(s.state.SelectedCategories) == 0 {
		err := apperror.Validation(apperror.CodeNoCategorySelected)
		s.state.Error = err.Clone()
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.state.clearProgress()
	s.state.Generation++
	s.rotateGenerationLocked()
	s.state.View = model.ViewTest
	s.state.IsLoading = true
	s.state.Error = nil

	gen := s.state.Generation
	genCtx := s.genCtx
	query := model.QuestionQuery{
		Categories:   append([]string(nil), s.state.SelectedCategories...),
		NumQuestions: s.state.NumQuestionsConfig,
		Mode:         s.state.QuestionMode,
	}
	s.mu.Unlock()
	s.notify()

	reqCtx, cancel := bind(ctx, genCtx)
	questions, err := s.gw.GetQuestions(reqCtx, query)
	cancel()

	if err == nil && len(questions) == 0 {
		err = apperror.New(apperror.KindServer, apperror.CodeNoQuestions)
	}

	s.mu.Lock()
	if s.state.Generation != gen {
		// Reset or restarted while the request was in flight.
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("Dropping stale question batch")
		return context.Canceled
	}

	s.state.IsLoading = false
	if err != nil {
		appErr := apperror.From(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			appErr = apperror.Network(err)
		}
		s.state.View = model.ViewSetup
		s.state.Error = appErr.Clone()
		s.mu.Unlock()
		s.notify()
		s.log.Warn().Err(err).Strs("categories", query.Categories).Msg("Question fetch failed")
		return appErr
	}

	now := s.clock.Now()
	s.state.CurrentQuestions = questions
	s.state.TestStartTime = &now
	s.state.startTimer(now)
	s.mu.Unlock()
	s.notify()

	s.log.Info().
		Int("questions", len(questions)).
		Str("mode", string(query.Mode)).
		Strs("categories", query.Categories).
		Msg("Test started")
	return nil
}
