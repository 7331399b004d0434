package session

import (
	"context"
	"errors"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// GradingHandle tracks one open answer's grading. Done is closed once the
// result (or error) has been committed to the store, or dropped because its
// session ended.
type GradingHandle struct {
	QuestionID model.QuestionID
	TaskID     string
	done       chan struct{}
}

// Done is closed when grading has settled.
func (h *GradingHandle) Done() <-chan struct{} {
	return h.done
}

// CheckOpenAnswer submits the current open question's answer for grading.
// It closes the timer interval, records the answer as a provisional
// result, and returns once the grading service has accepted the answer;
// polling continues in the background and commits by question ID, so the
// user may move on before the grade arrives.
func (s *Store) CheckOpenAnswer(ctx context.Context, userAnswer string) (*GradingHandle, error) {
	s.mu.Lock()
	q, appErr := s.openQuestionLocked(userAnswer)
	if appErr != nil {
		s.state.Error = appErr.Clone()
		s.mu.Unlock()
		s.notify()
		return nil, appErr
	}

	now := s.clock.Now()
	s.state.stopTimer(now)
	s.state.UserAnswers[q.ID] = model.Answer{Text: userAnswer}
	s.state.Answered[q.ID] = true
	s.state.OpenQuestionResults[q.ID] = model.OpenQuestionResult{
		UserAnswer: userAnswer,
		MaxPoints:  q.MaxPoints,
	}
	s.state.Checking[q.ID] = ""
	s.state.Error = nil

	gen := s.state.Generation
	genCtx := s.genCtx
	req := model.CheckAnswerRequest{
		QuestionText:    q.QuestionText,
		UserAnswer:      userAnswer,
		GradingCriteria: q.GradingCriteria,
		MaxPoints:       q.MaxPoints,
	}
	s.mu.Unlock()
	s.notify()

	handle := &GradingHandle{QuestionID: q.ID, done: make(chan struct{})}

	reqCtx, cancel := bind(ctx, genCtx)
	resp, err := s.gw.CheckAnswer(reqCtx, req)
	cancel()

	if err != nil {
		if genCtx.Err() != nil {
			close(handle.done)
			return nil, context.Canceled
		}
		appErr := apperror.From(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			appErr = apperror.Network(err)
		}
		s.commitError(appErr, q.ID, gen)
		close(handle.done)
		return nil, appErr
	}

	if fb, ok := resp.Immediate(); ok {
		s.commitFeedback(*fb, q.ID, gen)
		close(handle.done)
		return handle, nil
	}

	if resp.TaskID == "" {
		appErr := apperror.New(apperror.KindServer, apperror.CodeMissingTaskID)
		s.commitError(appErr, q.ID, gen)
		close(handle.done)
		return nil, appErr
	}

	handle.TaskID = resp.TaskID

	// The poller is registered under mu so Close either sees it in wg or
	// has already cancelled the generation.
	s.mu.Lock()
	if genCtx.Err() != nil || s.state.Generation != gen {
		s.mu.Unlock()
		close(handle.done)
		return nil, context.Canceled
	}
	if _, ok := s.state.Checking[q.ID]; ok {
		s.state.Checking[q.ID] = resp.TaskID
	}
	s.wg.Add(1)
	s.mu.Unlock()
	s.notify()

	s.log.Debug().Str("question_id", string(q.ID)).Str("task_id", resp.TaskID).Msg("Grading task accepted")

	outcomes := s.poller.Watch(genCtx, resp.TaskID)
	go func() {
		defer s.wg.Done()
		defer close(handle.done)

		out := <-outcomes
		switch {
		case out.Err == nil:
			s.commitFeedback(*out.Feedback, q.ID, gen)
		case errors.Is(out.Err, context.Canceled):
			// The generation ended; nothing may be written.
		default:
			s.commitError(apperror.From(out.Err), q.ID, gen)
		}
	}()

	return handle, nil
}

// openQuestionLocked validates that the current question accepts a free-text
// answer right now.
func (s *Store) openQuestionLocked(userAnswer string) (model.Question, *apperror.Error) {
	if s.state.View != model.ViewTest {
		return model.Question{}, apperror.Validation(apperror.CodeInvalidState)
	}
	q, ok := s.state.CurrentQuestion()
	if !ok {
		return model.Question{}, apperror.Validation(apperror.CodeInvalidState)
	}
	if !q.IsOpen() {
		return model.Question{}, apperror.Validation(apperror.CodeWrongQuestionType)
	}
	if s.state.Answered[q.ID] || s.state.IsChecking(q.ID) {
		return model.Question{}, apperror.Validation(apperror.CodeAlreadyAnswered)
	}
	if strings.TrimSpace(userAnswer) == "" {
		return model.Question{}, apperror.Validation(apperror.CodeEmptyAnswer)
	}
	return *q, nil
}

func (s *Store) commitFeedback(fb model.GradingFeedback, id model.QuestionID, gen uint64) {
	s.mu.Lock()
	s.applyLocked(SetLastAnswerFeedback{QuestionID: id, Feedback: fb, Generation: gen})
	s.mu.Unlock()
	s.notify()
}

func (s *Store) commitError(err *apperror.Error, id model.QuestionID, gen uint64) {
	s.mu.Lock()
	s.applyLocked(SetError{Err: err, QuestionID: id, Generation: gen})
	s.mu.Unlock()
	s.notify()
	s.log.Warn().Err(err).Str("question_id", string(id)).Msg("Open answer grading failed")
}

// GetTaskResult polls a grading task once. It does not touch the state.
func (s *Store) GetTaskResult(ctx context.Context, taskID string) (*model.TaskResult, error) {
	return s.gw.GetTaskResult(ctx, taskID)
}
