package session

import (
	"time"

	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/grading"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Action is a synchronous state transition. Every mutation of a Store goes
// through Dispatch with one of the action types below; the set is closed.
type Action interface {
	// apply mutates s in place. A returned error leaves s as it was apart
	// from the recorded error.
	apply(s *State, now time.Time) *apperror.Error
}

// GoToSetup moves home -> setup, or results -> setup for a retry that keeps
// the selected categories and configuration.
type GoToSetup struct{}

func (GoToSetup) apply(s *State, _ time.Time) *apperror.Error {
	switch s.View {
	case model.ViewSetup:
		return nil
	case model.ViewHome:
		s.View = model.ViewSetup
		return nil
	case model.ViewResults:
		s.clearProgress()
		s.Generation++
		s.View = model.ViewSetup
		return nil
	}
	return apperror.Validation(apperror.CodeInvalidState)
}

// ToggleCategory flips membership of ID in the selected categories.
type ToggleCategory struct {
	ID string `json:"id"`
}

func (a ToggleCategory) apply(s *State, _ time.Time) *apperror.Error {
	if s.View != model.ViewSetup {
		return apperror.Validation(apperror.CodeInvalidState)
	}
	for i, c := range s.SelectedCategories {
		if c == a.ID {
			s.SelectedCategories = append(s.SelectedCategories[:i:i], s.SelectedCategories[i+1:]...)
			return nil
		}
	}
	s.SelectedCategories = append(s.SelectedCategories, a.ID)
	return nil
}

// SetQuestionMode picks which question kinds the next test draws.
type SetQuestionMode struct {
	Mode model.QuestionMode `json:"mode"`
}

func (a SetQuestionMode) apply(s *State, _ time.Time) *apperror.Error {
	if !a.Mode.Valid() {
		return apperror.Validation(apperror.CodeInvalidConfig)
	}
	if s.View != model.ViewHome && s.View != model.ViewSetup {
		return apperror.Validation(apperror.CodeInvalidState)
	}
	s.QuestionMode = a.Mode
	return nil
}

// SetConfig stores the batch size and timer flag. Range checks on
// NumQuestions belong to the caller.
type SetConfig struct {
	NumQuestions int  `json:"numQuestions"`
	TimerEnabled bool `json:"timerEnabled"`
}

func (a SetConfig) apply(s *State, _ time.Time) *apperror.Error {
	s.NumQuestionsConfig = a.NumQuestions
	s.TimerEnabled = a.TimerEnabled
	return nil
}

// SubmitAnswer upserts the answer for a question that has not been
// confirmed or checked yet.
type SubmitAnswer struct {
	QuestionID model.QuestionID `json:"questionId"`
	Answer     model.Answer     `json:"answer"`
}

func (a SubmitAnswer) apply(s *State, _ time.Time) *apperror.Error {
	if s.View != model.ViewTest {
		return apperror.Validation(apperror.CodeInvalidState)
	}
	if _, ok := s.Question(a.QuestionID); !ok {
		return apperror.Validation(apperror.CodeInvalidState).WithDetail("question_id", string(a.QuestionID))
	}
	if s.Answered[a.QuestionID] {
		return apperror.Validation(apperror.CodeAlreadyAnswered)
	}
	ans := a.Answer.Clone()
	ans.Selected = dedupe(ans.Selected)
	s.UserAnswers[a.QuestionID] = ans
	return nil
}

// ConfirmAnswer scores the current closed question: one point on an exact
// set match with the key, nothing otherwise. It also closes the timer
// interval. A question can be confirmed once.
type ConfirmAnswer struct{}

func (ConfirmAnswer) apply(s *State, now time.Time) *apperror.Error {
	if s.View != model.ViewTest {
		return apperror.Validation(apperror.CodeInvalidState)
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return apperror.Validation(apperror.CodeInvalidState)
	}
	if !q.IsClosed() {
		return apperror.Validation(apperror.CodeWrongQuestionType)
	}
	if s.Answered[q.ID] {
		return apperror.Validation(apperror.CodeAlreadyAnswered)
	}

	s.Answered[q.ID] = true
	if s.UserAnswers[q.ID].MatchesKey(q.CorrectAnswers) {
		s.Score++
	}
	s.stopTimer(now)
	return nil
}

// NextQuestion advances to the next question, or to results after the
// last one. An interval still open (an open answer skipped without
// waiting for its grade) is folded in first.
type NextQuestion struct{}

func (NextQuestion) apply(s *State, now time.Time) *apperror.Error {
	if s.View != model.ViewTest || s.IsLoading || len(s.CurrentQuestions) == 0 {
		return apperror.Validation(apperror.CodeInvalidState)
	}

	s.stopTimer(now)

	if s.CurrentQuestionIndex+1 < len(s.CurrentQuestions) {
		s.CurrentQuestionIndex++
		s.startTimer(now)
		return nil
	}

	end := now
	s.TestEndTime = &end
	s.View = model.ViewResults
	return nil
}

// ResetTest returns to home and wipes the session. The test catalog and
// theme survive.
type ResetTest struct{}

func (ResetTest) apply(s *State, _ time.Time) *apperror.Error {
	next := initialState(s.defaultNumQuestions, s.Theme)
	next.AvailableTests = s.AvailableTests
	next.Generation = s.Generation + 1
	*s = next
	return nil
}

// ReviewAnswers moves results -> review.
type ReviewAnswers struct{}

func (ReviewAnswers) apply(s *State, _ time.Time) *apperror.Error {
	switch s.View {
	case model.ViewReview:
		return nil
	case model.ViewResults:
		s.View = model.ViewReview
		return nil
	}
	return apperror.Validation(apperror.CodeInvalidState)
}

// BackToResults moves review -> results. Repeating it is harmless.
type BackToResults struct{}

func (BackToResults) apply(s *State, _ time.Time) *apperror.Error {
	switch s.View {
	case model.ViewResults:
		return nil
	case model.ViewReview:
		s.View = model.ViewResults
		return nil
	}
	return apperror.Validation(apperror.CodeInvalidState)
}

// SetError records an error. With a QuestionID it also ends that question's
// grading attempt so the answer can be checked again; without one it ends
// all of them. With a stale Generation it is dropped.
type SetError struct {
	Err        *apperror.Error  `json:"error"`
	QuestionID model.QuestionID `json:"questionId,omitempty"`
	Generation uint64           `json:"generation"`
}

func (a SetError) apply(s *State, _ time.Time) *apperror.Error {
	if a.Generation != s.Generation {
		return nil
	}
	s.Error = a.Err.Clone()
	if a.QuestionID != "" {
		s.releaseChecking(a.QuestionID)
		return nil
	}
	for id := range s.Checking {
		s.releaseChecking(id)
	}
	return nil
}

// releaseChecking drops a question's in-flight marker. An answer that was
// never graded is unlocked so it can be submitted again.
func (s *State) releaseChecking(id model.QuestionID) {
	delete(s.Checking, id)
	if res, ok := s.OpenQuestionResults[id]; ok && !res.Graded() {
		delete(s.OpenQuestionResults, id)
		delete(s.Answered, id)
	}
}

// ClearError dismisses the recorded error.
type ClearError struct{}

func (ClearError) apply(s *State, _ time.Time) *apperror.Error {
	s.Error = nil
	return nil
}

// SetLastAnswerFeedback commits a grading result for an open question:
// the clamped score is added to the total and the result is frozen.
// Results for questions outside the current attempt, stale generations or
// already graded questions are ignored.
type SetLastAnswerFeedback struct {
	QuestionID model.QuestionID      `json:"questionId"`
	Feedback   model.GradingFeedback `json:"feedback"`
	Generation uint64                `json:"generation"`
}

func (a SetLastAnswerFeedback) apply(s *State, _ time.Time) *apperror.Error {
	if a.Generation != s.Generation {
		return nil
	}
	q, ok := s.Question(a.QuestionID)
	if !ok || !q.IsOpen() {
		return nil
	}
	prev := s.OpenQuestionResults[a.QuestionID]
	if prev.Graded() {
		return nil
	}

	points := grading.ClampScore(a.Feedback.Score, q.MaxPoints)
	userAnswer := prev.UserAnswer
	if userAnswer == "" {
		userAnswer = s.UserAnswers[a.QuestionID].Text
	}

	s.Score += points
	s.OpenQuestionResults[a.QuestionID] = model.OpenQuestionResult{
		UserAnswer:    userAnswer,
		PointsAwarded: &points,
		Feedback:      a.Feedback.Feedback,
		MaxPoints:     q.MaxPoints,
	}
	s.Answered[a.QuestionID] = true
	delete(s.Checking, a.QuestionID)
	return nil
}

// SetTheme switches the display theme.
type SetTheme struct {
	Theme model.Theme `json:"theme"`
}

func (a SetTheme) apply(s *State, _ time.Time) *apperror.Error {
	if a.Theme != model.ThemeLight && a.Theme != model.ThemeDark {
		return apperror.Validation(apperror.CodeInvalidConfig)
	}
	s.Theme = a.Theme
	return nil
}

func dedupe(in []int) []int {
	if len(in) < 2 {
		return in
	}
	seen := make(map[int]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
