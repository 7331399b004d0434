package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// ReportIssue files a user report about a question of the current attempt.
// An AI grading report needs a graded result, which is attached as a JSON
// snapshot. The outcome is returned to the caller and does not touch the
// store's error slot.
func (s *Store) ReportIssue(ctx context.Context, questionID model.QuestionID, issueType model.IssueType, description string) error {
	s.mu.Lock()
	req, appErr := s.buildReportLocked(questionID, issueType, description)
	s.mu.Unlock()
	if appErr != nil {
		return appErr
	}

	if fields := validator.Struct(req); fields != nil {
		err := apperror.Validation(apperror.CodeInvalidReport)
		for k, v := range fields {
			err = err.WithDetail(k, v)
		}
		return err
	}

	if err := s.gw.ReportIssue(ctx, *req); err != nil {
		s.log.Warn().Err(err).Str("question_id", string(questionID)).Msg("Issue report failed")
		return apperror.From(err)
	}

	s.log.Info().
		Str("question_id", string(questionID)).
		Str("issue_type", string(issueType)).
		Msg("Issue reported")
	return nil
}

func (s *Store) buildReportLocked(id model.QuestionID, issueType model.IssueType, description string) (*model.ReportIssueRequest, *apperror.Error) {
	q, ok := s.state.Question(id)
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidReport).WithDetail("question", "unknown question")
	}

	test := q.TestID
	if test == "" && len(s.state.SelectedCategories) > 0 {
		test = s.state.SelectedCategories[0]
	}

	req := &model.ReportIssueRequest{
		Question:    q.ID,
		Test:        test,
		IssueType:   issueType,
		Description: description,
	}

	if issueType == model.IssueAIGradingError {
		res, ok := s.state.OpenQuestionResults[id]
		if !ok || !res.Graded() {
			return nil, apperror.Validation(apperror.CodeInvalidReport).WithDetail("issue_type", "question has no AI feedback")
		}
		snap, err := json.Marshal(res)
		if err != nil {
			return nil, apperror.Validation(apperror.CodeInvalidReport).WithDetail("ai_feedback_snapshot", err.Error())
		}
		str := string(snap)
		req.AIFeedbackSnapshot = &str
	}

	ans, answered := s.state.UserAnswers[id]
	switch {
	case !answered:
	case q.IsOpen():
		text := ans.Text
		req.UserAnswerOpen = &text
	default:
		for _, i := range ans.Selected {
			if i >= 0 && i < len(q.Options) {
				req.UserAnswerChoices = append(req.UserAnswerChoices, q.Options[i])
			} else {
				req.UserAnswerChoices = append(req.UserAnswerChoices, fmt.Sprintf("#%d", i))
			}
		}
	}
	return req, nil
}
