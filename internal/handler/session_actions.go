package handler

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// errUnknownAction marks an action name the store does not have.
var errUnknownAction = errors.New("unknown action")

// StateView is a state snapshot plus the values a display derives from it.
type StateView struct {
	session.State
	Elapsed    int     `json:"elapsed"`
	MaxScore   float64 `json:"maxScore"`
	Percentage int     `json:"percentage"`
}

func newStateView(st session.State, now time.Time) StateView {
	return StateView{
		State:      st,
		Elapsed:    st.Elapsed(now),
		MaxScore:   st.MaxScore(),
		Percentage: st.Percentage(),
	}
}

// gradingHandle is what check_open_answer returns.
type gradingHandle struct {
	QuestionID model.QuestionID `json:"question_id"`
	TaskID     string           `json:"task_id,omitempty"`
}

// applyAction runs one named action against a store. The first return
// value is the action's own result, if it has one.
func applyAction(ctx context.Context, store *session.Store, req ws.ActionRequest) (interface{}, error) {
	switch req.Action {
	case ws.ActionGoToSetup:
		return nil, store.GoToSetup()
	case ws.ActionToggleCategory:
		return nil, store.ToggleCategory(req.CategoryID)
	case ws.ActionSetQuestionMode:
		return nil, store.SetQuestionMode(req.Mode)
	case ws.ActionSetConfig:
		num := req.NumQuestions
		if num == 0 {
			num = store.Snapshot().NumQuestionsConfig
		}
		return nil, store.SetConfig(num, req.TimerEnabled)
	case ws.ActionSubmitAnswer:
		return nil, store.SubmitAnswer(req.QuestionID, req.Answer)
	case ws.ActionConfirmAnswer:
		return nil, store.ConfirmAnswer()
	case ws.ActionNextQuestion:
		return nil, store.NextQuestion()
	case ws.ActionResetTest:
		return nil, store.ResetTest()
	case ws.ActionReviewAnswers:
		return nil, store.ReviewAnswers()
	case ws.ActionBackToResults:
		return nil, store.BackToResults()
	case ws.ActionClearError:
		return nil, store.ClearError()
	case ws.ActionToggleTheme:
		return nil, store.ToggleTheme(ctx)
	case ws.ActionFetchTests:
		return nil, store.FetchAvailableTests(ctx)
	case ws.ActionStartTest:
		return nil, store.StartTest(ctx)
	case ws.ActionCheckOpenAnswer:
		h, err := store.CheckOpenAnswer(ctx, req.UserAnswer)
		if err != nil {
			return nil, err
		}
		return gradingHandle{QuestionID: h.QuestionID, TaskID: h.TaskID}, nil
	case ws.ActionReportIssue:
		if err := store.ReportIssue(ctx, req.QuestionID, req.IssueType, req.Description); err != nil {
			return nil, err
		}
		return map[string]string{"status": "reported"}, nil
	}
	return nil, errUnknownAction
}
