package websocket

import (
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing            Action = "ping"
	ActionGoToSetup       Action = "go_to_setup"
	ActionToggleCategory  Action = "toggle_category"
	ActionSetQuestionMode Action = "set_question_mode"
	ActionSetConfig       Action = "set_config"
	ActionSubmitAnswer    Action = "submit_answer"
	ActionConfirmAnswer   Action = "confirm_answer"
	ActionNextQuestion    Action = "next_question"
	ActionResetTest       Action = "reset_test"
	ActionReviewAnswers   Action = "review_answers"
	ActionBackToResults   Action = "back_to_results"
	ActionClearError      Action = "clear_error"
	ActionToggleTheme     Action = "toggle_theme"
	ActionFetchTests      Action = "fetch_tests"
	ActionStartTest       Action = "start_test"
	ActionCheckOpenAnswer Action = "check_open_answer"
	ActionReportIssue     Action = "report_issue"
)

// ActionRequest is one store action, over HTTP or WebSocket. Only the
// fields the action needs are read.
type ActionRequest struct {
	Action       Action             `json:"action" binding:"required"`
	CategoryID   string             `json:"category_id,omitempty"`
	Mode         model.QuestionMode `json:"mode,omitempty"`
	NumQuestions int                `json:"num_questions,omitempty" binding:"omitempty,min=1,max=100"`
	TimerEnabled bool               `json:"timer_enabled,omitempty"`
	QuestionID   model.QuestionID   `json:"question_id,omitempty"`
	Answer       model.Answer       `json:"answer,omitempty"`
	UserAnswer   string             `json:"user_answer,omitempty" binding:"max=10000"`
	IssueType    model.IssueType    `json:"issue_type,omitempty"`
	Description  string             `json:"description,omitempty" binding:"max=2000"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventResult  Event = "result"
	EventError   Event = "error"
	EventPong    Event = "pong"
	EventClosing Event = "closing"
)

// StateEvent carries a full state snapshot after every change.
type StateEvent struct {
	Event Event       `json:"event"`
	State interface{} `json:"state,omitempty"`
}

// ResultEvent answers an action with its own return value, if any.
type ResultEvent struct {
	Event  Event       `json:"event"`
	Action Action      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event  Event       `json:"event"`
	Action Action      `json:"action,omitempty"`
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
