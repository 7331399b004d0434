package model

// IssueType classifies a user report about a question.
type IssueType string

const (
	IssueQuestionError  IssueType = "QUESTION_ERROR"
	IssueAIGradingError IssueType = "AI_GRADING_ERROR"
)

// ReportIssueRequest is the body of POST /report_issue/.
type ReportIssueRequest struct {
	Question           QuestionID `json:"question" binding:"required"`
	Test               string     `json:"test" binding:"required"`
	IssueType          IssueType  `json:"issue_type" binding:"required,oneof=QUESTION_ERROR AI_GRADING_ERROR"`
	Description        string     `json:"description" binding:"max=2000"`
	AIFeedbackSnapshot *string    `json:"ai_feedback_snapshot"`
	UserAnswerOpen     *string    `json:"user_answer_open,omitempty"`
	UserAnswerChoices  []string   `json:"user_answer_choices,omitempty"`
}
