package model

import "encoding/json"

// TaskStatus is the lifecycle state of an asynchronous grading task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusStarted TaskStatus = "STARTED"
	TaskStatusRetry   TaskStatus = "RETRY"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// Terminal reports whether polling must stop at this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// TaskResult is one poll of GET /task_result/<task_id>/.
type TaskResult struct {
	Status TaskStatus      `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// GradingFeedback is the payload of a successful grading task.
type GradingFeedback struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// CheckAnswerRequest is the body of POST /check_answer/.
type CheckAnswerRequest struct {
	QuestionText    string  `json:"questionText"`
	UserAnswer      string  `json:"userAnswer"`
	GradingCriteria string  `json:"gradingCriteria"`
	MaxPoints       float64 `json:"maxPoints"`
}

// CheckAnswerResponse covers both generations of the grading endpoint:
// an immediate score/feedback pair, or a task ID to poll.
type CheckAnswerResponse struct {
	TaskID   string   `json:"task_id,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Feedback string   `json:"feedback,omitempty"`
}

// Immediate returns the inline grading result, if the server sent one.
func (r *CheckAnswerResponse) Immediate() (*GradingFeedback, bool) {
	if r.Score == nil {
		return nil, false
	}
	return &GradingFeedback{Score: *r.Score, Feedback: r.Feedback}, true
}

// OpenQuestionResult is the finalized (or provisional) grading of an open answer.
type OpenQuestionResult struct {
	UserAnswer    string   `json:"userAnswer"`
	PointsAwarded *float64 `json:"points_awarded"`
	Feedback      string   `json:"feedback"`
	MaxPoints     float64  `json:"maxPoints"`
}

// Graded reports whether the grading service has resolved this result.
func (r OpenQuestionResult) Graded() bool {
	return r.PointsAwarded != nil
}
