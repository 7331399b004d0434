package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// QuestionType enumerates the question kinds served by the quiz API.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "single-choice"
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeOpenEnded      QuestionType = "open-ended"
)

// QuestionID identifies a question. The API emits either JSON strings or
// numbers for it; both decode to the same textual form.
type QuestionID string

// UnmarshalJSON accepts `"q1"` as well as `17`.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = QuestionID(n.String())
	return nil
}

// QuestionIDFromInt is a convenience for fixtures keyed by number.
func QuestionIDFromInt(n int) QuestionID {
	return QuestionID(strconv.Itoa(n))
}

// Question is a single quiz question. It is immutable once fetched for a session.
type Question struct {
	ID              QuestionID   `json:"id"`
	TestID          string       `json:"test_id,omitempty"`
	QuestionText    string       `json:"questionText"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options,omitempty"`
	CorrectAnswers  []int        `json:"correctAnswers,omitempty"`
	Explanation     string       `json:"explanation,omitempty"`
	Image           string       `json:"image,omitempty"`
	GradingCriteria string       `json:"gradingCriteria,omitempty"`
	MaxPoints       float64      `json:"maxPoints,omitempty"`
}

// IsOpen reports whether the question is graded externally from free text.
func (q *Question) IsOpen() bool {
	return q.Type == QuestionTypeOpenEnded
}

// IsClosed reports whether the question is scored against an answer key.
func (q *Question) IsClosed() bool {
	return q.Type == QuestionTypeSingleChoice || q.Type == QuestionTypeMultipleChoice
}

// IsCorrectOption reports whether option index i is part of the answer key.
func (q *Question) IsCorrectOption(i int) bool {
	for _, c := range q.CorrectAnswers {
		if c == i {
			return true
		}
	}
	return false
}

// MaxScore is what the question contributes to the achievable total:
// one point for a closed question, MaxPoints for an open one.
func (q *Question) MaxScore() float64 {
	if q.IsOpen() {
		return q.MaxPoints
	}
	return 1
}
