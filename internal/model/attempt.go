package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is the archived summary of one finished hosted session.
type Attempt struct {
	ID             uuid.UUID    `json:"id"`
	SessionID      uuid.UUID    `json:"session_id"`
	Generation     int64        `json:"generation"`
	Categories     []string     `json:"categories"`
	QuestionMode   QuestionMode `json:"question_mode"`
	QuestionCount  int          `json:"question_count"`
	Score          float64      `json:"score"`
	MaxScore       float64      `json:"max_score"`
	TotalTimeSpent int          `json:"total_time_spent"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	FinishedAt     time.Time    `json:"finished_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AttemptFilter narrows an attempt listing.
type AttemptFilter struct {
	Category string `form:"category"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PerPage  int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}
