package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// DefaultInterval is the pause between two polls of a grading task.
const DefaultInterval = 2 * time.Second

// TaskSource returns the current status of a grading task.
type TaskSource interface {
	GetTaskResult(ctx context.Context, taskID string) (*model.TaskResult, error)
}

// Outcome is the single terminal result of a watched task.
type Outcome struct {
	TaskID   string
	Feedback *model.GradingFeedback
	Err      error
}

// Poller polls grading tasks on a fixed interval until they reach a
// terminal status. No request is issued after the terminal one.
type Poller struct {
	src      TaskSource
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a Poller. A non-positive interval means DefaultInterval.
func NewPoller(src TaskSource, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		src:      src,
		interval: interval,
		log:      log.With().Str("component", "grading_poller").Logger(),
	}
}

// Interval returns the configured poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Await blocks until the task succeeds, fails, the transport fails or ctx
// is done. The first poll happens one interval after the call.
//
// On FAILURE the returned error is an *apperror.Error of KindTaskFailure.
// On cancellation it is ctx.Err().
func (p *Poller) Await(ctx context.Context, taskID string) (*model.GradingFeedback, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Str("task_id", taskID).Int("polls", polls).Msg("Polling cancelled")
			return nil, ctx.Err()
		case <-ticker.C:
		}

		polls++
		res, err := p.src.GetTaskResult(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn().Err(err).Str("task_id", taskID).Msg("Task poll failed")
			return nil, apperror.From(err)
		}

		switch res.Status {
		case model.TaskStatusSuccess:
			fb, err := DecodeFeedback(res.Data)
			if err != nil {
				return nil, err
			}
			p.log.Debug().Str("task_id", taskID).Int("polls", polls).Float64("score", fb.Score).Msg("Task graded")
			return fb, nil
		case model.TaskStatusFailure:
			p.log.Info().Str("task_id", taskID).Int("polls", polls).Msg("Task failed")
			return nil, apperror.TaskFailure(taskID, failureMessage(res.Data))
		}
	}
}

// Watch runs Await in the background and delivers exactly one Outcome on
// the returned channel, which is then closed.
func (p *Poller) Watch(ctx context.Context, taskID string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		fb, err := p.Await(ctx, taskID)
		out <- Outcome{TaskID: taskID, Feedback: fb, Err: err}
	}()
	return out
}

// DecodeFeedback reads {score, feedback} from a SUCCESS payload.
func DecodeFeedback(data json.RawMessage) (*model.GradingFeedback, error) {
	var raw struct {
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
	}
	if len(data) == 0 {
		return nil, apperror.InvalidResponse(fmt.Errorf("empty grading payload"))
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperror.InvalidResponse(fmt.Errorf("decode grading payload: %w", err))
	}
	if raw.Score == nil {
		return nil, apperror.InvalidResponse(fmt.Errorf("grading payload without score"))
	}
	return &model.GradingFeedback{Score: *raw.Score, Feedback: raw.Feedback}, nil
}

// failureMessage pulls a human message out of a FAILURE payload, which is
// either a bare string or an object with "message" or "error".
func failureMessage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Error
	}
	return ""
}

// ClampScore bounds an awarded score to [0, maxPoints]. A question without a
// ceiling (maxPoints <= 0) only gets the lower bound.
func ClampScore(score, maxPoints float64) float64 {
	if score < 0 {
		return 0
	}
	if maxPoints > 0 && score > maxPoints {
		return maxPoints
	}
	return score
}
