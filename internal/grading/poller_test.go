package grading

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of poll results.
type scriptedSource struct {
	mu      sync.Mutex
	results []*model.TaskResult
	errs    []error
	calls   int
}

func (s *scriptedSource) GetTaskResult(_ context.Context, _ string) (*model.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.results) {
		return &model.TaskResult{Status: model.TaskStatusPending}, nil
	}
	return s.results[i], nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func pending() *model.TaskResult { return &model.TaskResult{Status: model.TaskStatusPending} }

func TestAwaitStopsAtSuccess(t *testing.T) {
	src := &scriptedSource{results: []*model.TaskResult{
		pending(),
		{Status: model.TaskStatusStarted},
		{Status: model.TaskStatusSuccess, Data: json.RawMessage(`{"score":3,"feedback":"good"}`)},
	}}
	p := NewPoller(src, time.Millisecond, zerolog.Nop())

	fb, err := p.Await(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, fb.Score)
	assert.Equal(t, "good", fb.Feedback)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, src.Calls(), "no poll after terminal status")
}

func TestAwaitFailure(t *testing.T) {
	src := &scriptedSource{results: []*model.TaskResult{
		{Status: model.TaskStatusFailure, Data: json.RawMessage(`{"error":"model timeout"}`)},
	}}
	p := NewPoller(src, time.Millisecond, zerolog.Nop())

	_, err := p.Await(context.Background(), "t-2")

	var e *apperror.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperror.KindTaskFailure, e.Kind)
	assert.Equal(t, "model timeout", e.Message)
	assert.Equal(t, "t-2", e.Details["task_id"])
	assert.Equal(t, 1, src.Calls())
}

func TestAwaitTransportError(t *testing.T) {
	src := &scriptedSource{errs: []error{nil, errors.New("connection reset")}}
	p := NewPoller(src, time.Millisecond, zerolog.Nop())

	_, err := p.Await(context.Background(), "t-3")

	assert.True(t, apperror.Is(err, apperror.CodeNetwork))
	assert.Equal(t, 2, src.Calls())
}

func TestAwaitCancelled(t *testing.T) {
	src := &scriptedSource{}
	p := NewPoller(src, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := p.Watch(ctx, "t-4")
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		assert.ErrorIs(t, out.Err, context.Canceled)
		assert.Nil(t, out.Feedback)
	case <-time.After(time.Second):
		t.Fatal("watch did not finish after cancel")
	}

	calls := src.Calls()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, src.Calls(), "no polls after cancellation")
}

func TestDecodeFeedbackRequiresScore(t *testing.T) {
	_, err := DecodeFeedback(json.RawMessage(`{"feedback":"no score"}`))
	assert.True(t, apperror.Is(err, apperror.CodeInvalidResponse))

	_, err = DecodeFeedback(nil)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidResponse))
}

func TestFailureMessageShapes(t *testing.T) {
	assert.Equal(t, "boom", failureMessage(json.RawMessage(`"boom"`)))
	assert.Equal(t, "bad input", failureMessage(json.RawMessage(`{"message":"bad input"}`)))
	assert.Equal(t, "", failureMessage(json.RawMessage(`42`)))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-1, 5))
	assert.Equal(t, 5.0, ClampScore(7, 5))
	assert.Equal(t, 2.5, ClampScore(2.5, 5))
	assert.Equal(t, 9.0, ClampScore(9, 0))
}

func TestNewPollerDefaultsInterval(t *testing.T) {
	p := NewPoller(&scriptedSource{}, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, p.Interval())
}
