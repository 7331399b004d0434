package session

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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeGateway serves canned questions and grading results.
type fakeGateway struct {
	mu sync.Mutex

	tests     []model.TestMetadata
	questions []model.Question
	listErr   error
	fetchErr  error
	checkErr  error
	reportErr error

	// checkResp overrides the default task-based response.
	checkResp *model.CheckAnswerResponse
	// results maps task ID to what every poll returns.
	results map[string]*model.TaskResult
	// fetchGate, when set, blocks GetQuestions until closed.
	fetchGate chan struct{}
	// checkGate, when set, holds a CheckAnswer response until closed, as
	// if it were already on the wire.
	checkGate chan struct{}

	fetchCalls int
	checkCalls int
	polls      int
	lastQuery  model.QuestionQuery
	reports    []model.ReportIssueRequest
}

func (g *fakeGateway) ListTests(context.Context) ([]model.TestMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]model.TestMetadata, len(g.tests))
	copy(out, g.tests)
	return out, nil
}

func (g *fakeGateway) GetQuestions(ctx context.Context, q model.QuestionQuery) ([]model.Question, error) {
	g.mu.Lock()
	g.fetchCalls++
	g.lastQuery = q
	gate := g.fetchGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]model.Question, len(g.questions))
	copy(out, g.questions)
	return out, nil
}

func (g *fakeGateway) CheckAnswer(_ context.Context, req model.CheckAnswerRequest) (*model.CheckAnswerResponse, error) {
	g.mu.Lock()
	g.checkCalls++
	gate := g.checkGate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkErr != nil {
		return nil, g.checkErr
	}
	if g.checkResp != nil {
		return g.checkResp, nil
	}
	return &model.CheckAnswerResponse{TaskID: "task-" + req.QuestionText}, nil
}

func (g *fakeGateway) GetTaskResult(_ context.Context, taskID string) (*model.TaskResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if res, ok := g.results[taskID]; ok {
		return res, nil
	}
	return &model.TaskResult{Status: model.TaskStatusPending}, nil
}

func (g *fakeGateway) ReportIssue(_ context.Context, req model.ReportIssueRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reportErr != nil {
		return g.reportErr
	}
	g.reports = append(g.reports, req)
	return nil
}

func (g *fakeGateway) counts() (checks, polls int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkCalls, g.polls
}

func (g *fakeGateway) setResult(taskID string, res *model.TaskResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.results == nil {
		g.results = map[string]*model.TaskResult{}
	}
	g.results[taskID] = res
}

func success(score float64, feedback string) *model.TaskResult {
	data, _ := json.Marshal(model.GradingFeedback{Score: score, Feedback: feedback})
	return &model.TaskResult{Status: model.TaskStatusSuccess, Data: data}
}

func closedQ(id string, correct ...int) model.Question {
	return model.Question{
		ID:             model.QuestionID(id),
		TestID:         "history",
		QuestionText:   "Q" + id,
		Type:           model.QuestionTypeMultipleChoice,
		Options:        []string{"a", "b", "c", "d"},
		CorrectAnswers: correct,
	}
}

func openQ(id string, max float64) model.Question {
	return model.Question{
		ID:              model.QuestionID(id),
		TestID:          "history",
		QuestionText:    "Q" + id,
		Type:            model.QuestionTypeOpenEnded,
		GradingCriteria: "mentions the treaty",
		MaxPoints:       max,
	}
}

func newTestStore(t *testing.T, gw *fakeGateway) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := New(gw, zerolog.Nop(), WithClock(clock), WithPollInterval(2*time.Millisecond))
	t.Cleanup(s.Close)
	return s, clock
}

// startedStore returns a store in the test view with gw's questions.
func startedStore(t *testing.T, gw *fakeGateway) (*Store, *fakeClock) {
	t.Helper()
	s, clock := newTestStore(t, gw)
	require.NoError(t, s.GoToSetup())
	require.NoError(t, s.ToggleCategory("history"))
	require.NoError(t, s.StartTest(context.Background()))
	return s, clock
}

func waitDone(t *testing.T, h *GradingHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("grading did not settle")
	}
}

func TestNewStoreInitialState(t *testing.T) {
	s, _ := newTestStore(t, &fakeGateway{})
	st := s.Snapshot()

	assert.Equal(t, model.ViewHome, st.View)
	assert.Equal(t, DefaultNumQuestions, st.NumQuestionsConfig)
	assert.Equal(t, model.QuestionModeClosed, st.QuestionMode)
	assert.Equal(t, model.ThemeDark, st.Theme)
	assert.Empty(t, st.SelectedCategories)
	assert.False(t, st.IsTimerRunning)
	assert.Zero(t, st.TotalTimeSpent)
}

func TestToggleCategory(t *testing.T) {
	s, _ := newTestStore(t, &fakeGateway{})
	require.NoError(t, s.GoToSetup())

	require.NoError(t, s.ToggleCategory("history"))
	require.NoError(t, s.ToggleCategory("biology"))
	assert.Equal(t, []string{"history", "biology"}, s.Snapshot().SelectedCategories)

	require.NoError(t, s.ToggleCategory("history"))
	assert.Equal(t, []string{"biology"}, s.Snapshot().SelectedCategories)

	require.NoError(t, s.ToggleCategory("biology"))
	assert.Empty(t, s.Snapshot().SelectedCategories)
}

func TestToggleCategoryOutsideSetup(t *testing.T) {
	s, _ := newTestStore(t, &fakeGateway{})

	err := s.ToggleCategory("history")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	assert.Empty(t, s.Snapshot().SelectedCategories)
	require.NotNil(t, s.Snapshot().Error)
}

func TestSetQuestionModeRejectsUnknown(t *testing.T) {
	s, _ := newTestStore(t, &fakeGateway{})
	require.NoError(t, s.SetQuestionMode(model.QuestionModeMixed))

	err := s.SetQuestionMode("trick")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidConfig))
	assert.Equal(t, model.QuestionModeMixed, s.Snapshot().QuestionMode)
}

func TestStartTestWithoutCategories(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, _ := newTestStore(t, gw)
	require.NoError(t, s.GoToSetup())

	err := s.StartTest(context.Background())
	assert.True(t, apperror.Is(err, apperror.CodeNoCategorySelected))

	st := s.Snapshot()
	assert.Equal(t, model.ViewSetup, st.View)
	require.NotNil(t, st.Error)
	assert.Equal(t, apperror.KindValidation, st.Error.Kind)
	assert.Zero(t, gw.fetchCalls)
}

func TestStartTestSeedsQuestionsAndTimer(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0), openQ("2", 5)}}
	s, clock := newTestStore(t, gw)
	require.NoError(t, s.GoToSetup())
	require.NoError(t, s.ToggleCategory("history"))
	require.NoError(t, s.SetConfig(2, true))
	require.NoError(t, s.SetQuestionMode(model.QuestionModeMixed))

	require.NoError(t, s.StartTest(context.Background()))

	st := s.Snapshot()
	assert.Equal(t, model.ViewTest, st.View)
	assert.Len(t, st.CurrentQuestions, 2)
	assert.Zero(t, st.CurrentQuestionIndex)
	assert.Zero(t, st.Score)
	assert.True(t, st.IsTimerRunning)
	require.NotNil(t, st.QuestionStartTime)
	assert.Equal(t, clock.Now(), *st.QuestionStartTime)
	require.NotNil(t, st.TestStartTime)
	assert.False(t, st.IsLoading)

	assert.Equal(t, model.QuestionQuery{
		Categories:   []string{"history"},
		NumQuestions: 2,
		Mode:         model.QuestionModeMixed,
	}, gw.lastQuery)
}

func TestStartTestFailureRevertsToSetup(t *testing.T) {
	cases := []struct {
		name string
		gw   *fakeGateway
		code apperror.Code
	}{
		{"server error", &fakeGateway{fetchErr: apperror.Server(500, "", "")}, apperror.HTTPStatusCode(500)},
		{"empty batch", &fakeGateway{}, apperror.CodeNoQuestions},
		{"transport", &fakeGateway{fetchErr: errors.New("connection refused")}, apperror.CodeNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestStore(t, tc.gw)
			require.NoError(t, s.GoToSetup())
			require.NoError(t, s.ToggleCategory("history"))

			err := s.StartTest(context.Background())
			assert.True(t, apperror.Is(err, tc.code), "got %v", err)

			st := s.Snapshot()
			assert.Equal(t, model.ViewSetup, st.View)
			assert.Empty(t, st.CurrentQuestions)
			assert.False(t, st.IsLoading)
			assert.False(t, st.IsTimerRunning)
			require.NotNil(t, st.Error)
			assert.Equal(t, tc.code, st.Error.Code)
		})
	}
}

func TestStartTestDroppedAfterReset(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}, fetchGate: gate}
	s, _ := newTestStore(t, gw)
	require.NoError(t, s.GoToSetup())
	require.NoError(t, s.ToggleCategory("history"))

	done := make(chan error, 1)
	go func() { done <- s.StartTest(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.Snapshot().View == model.ViewTest
	}, time.Second, time.Millisecond)
	require.NoError(t, s.ResetTest())

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	st := s.Snapshot()
	assert.Equal(t, model.ViewHome, st.View)
	assert.Empty(t, st.CurrentQuestions)
	assert.False(t, st.IsTimerRunning)
}

func TestConfirmAnswerExactSetMatch(t *testing.T) {
	cases := []struct {
		name     string
		selected []int
		want     float64
	}{
		{"exact in order", []int{0, 2}, 1},
		{"exact reversed", []int{2, 0}, 1},
		{"subset", []int{0}, 0},
		{"superset", []int{0, 1, 2}, 0},
		{"nothing selected", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{questions: []model.Question{closedQ("1", 0, 2)}}
			s, _ := startedStore(t, gw)

			if tc.selected != nil {
				require.NoError(t, s.SubmitAnswer("1", model.Answer{Selected: tc.selected}))
			}
			require.NoError(t, s.ConfirmAnswer())

			st := s.Snapshot()
			assert.Equal(t, tc.want, st.Score)
			assert.True(t, st.Answered["1"])
		})
	}
}

func TestConfirmAnswerTwiceIsRejected(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 1), closedQ("2", 0)}}
	s, _ := startedStore(t, gw)

	require.NoError(t, s.SubmitAnswer("1", model.Answer{Selected: []int{1}}))
	require.NoError(t, s.ConfirmAnswer())

	err := s.ConfirmAnswer()
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyAnswered))
	assert.Equal(t, 1.0, s.Snapshot().Score)

	err = s.SubmitAnswer("1", model.Answer{Selected: []int{0}})
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyAnswered))
	assert.Equal(t, []int{1}, s.Snapshot().UserAnswers["1"].Selected)
}

func TestConfirmAnswerOnOpenQuestion(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	s, _ := startedStore(t, gw)

	err := s.ConfirmAnswer()
	assert.True(t, apperror.Is(err, apperror.CodeWrongQuestionType))
}

func TestTimerAccumulatesOnConfirm(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0), closedQ("2", 0)}}
	s, clock := startedStore(t, gw)

	clock.Advance(5*time.Second + 700*time.Millisecond)
	require.NoError(t, s.ConfirmAnswer())

	st := s.Snapshot()
	assert.Equal(t, 5, st.TotalTimeSpent)
	assert.False(t, st.IsTimerRunning)
	assert.Nil(t, st.QuestionStartTime)

	// Idle time between confirm and next is not counted.
	clock.Advance(30 * time.Second)
	require.NoError(t, s.NextQuestion())
	st = s.Snapshot()
	assert.Equal(t, 5, st.TotalTimeSpent)
	assert.True(t, st.IsTimerRunning)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 7, st.Elapsed(clock.Now()))
	assert.Equal(t, 5, s.Snapshot().TotalTimeSpent)
}

func TestNextQuestionFoldsOpenInterval(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5), closedQ("2", 0)}}
	s, clock := startedStore(t, gw)

	clock.Advance(4 * time.Second)
	require.NoError(t, s.NextQuestion())

	st := s.Snapshot()
	assert.Equal(t, 4, st.TotalTimeSpent)
	assert.Equal(t, 1, st.CurrentQuestionIndex)
	assert.True(t, st.IsTimerRunning)
}

func TestTimerIgnoresClockSteppingBack(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, clock := startedStore(t, gw)

	clock.Advance(-10 * time.Second)
	require.NoError(t, s.ConfirmAnswer())
	assert.Zero(t, s.Snapshot().TotalTimeSpent)
}

func TestTwoQuestionScenario(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 1), closedQ("2", 0, 2)}}
	s, clock := startedStore(t, gw)

	require.NoError(t, s.SubmitAnswer("1", model.Answer{Selected: []int{1}}))
	clock.Advance(3 * time.Second)
	require.NoError(t, s.ConfirmAnswer())
	require.NoError(t, s.NextQuestion())

	require.NoError(t, s.SubmitAnswer("2", model.Answer{Selected: []int{2, 0}}))
	clock.Advance(4 * time.Second)
	require.NoError(t, s.ConfirmAnswer())
	require.NoError(t, s.NextQuestion())

	st := s.Snapshot()
	assert.Equal(t, model.ViewResults, st.View)
	assert.Equal(t, 2.0, st.Score)
	assert.Equal(t, 7, st.TotalTimeSpent)
	assert.Equal(t, 1, st.CurrentQuestionIndex)
	require.NotNil(t, st.TestEndTime)
	assert.Equal(t, clock.Now(), *st.TestEndTime)
	assert.Equal(t, 100, st.Percentage())
}

func TestReviewNavigation(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, _ := startedStore(t, gw)

	assert.True(t, apperror.Is(s.ReviewAnswers(), apperror.CodeInvalidState))

	require.NoError(t, s.ConfirmAnswer())
	require.NoError(t, s.NextQuestion())
	require.NoError(t, s.ReviewAnswers())
	assert.Equal(t, model.ViewReview, s.Snapshot().View)

	require.NoError(t, s.BackToResults())
	require.NoError(t, s.BackToResults())
	assert.Equal(t, model.ViewResults, s.Snapshot().View)
}

func TestRetryFromResultsKeepsConfig(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, _ := startedStore(t, gw)
	require.NoError(t, s.SetConfig(7, true))
	require.NoError(t, s.ConfirmAnswer())
	require.NoError(t, s.NextQuestion())
	gen := s.Snapshot().Generation

	require.NoError(t, s.GoToSetup())

	st := s.Snapshot()
	assert.Equal(t, model.ViewSetup, st.View)
	assert.Equal(t, []string{"history"}, st.SelectedCategories)
	assert.Equal(t, 7, st.NumQuestionsConfig)
	assert.Empty(t, st.CurrentQuestions)
	assert.Zero(t, st.Score)
	assert.Greater(t, st.Generation, gen)
}

func TestResetTest(t *testing.T) {
	gw := &fakeGateway{
		tests:     []model.TestMetadata{{TestID: "history"}},
		questions: []model.Question{closedQ("1", 0), closedQ("2", 0)},
	}
	s, clock := newTestStore(t, gw)
	require.NoError(t, s.FetchAvailableTests(context.Background()))
	require.NoError(t, s.ToggleTheme(context.Background()))
	require.NoError(t, s.GoToSetup())
	require.NoError(t, s.ToggleCategory("history"))
	require.NoError(t, s.SetConfig(20, true))
	require.NoError(t, s.SetQuestionMode(model.QuestionModeOpen))
	require.NoError(t, s.StartTest(context.Background()))
	clock.Advance(3 * time.Second)
	require.NoError(t, s.ConfirmAnswer())

	require.NoError(t, s.ResetTest())

	st := s.Snapshot()
	assert.Equal(t, model.ViewHome, st.View)
	assert.Empty(t, st.SelectedCategories)
	assert.Equal(t, DefaultNumQuestions, st.NumQuestionsConfig)
	assert.False(t, st.TimerEnabled)
	assert.Equal(t, model.QuestionModeClosed, st.QuestionMode)
	assert.Empty(t, st.CurrentQuestions)
	assert.Zero(t, st.CurrentQuestionIndex)
	assert.Empty(t, st.UserAnswers)
	assert.Empty(t, st.Answered)
	assert.Zero(t, st.Score)
	assert.Empty(t, st.OpenQuestionResults)
	assert.Zero(t, st.TotalTimeSpent)
	assert.False(t, st.IsTimerRunning)
	assert.Nil(t, st.QuestionStartTime)
	assert.Nil(t, st.TestStartTime)
	assert.Nil(t, st.Error)

	assert.Len(t, st.AvailableTests, 1)
	assert.Equal(t, model.ThemeLight, st.Theme)
}

func TestFetchAvailableTests(t *testing.T) {
	gw := &fakeGateway{tests: []model.TestMetadata{
		{TestID: "history", QuestionCounts: &model.QuestionCounts{Total: 3, Closed: 2, Open: 1}},
		{TestID: "biology"},
	}}
	s, _ := newTestStore(t, gw)

	require.NoError(t, s.FetchAvailableTests(context.Background()))

	st := s.Snapshot()
	require.Len(t, st.AvailableTests, 2)
	assert.Equal(t, 3, st.AvailableTests[0].QuestionCounts.Total)
	require.NotNil(t, st.AvailableTests[1].QuestionCounts)
	assert.Zero(t, st.AvailableTests[1].QuestionCounts.Total)
	assert.False(t, st.IsLoading)
}

func TestFetchAvailableTestsFailure(t *testing.T) {
	gw := &fakeGateway{listErr: apperror.Server(503, "", "")}
	s, _ := newTestStore(t, gw)

	err := s.FetchAvailableTests(context.Background())
	require.Error(t, err)

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.Equal(t, apperror.KindServer, st.Error.Kind)
	assert.False(t, st.IsLoading)

	require.NoError(t, s.ClearError())
	assert.Nil(t, s.Snapshot().Error)
}

func TestCheckOpenAnswerAwardsClampedScore(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	gw.setResult("task-Q1", success(3, "Mostly right"))
	s, clock := startedStore(t, gw)

	clock.Advance(6 * time.Second)
	h, err := s.CheckOpenAnswer(context.Background(), "The treaty of 1648")
	require.NoError(t, err)
	assert.Equal(t, "task-Q1", h.TaskID)

	st := s.Snapshot()
	assert.Equal(t, 6, st.TotalTimeSpent)
	assert.False(t, st.IsTimerRunning)
	assert.Equal(t, "The treaty of 1648", st.OpenQuestionResults["1"].UserAnswer)

	waitDone(t, h)

	st = s.Snapshot()
	res := st.OpenQuestionResults["1"]
	require.NotNil(t, res.PointsAwarded)
	assert.Equal(t, 3.0, *res.PointsAwarded)
	assert.Equal(t, "Mostly right", res.Feedback)
	assert.Equal(t, 5.0, res.MaxPoints)
	assert.Equal(t, 3.0, st.Score)
	assert.False(t, st.IsChecking("1"))
}

func TestCheckOpenAnswerClampsOutOfRange(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	gw.setResult("task-Q1", success(9, ""))
	s, _ := startedStore(t, gw)

	h, err := s.CheckOpenAnswer(context.Background(), "answer")
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, 5.0, s.Snapshot().Score)
}

func TestCheckOpenAnswerImmediateResult(t *testing.T) {
	score := 2.0
	gw := &fakeGateway{
		questions: []model.Question{openQ("1", 5)},
		checkResp: &model.CheckAnswerResponse{Score: &score, Feedback: "ok"},
	}
	s, _ := startedStore(t, gw)

	h, err := s.CheckOpenAnswer(context.Background(), "answer")
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, 2.0, s.Snapshot().Score)
	assert.Zero(t, gw.polls)
}

func TestCheckOpenAnswerValidation(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5), closedQ("2", 0)}}
	s, _ := startedStore(t, gw)

	_, err := s.CheckOpenAnswer(context.Background(), "   ")
	assert.True(t, apperror.Is(err, apperror.CodeEmptyAnswer))

	require.NoError(t, s.NextQuestion())
	_, err = s.CheckOpenAnswer(context.Background(), "text")
	assert.True(t, apperror.Is(err, apperror.CodeWrongQuestionType))
	assert.Zero(t, gw.checkCalls)
}

func TestCheckOpenAnswerTwiceIsRejected(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	s, _ := startedStore(t, gw)

	_, err := s.CheckOpenAnswer(context.Background(), "first")
	require.NoError(t, err)

	_, err = s.CheckOpenAnswer(context.Background(), "second")
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyAnswered))
	assert.Equal(t, 1, gw.checkCalls)
}

func TestCheckOpenAnswerMissingTaskID(t *testing.T) {
	gw := &fakeGateway{
		questions: []model.Question{openQ("1", 5)},
		checkResp: &model.CheckAnswerResponse{},
	}
	s, _ := startedStore(t, gw)

	_, err := s.CheckOpenAnswer(context.Background(), "answer")
	assert.True(t, apperror.Is(err, apperror.CodeMissingTaskID))

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.False(t, st.IsChecking("1"))
	assert.False(t, st.Answered["1"])
}

func TestCheckOpenAnswerTaskFailureAllowsRetry(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	gw.setResult("task-Q1", &model.TaskResult{
		Status: model.TaskStatusFailure,
		Data:   json.RawMessage(`{"error":"model unavailable"}`),
	})
	s, _ := startedStore(t, gw)

	h, err := s.CheckOpenAnswer(context.Background(), "answer")
	require.NoError(t, err)
	waitDone(t, h)

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.Equal(t, apperror.KindTaskFailure, st.Error.Kind)
	assert.False(t, st.IsChecking("1"))
	assert.False(t, st.Answered["1"])
	assert.Zero(t, st.Score)

	gw.setResult("task-Q1", success(4, "fine"))
	h, err = s.CheckOpenAnswer(context.Background(), "answer")
	require.NoError(t, err)
	waitDone(t, h)
	assert.Equal(t, 4.0, s.Snapshot().Score)
}

func TestLateGradingAfterResetIsIgnored(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	s, _ := startedStore(t, gw)

	h, err := s.CheckOpenAnswer(context.Background(), "answer")
	require.NoError(t, err)
	require.NoError(t, s.ResetTest())

	// Would be picked up by the next poll if polling were still alive.
	gw.setResult("task-Q1", success(5, "late"))
	waitDone(t, h)

	st := s.Snapshot()
	assert.Equal(t, model.ViewHome, st.View)
	assert.Zero(t, st.Score)
	assert.Empty(t, st.OpenQuestionResults)
	assert.Empty(t, st.Checking)
}

func TestLateFeedbackWithStaleGenerationIsDropped(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}}
	s, _ := startedStore(t, gw)
	stale := s.Snapshot().Generation

	require.NoError(t, s.ResetTest())
	require.NoError(t, s.GoToSetup())
	require.NoError(t, s.ToggleCategory("history"))
	require.NoError(t, s.StartTest(context.Background()))

	require.NoError(t, s.Dispatch(SetLastAnswerFeedback{
		QuestionID: "1",
		Feedback:   model.GradingFeedback{Score: 5},
		Generation: stale,
	}))
	assert.Zero(t, s.Snapshot().Score)
	assert.Empty(t, s.Snapshot().OpenQuestionResults)
}

func TestConcurrentGradingKeyedByQuestion(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5), openQ("2", 10), closedQ("3", 0)}}
	s, _ := startedStore(t, gw)

	h1, err := s.CheckOpenAnswer(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, s.NextQuestion())

	h2, err := s.CheckOpenAnswer(context.Background(), "second")
	require.NoError(t, err)
	require.NoError(t, s.NextQuestion())

	st := s.Snapshot()
	assert.True(t, st.IsChecking("1"))
	assert.True(t, st.IsChecking("2"))

	// Second task settles first.
	gw.setResult("task-Q2", success(7, "second"))
	waitDone(t, h2)
	gw.setResult("task-Q1", success(2, "first"))
	waitDone(t, h1)

	st = s.Snapshot()
	assert.Equal(t, 9.0, st.Score)
	assert.Equal(t, "first", st.OpenQuestionResults["1"].Feedback)
	assert.Equal(t, "second", st.OpenQuestionResults["2"].Feedback)
	assert.Equal(t, "first", st.OpenQuestionResults["1"].UserAnswer)
	assert.Empty(t, st.Checking)
	assert.Equal(t, 2, st.CurrentQuestionIndex)
}

func TestCloseWhileCheckInFlightStartsNoPoller(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5)}, checkGate: make(chan struct{})}
	s, _ := startedStore(t, gw)

	type outcome struct {
		h   *GradingHandle
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		h, err := s.CheckOpenAnswer(context.Background(), "the treaty")
		done <- outcome{h, err}
	}()

	require.Eventually(t, func() bool {
		checks, _ := gw.counts()
		return checks == 1
	}, time.Second, time.Millisecond)

	s.Close()
	close(gw.checkGate)

	select {
	case out := <-done:
		assert.ErrorIs(t, out.err, context.Canceled)
		assert.Nil(t, out.h)
	case <-time.After(2 * time.Second):
		t.Fatal("check did not return")
	}

	time.Sleep(20 * time.Millisecond)
	_, polls := gw.counts()
	assert.Zero(t, polls)
}

func TestSetErrorWithoutQuestionReleasesAllChecks(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5), openQ("2", 10), closedQ("3", 0)}}
	s, _ := startedStore(t, gw)

	_, err := s.CheckOpenAnswer(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, s.NextQuestion())
	_, err = s.CheckOpenAnswer(context.Background(), "second")
	require.NoError(t, err)
	require.Len(t, s.Snapshot().Checking, 2)

	require.NoError(t, s.SetError(apperror.Network(errors.New("offline")), ""))

	st := s.Snapshot()
	assert.Empty(t, st.Checking)
	assert.False(t, st.Answered["1"])
	assert.False(t, st.Answered["2"])
	require.NotNil(t, st.Error)
	assert.Equal(t, apperror.CodeNetwork, st.Error.Code)
}

func TestReportIssue(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{openQ("1", 5), closedQ("2", 0)}}
	gw.setResult("task-Q1", success(1, "weak"))
	s, _ := startedStore(t, gw)

	err := s.ReportIssue(context.Background(), "1", model.IssueAIGradingError, "")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidReport))

	h, err := s.CheckOpenAnswer(context.Background(), "my answer")
	require.NoError(t, err)
	waitDone(t, h)

	require.NoError(t, s.ReportIssue(context.Background(), "1", model.IssueAIGradingError, "too harsh"))
	require.NoError(t, s.NextQuestion())
	require.NoError(t, s.SubmitAnswer("2", model.Answer{Selected: []int{1, 3}}))
	require.NoError(t, s.ReportIssue(context.Background(), "2", model.IssueQuestionError, "typo"))

	require.Len(t, gw.reports, 2)

	ai := gw.reports[0]
	assert.Equal(t, model.QuestionID("1"), ai.Question)
	assert.Equal(t, "history", ai.Test)
	require.NotNil(t, ai.AIFeedbackSnapshot)
	assert.Contains(t, *ai.AIFeedbackSnapshot, `"feedback":"weak"`)
	require.NotNil(t, ai.UserAnswerOpen)
	assert.Equal(t, "my answer", *ai.UserAnswerOpen)

	q := gw.reports[1]
	assert.Nil(t, q.AIFeedbackSnapshot)
	assert.Equal(t, []string{"b", "d"}, q.UserAnswerChoices)
}

func TestReportIssueRejectsUnknownType(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, _ := startedStore(t, gw)

	err := s.ReportIssue(context.Background(), "1", "SPAM", "")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidReport))
	assert.Empty(t, gw.reports)
}

func TestSubscribeSignalsChanges(t *testing.T) {
	s, _ := newTestStore(t, &fakeGateway{})
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.GoToSetup())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	gw := &fakeGateway{questions: []model.Question{closedQ("1", 0)}}
	s, _ := startedStore(t, gw)

	st := s.Snapshot()
	st.CurrentQuestions[0].QuestionText = "mutated"
	st.UserAnswers["1"] = model.Answer{Selected: []int{3}}

	fresh := s.Snapshot()
	assert.Equal(t, "Q1", fresh.CurrentQuestions[0].QuestionText)
	assert.NotContains(t, fresh.UserAnswers, model.QuestionID("1"))
}
