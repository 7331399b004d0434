package session

import (
	"time"

	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// DefaultNumQuestions is the batch size a fresh session asks for.
const DefaultNumQuestions = 10

// State is everything the views read. The store hands out deep copies, so
// a State value never changes under its reader.
type State struct {
	View               model.View           `json:"view"`
	AvailableTests     []model.TestMetadata `json:"availableTests"`
	SelectedCategories []string             `json:"selectedCategories"`
	NumQuestionsConfig int                  `json:"numQuestionsConfig"`
	TimerEnabled       bool                 `json:"timerEnabled"`
	QuestionMode       model.QuestionMode   `json:"questionMode"`

	CurrentQuestions     []model.Question                              `json:"currentQuestions"`
	CurrentQuestionIndex int                                           `json:"currentQuestionIndex"`
	UserAnswers          map[model.QuestionID]model.Answer             `json:"userAnswers"`
	Answered             map[model.QuestionID]bool                     `json:"answered"`
	Score                float64                                       `json:"score"`
	OpenQuestionResults  map[model.QuestionID]model.OpenQuestionResult `json:"openQuestionResults"`

	// Checking maps a question to its outstanding grading task. The task ID
	// is empty while the submission itself is in flight.
	Checking map[model.QuestionID]string `json:"checking"`

	TestStartTime     *time.Time `json:"testStartTime"`
	TestEndTime       *time.Time `json:"testEndTime"`
	IsTimerRunning    bool       `json:"isTimerRunning"`
	QuestionStartTime *time.Time `json:"questionStartTime"`
	TotalTimeSpent    int        `json:"totalTimeSpent"`

	IsLoading bool            `json:"isLoading"`
	Error     *apperror.Error `json:"error"`
	Theme     model.Theme     `json:"theme"`

	// Generation identifies the current test attempt. Async results carry
	// the generation they were started under and are dropped on mismatch.
	Generation uint64 `json:"generation"`

	defaultNumQuestions int
}

func initialState(numQuestions int, theme model.Theme) State {
	return State{
		View:                model.ViewHome,
		SelectedCategories:  []string{},
		NumQuestionsConfig:  numQuestions,
		QuestionMode:        model.QuestionModeClosed,
		CurrentQuestions:    []model.Question{},
		UserAnswers:         map[model.QuestionID]model.Answer{},
		Answered:            map[model.QuestionID]bool{},
		OpenQuestionResults: map[model.QuestionID]model.OpenQuestionResult{},
		Checking:            map[model.QuestionID]string{},
		Theme:               theme,
		defaultNumQuestions: numQuestions,
	}
}

// clearProgress wipes everything a test attempt produced.
func (s *State) clearProgress() {
	s.CurrentQuestions = []model.Question{}
	s.CurrentQuestionIndex = 0
	s.UserAnswers = map[model.QuestionID]model.Answer{}
	s.Answered = map[model.QuestionID]bool{}
	s.Score = 0
	s.OpenQuestionResults = map[model.QuestionID]model.OpenQuestionResult{}
	s.Checking = map[model.QuestionID]string{}
	s.TestStartTime = nil
	s.TestEndTime = nil
	s.IsTimerRunning = false
	s.QuestionStartTime = nil
	s.TotalTimeSpent = 0
}

// CurrentQuestion returns the question at CurrentQuestionIndex.
func (s *State) CurrentQuestion() (*model.Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.CurrentQuestions) {
		return nil, false
	}
	return &s.CurrentQuestions[s.CurrentQuestionIndex], true
}

// Question looks a question up by ID.
func (s *State) Question(id model.QuestionID) (*model.Question, bool) {
	for i := range s.CurrentQuestions {
		if s.CurrentQuestions[i].ID == id {
			return &s.CurrentQuestions[i], true
		}
	}
	return nil, false
}

// IsSelected reports whether a category is selected.
func (s *State) IsSelected(categoryID string) bool {
	for _, c := range s.SelectedCategories {
		if c == categoryID {
			return true
		}
	}
	return false
}

// IsChecking reports whether a grading submission or task is outstanding
// for the question.
func (s *State) IsChecking(id model.QuestionID) bool {
	_, ok := s.Checking[id]
	return ok
}

// Elapsed is the display value of the timer: stored total plus the open
// interval, if any. It never writes back.
func (s *State) Elapsed(now time.Time) int {
	total := s.TotalTimeSpent
	if s.IsTimerRunning && s.QuestionStartTime != nil {
		total += secondsBetween(*s.QuestionStartTime, now)
	}
	return total
}

// MaxScore is the achievable total for the current question set.
func (s *State) MaxScore() float64 {
	var max float64
	for i := range s.CurrentQuestions {
		max += s.CurrentQuestions[i].MaxScore()
	}
	return max
}

// Percentage is Score over MaxScore, rounded to a whole percent.
func (s *State) Percentage() int {
	max := s.MaxScore()
	if max <= 0 {
		return 0
	}
	return int(s.Score/max*100 + 0.5)
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	out := *s
	out.AvailableTests = make([]model.TestMetadata, len(s.AvailableTests))
	for i, t := range s.AvailableTests {
		if t.QuestionCounts != nil {
			qc := *t.QuestionCounts
			t.QuestionCounts = &qc
		}
		out.AvailableTests[i] = t
	}
	out.SelectedCategories = append([]string{}, s.SelectedCategories...)
	out.CurrentQuestions = make([]model.Question, len(s.CurrentQuestions))
	for i, q := range s.CurrentQuestions {
		q.Options = append([]string(nil), q.Options...)
		q.CorrectAnswers = append([]int(nil), q.CorrectAnswers...)
		out.CurrentQuestions[i] = q
	}
	out.UserAnswers = make(map[model.QuestionID]model.Answer, len(s.UserAnswers))
	for k, v := range s.UserAnswers {
		out.UserAnswers[k] = v.Clone()
	}
	out.Answered = make(map[model.QuestionID]bool, len(s.Answered))
	for k, v := range s.Answered {
		out.Answered[k] = v
	}
	out.OpenQuestionResults = make(map[model.QuestionID]model.OpenQuestionResult, len(s.OpenQuestionResults))
	for k, v := range s.OpenQuestionResults {
		if v.PointsAwarded != nil {
			p := *v.PointsAwarded
			v.PointsAwarded = &p
		}
		out.OpenQuestionResults[k] = v
	}
	out.Checking = make(map[model.QuestionID]string, len(s.Checking))
	for k, v := range s.Checking {
		out.Checking[k] = v
	}
	out.TestStartTime = cloneTime(s.TestStartTime)
	out.TestEndTime = cloneTime(s.TestEndTime)
	out.QuestionStartTime = cloneTime(s.QuestionStartTime)
	out.Error = s.Error.Clone()
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
