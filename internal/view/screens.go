package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
)

func renderHome(b *strings.Builder, p Palette, _ *session.State, _ time.Time) {
	b.WriteString(p.paint(p.Title, "Quiz") + "\n\n")
	b.WriteString("Test your knowledge across categories.\n\n")
	b.WriteString(p.paint(p.Muted, "[s] start  [t] theme  [q] quit") + "\n")
}

func renderSetup(b *strings.Builder, p Palette, st *session.State, _ time.Time) {
	b.WriteString(p.paint(p.Title, "Choose categories") + "\n\n")
	if st.IsLoading && len(st.AvailableTests) == 0 {
		b.WriteString(p.paint(p.Muted, "Loading tests...") + "\n")
	}
	for i, t := range st.AvailableTests {
		box := "[ ]"
		if st.IsSelected(t.TestID) {
			box = p.paint(p.Accent, "[x]")
		}
		name := t.Category
		if name == "" {
			name = t.TestID
		}
		counts := ""
		if t.QuestionCounts != nil {
			counts = fmt.Sprintf(" (%d closed, %d open)", t.QuestionCounts.Closed, t.QuestionCounts.Open)
		}
		fmt.Fprintf(b, "  %d. %s %s%s\n", i+1, box, name, p.paint(p.Muted, counts))
	}

	timer := "off"
	if st.TimerEnabled {
		timer = "on"
	}
	fmt.Fprintf(b, "\nQuestions: %d   Mode: %s   Timer: %s\n", st.NumQuestionsConfig, st.QuestionMode, timer)
	b.WriteString(p.paint(p.Muted, "[1-9] toggle  [n <count>] questions  [m] mode  [c] timer  [s] start  [h] home") + "\n")
}

func renderTest(b *strings.Builder, p Palette, st *session.State, now time.Time) {
	if st.IsLoading {
		b.WriteString(p.paint(p.Muted, "Loading questions...") + "\n")
		return
	}
	q, ok := st.CurrentQuestion()
	if !ok {
		b.WriteString("No question loaded.\n")
		return
	}

	fmt.Fprintf(b, "%s   %s\n\n",
		ProgressBar(p, st.CurrentQuestionIndex+1, len(st.CurrentQuestions), 20),
		TimerDisplay(p, st.TimerEnabled, st.Elapsed(now)))
	b.WriteString(p.paint(p.Title, q.QuestionText) + "\n")
	if q.Image != "" {
		b.WriteString(p.paint(p.Muted, "Image: "+q.Image) + "\n")
	}
	b.WriteString("\n")

	answered := st.Answered[q.ID]
	if q.IsClosed() {
		b.WriteString(OptionList(p, q, st.UserAnswers[q.ID], answered))
		if answered {
			renderExplanation(b, p, q)
			b.WriteString(p.paint(p.Muted, "[enter] next  [r] report") + "\n")
		} else {
			b.WriteString(p.paint(p.Muted, "[1-9] select  [enter] confirm") + "\n")
		}
		return
	}

	res, hasResult := st.OpenQuestionResults[q.ID]
	switch {
	case st.IsChecking(q.ID):
		fmt.Fprintf(b, "Your answer: %s\n", res.UserAnswer)
		b.WriteString(p.paint(p.Muted, "Grading...") + "\n")
		b.WriteString(p.paint(p.Muted, "[enter] next without waiting") + "\n")
	case hasResult && res.Graded():
		renderOpenResult(b, p, res)
		renderExplanation(b, p, q)
		b.WriteString(p.paint(p.Muted, "[enter] next  [r] report") + "\n")
	default:
		fmt.Fprintf(b, "Max points: %s\n", formatPoints(q.MaxPoints))
		b.WriteString(p.paint(p.Muted, "Type your answer and press enter. [enter] on empty line skips.") + "\n")
	}
}

func renderResults(b *strings.Builder, p Palette, st *session.State, _ time.Time) {
	b.WriteString(p.paint(p.Title, "Results") + "\n\n")
	b.WriteString(ResultsSummary(p, Summary{
		Score:      st.Score,
		MaxScore:   st.MaxScore(),
		Percentage: st.Percentage(),
		TimeSpent:  st.TotalTimeSpent,
		Questions:  len(st.CurrentQuestions),
		Pending:    len(st.Checking),
	}))
	b.WriteString("\n" + p.paint(p.Muted, "[v] review  [s] retry  [h] home") + "\n")
}

func renderReview(b *strings.Builder, p Palette, st *session.State, _ time.Time) {
	b.WriteString(p.paint(p.Title, "Review") + "\n")
	for i := range st.CurrentQuestions {
		q := &st.CurrentQuestions[i]
		fmt.Fprintf(b, "\n%d. %s\n", i+1, q.QuestionText)
		if q.IsClosed() {
			b.WriteString(OptionList(p, q, st.UserAnswers[q.ID], true))
			renderExplanation(b, p, q)
			continue
		}
		res, ok := st.OpenQuestionResults[q.ID]
		switch {
		case !ok:
			b.WriteString(p.paint(p.Muted, "  Not answered") + "\n")
		case st.IsChecking(q.ID):
			fmt.Fprintf(b, "  Your answer: %s\n", res.UserAnswer)
			b.WriteString(p.paint(p.Muted, "  Grading...") + "\n")
		default:
			renderOpenResult(b, p, res)
		}
		renderExplanation(b, p, q)
	}
	b.WriteString("\n" + p.paint(p.Muted, "[r <n>] report question n  [b] back") + "\n")
}

func renderOpenResult(b *strings.Builder, p Palette, res model.OpenQuestionResult) {
	fmt.Fprintf(b, "  Your answer: %s\n", res.UserAnswer)
	if res.PointsAwarded != nil {
		code := p.Bad
		if *res.PointsAwarded >= res.MaxPoints {
			code = p.Good
		} else if *res.PointsAwarded > 0 {
			code = p.Accent
		}
		fmt.Fprintf(b, "  Points: %s\n", p.paint(code, formatPoints(*res.PointsAwarded)+"/"+formatPoints(res.MaxPoints)))
	}
	if res.Feedback != "" {
		fmt.Fprintf(b, "  Feedback: %s\n", res.Feedback)
	}
}

func renderExplanation(b *strings.Builder, p Palette, q *model.Question) {
	if q.Explanation == "" {
		return
	}
	b.WriteString(p.paint(p.Muted, "  "+q.Explanation) + "\n")
}

// PendingQuestions lists questions with grading still outstanding, in
// question order.
func PendingQuestions(st *session.State) []model.QuestionID {
	ids := make([]model.QuestionID, 0, len(st.Checking))
	for id := range st.Checking {
		ids = append(ids, id)
	}
	order := make(map[model.QuestionID]int, len(st.CurrentQuestions))
	for i, q := range st.CurrentQuestions {
		order[q.ID] = i
	}
	sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })
	return ids
}
