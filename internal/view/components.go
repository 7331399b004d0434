package view

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// OptionMark is how a single option is flagged.
type OptionMark int

const (
	MarkNone OptionMark = iota
	MarkSelected
	MarkCorrect
	MarkWrong
	MarkMissed
)

// MarkOptions computes the per-option marks of a closed question. Before the
// answer is revealed only selections are marked; afterwards correct picks,
// wrong picks and missed correct options are told apart.
func MarkOptions(q *model.Question, ans model.Answer, revealed bool) []OptionMark {
	marks := make([]OptionMark, len(q.Options))
	for i := range q.Options {
		selected := ans.Has(i)
		switch {
		case !revealed && selected:
			marks[i] = MarkSelected
		case !revealed:
		case selected && q.IsCorrectOption(i):
			marks[i] = MarkCorrect
		case selected:
			marks[i] = MarkWrong
		case q.IsCorrectOption(i):
			marks[i] = MarkMissed
		}
	}
	return marks
}

// OptionList renders the options of a closed question, numbered from 1.
func OptionList(p Palette, q *model.Question, ans model.Answer, revealed bool) string {
	var b strings.Builder
	for i, mark := range MarkOptions(q, ans, revealed) {
		box := "[ ]"
		code := ""
		switch mark {
		case MarkSelected:
			box, code = "[x]", p.Accent
		case MarkCorrect:
			box, code = "[✓]", p.Good
		case MarkWrong:
			box, code = "[✗]", p.Bad
		case MarkMissed:
			box, code = "[!]", p.Good
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p.paint(code, box+" "+q.Options[i]))
	}
	return b.String()
}

// ProgressBar renders "current/total" with a bar of the given width.
// current is 1-based.
func ProgressBar(p Palette, current, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = current * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := p.paint(p.Accent, strings.Repeat("█", filled)) + p.paint(p.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, current, total)
}

// FormatClock renders seconds as mm:ss, or h:mm:ss past an hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// TimerDisplay renders the elapsed test time. Disabled timers render
// nothing.
func TimerDisplay(p Palette, enabled bool, elapsed int) string {
	if !enabled {
		return ""
	}
	return p.paint(p.Muted, "⏱ "+FormatClock(elapsed))
}

// Summary is what the results screen shows.
type Summary struct {
	Score      float64
	MaxScore   float64
	Percentage int
	TimeSpent  int
	Questions  int
	Pending    int
}

// ResultsSummary renders the score block of the results screen.
func ResultsSummary(p Palette, s Summary) string {
	var b strings.Builder
	code := p.Bad
	switch {
	case s.Percentage >= 80:
		code = p.Good
	case s.Percentage >= 50:
		code = p.Accent
	}
	fmt.Fprintf(&b, "Score: %s / %s  %s\n", formatPoints(s.Score), formatPoints(s.MaxScore), p.paint(code, fmt.Sprintf("(%d%%)", s.Percentage)))
	fmt.Fprintf(&b, "Questions: %d\n", s.Questions)
	fmt.Fprintf(&b, "Time: %s\n", FormatClock(s.TimeSpent))
	if s.Pending > 0 {
		fmt.Fprintf(&b, "%s\n", p.paint(p.Muted, fmt.Sprintf("%d answer(s) still being graded", s.Pending)))
	}
	return b.String()
}

func formatPoints(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
