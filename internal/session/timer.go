package session

import "time"

// Clock is the store's source of wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// secondsBetween floors the interval to whole seconds. Negative intervals
// (clock stepped back) count as zero so the total never shrinks.
func secondsBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// startTimer opens a new interval at now.
func (s *State) startTimer(now time.Time) {
	t := now
	s.QuestionStartTime = &t
	s.IsTimerRunning = true
}

// stopTimer folds the open interval, if any, into TotalTimeSpent.
func (s *State) stopTimer(now time.Time) {
	if s.IsTimerRunning && s.QuestionStartTime != nil {
		s.TotalTimeSpent += secondsBetween(*s.QuestionStartTime, now)
	}
	s.IsTimerRunning = false
	s.QuestionStartTime = nil
}
