package model

// View enumerates the mutually exclusive top-level screens.
type View string

const (
	ViewHome    View = "home"
	ViewSetup   View = "setup"
	ViewTest    View = "test"
	ViewResults View = "results"
	ViewReview  View = "review"
)

// QuestionMode filters the question batch requested for a session.
type QuestionMode string

const (
	QuestionModeClosed QuestionMode = "closed"
	QuestionModeOpen   QuestionMode = "open"
	QuestionModeMixed  QuestionMode = "mixed"
)

// Valid reports whether m is one of the modes the API accepts.
func (m QuestionMode) Valid() bool {
	switch m {
	case QuestionModeClosed, QuestionModeOpen, QuestionModeMixed:
		return true
	}
	return false
}

// Theme is the client's display preference. It outlives sessions.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}
