package model

// QuestionCounts breaks down a test's questions by kind.
type QuestionCounts struct {
	Total  int `json:"total"`
	Closed int `json:"closed"`
	Open   int `json:"open"`
}

// TestMetadata describes one test (category) in the catalog.
type TestMetadata struct {
	TestID         string          `json:"test_id"`
	Category       string          `json:"category"`
	Scope          string          `json:"scope"`
	Version        string          `json:"version"`
	QuestionCounts *QuestionCounts `json:"question_counts"`
}

// QuestionQuery selects a question batch.
type QuestionQuery struct {
	Categories   []string
	NumQuestions int
	Mode         QuestionMode
}
