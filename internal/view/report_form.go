package view

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// ReportForm is the local state of the report-issue dialog.
type ReportForm struct {
	QuestionID  model.QuestionID `json:"question"`
	IssueType   model.IssueType  `json:"issue_type" binding:"required,oneof=QUESTION_ERROR AI_GRADING_ERROR"`
	Description string           `json:"description" binding:"max=2000"`

	// AIGraded enables the AI grading option.
	AIGraded bool `json:"-"`
}

// NewReportForm opens the dialog for a question.
func NewReportForm(id model.QuestionID, aiGraded bool) *ReportForm {
	return &ReportForm{QuestionID: id, AIGraded: aiGraded}
}

// IssueTypes lists the choices the dialog offers.
func (f *ReportForm) IssueTypes() []model.IssueType {
	if f.AIGraded {
		return []model.IssueType{model.IssueQuestionError, model.IssueAIGradingError}
	}
	return []model.IssueType{model.IssueQuestionError}
}

// Choose picks the issue type by its 1-based position in IssueTypes.
func (f *ReportForm) Choose(n int) bool {
	types := f.IssueTypes()
	if n < 1 || n > len(types) {
		return false
	}
	f.IssueType = types[n-1]
	return true
}

// Validate returns field errors keyed by JSON name, or nil.
func (f *ReportForm) Validate() map[string]string {
	fields := validator.Struct(f)
	if f.IssueType == model.IssueAIGradingError && !f.AIGraded {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["issue_type"] = "issue_type is only available for graded answers"
	}
	return fields
}

// Render draws the dialog.
func (f *ReportForm) Render(p Palette) string {
	var b strings.Builder
	b.WriteString(p.paint(p.Title, "Report an issue") + "\n")
	for i, t := range f.IssueTypes() {
		marker := " "
		if t == f.IssueType {
			marker = "*"
		}
		fmt.Fprintf(&b, "  %s %d. %s\n", marker, i+1, IssueLabel(t))
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	return b.String()
}

// IssueLabel is the human name of an issue type.
func IssueLabel(t model.IssueType) string {
	switch t {
	case model.IssueQuestionError:
		return "Problem with the question"
	case model.IssueAIGradingError:
		return "Problem with the AI grading"
	}
	return string(t)
}
