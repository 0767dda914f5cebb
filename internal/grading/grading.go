// Package grading implements the automatic scoring of submitted answers. It
// is a pure function of the question definition and the submitted text and
// owns no storage.
package grading

import (
	"strings"

	"github.com/examio/examio-api/internal/models"
)

// Result is the outcome of grading a single answer. Correct is tri-state: nil
// means the answer could not be auto-graded (essay, unrecognized type, or a
// question with no correct answer on file).
type Result struct {
	Correct *bool
	Awarded int
}

// Grade scores a submitted answer against a question definition. For
// multiple-choice and true/false questions correctness is a whitespace-trimmed
// case-insensitive match; everything else stays ungraded with zero awarded.
// The awarded score is either zero or exactly the question's max score.
func Grade(question models.Question, submitted string) Result {
	switch question.Type() {
	case models.QuestionTypeMultipleChoice, models.QuestionTypeTrueFalse:
		if question.CorrectAnswer == nil {
			// A gradable question without a stored answer is a data-integrity
			// gap, not a grading failure.
			return Result{}
		}
		correct := strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(*question.CorrectAnswer))
		awarded := 0
		if correct {
			awarded = question.Score
		}
		return Result{Correct: &correct, Awarded: awarded}
	case models.QuestionTypeEssay:
		// Essays require manual grading.
		return Result{}
	default:
		return Result{}
	}
}
