package models

import "github.com/google/uuid"

// QuestionType is the closed set of question kinds the scoring engine knows
// how to grade. Stored rows may predate new kinds, so parsing never fails;
// unrecognized strings map to QuestionTypeUnknown and grade as ungraded.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeUnknown        QuestionType = "unknown"
)

// ParseQuestionType maps a stored type string to its QuestionType.
func ParseQuestionType(s string) QuestionType {
	switch s {
	case string(QuestionTypeMultipleChoice):
		return QuestionTypeMultipleChoice
	case string(QuestionTypeTrueFalse):
		return QuestionTypeTrueFalse
	case string(QuestionTypeEssay):
		return QuestionTypeEssay
	default:
		return QuestionTypeUnknown
	}
}

// Question is a read-only question definition from the question bank. Grading
// always uses the current stored state; question content is not snapshotted
// per attempt.
type Question struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExamID        uuid.UUID `gorm:"type:uuid;not null;index" json:"exam_id"`
	QuestionText  string    `gorm:"type:text;not null" json:"question_text"`
	QuestionType  string    `gorm:"size:32;not null" json:"question_type"`
	CorrectAnswer *string   `gorm:"type:text" json:"correct_answer,omitempty"`
	Score         int       `gorm:"not null" json:"score"`
}

// Type returns the typed question kind for the stored type string.
func (q Question) Type() QuestionType {
	return ParseQuestionType(q.QuestionType)
}
