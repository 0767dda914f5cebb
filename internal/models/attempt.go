package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExamAttempt is a user's single timed instance of taking an exam. The unique
// index on (exam_id, user_id) closes the race between the duplicate check and
// the insert; a violation surfaces as gorm.ErrDuplicatedKey.
type ExamAttempt struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_attempts_exam_user" json:"user_id"`
	ExamID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_attempts_exam_user" json:"exam_id"`
	StartedAt   *time.Time `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ScoreTotal  *int       `json:"score_total"`
}

// BeforeCreate assigns a fresh identifier when none is set.
func (a *ExamAttempt) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

const (
	// AttemptStatusNotStarted means the attempt row exists but has no start time.
	AttemptStatusNotStarted = "not_started"
	// AttemptStatusInProgress means the attempt has started and is not submitted.
	AttemptStatusInProgress = "in_progress"
	// AttemptStatusCompleted means answers were submitted and the score is final.
	AttemptStatusCompleted = "completed"
)

// Status derives the lifecycle state from the recorded timestamps.
func (a ExamAttempt) Status() string {
	switch {
	case a.SubmittedAt != nil:
		return AttemptStatusCompleted
	case a.StartedAt != nil:
		return AttemptStatusInProgress
	default:
		return AttemptStatusNotStarted
	}
}

// Answer is one graded response, created at submission time and immutable
// thereafter. IsCorrect is tri-state: nil means the answer was not auto-graded.
type Answer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answers_attempt_question" json:"attempt_id"`
	QuestionID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answers_attempt_question" json:"question_id"`
	AnswerText   *string   `gorm:"type:text" json:"answer_text"`
	IsCorrect    *bool     `json:"is_correct"`
	ScoreAwarded int       `gorm:"not null;default:0" json:"score_awarded"`
}

// BeforeCreate assigns a fresh identifier when none is set.
func (a *Answer) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
