package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/examio/examio-api/internal/models"
)

// StartAttemptRequest begins a new attempt for the authenticated user.
type StartAttemptRequest struct {
	ExamID uuid.UUID `json:"exam_id" validate:"required"`
}

// AnswerSubmission is one submitted answer inside a submit request.
type AnswerSubmission struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	AnswerText string    `json:"answer_text"`
}

// SubmitAttemptRequest submits the full answer batch for an open attempt. An
// empty batch is legal and finalizes the attempt with a zero score.
type SubmitAttemptRequest struct {
	AttemptID uuid.UUID          `json:"attempt_id" validate:"required"`
	Answers   []AnswerSubmission `json:"answers" validate:"dive"`
}

// AttemptResponse is the external view of an attempt with its derived status.
type AttemptResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	StartedAt   *time.Time `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ScoreTotal  *int       `json:"score_total"`
	Status      string     `json:"status"`
}

// NewAttemptResponse converts an attempt model to its response shape.
func NewAttemptResponse(attempt models.ExamAttempt) AttemptResponse {
	return AttemptResponse{
		ID:          attempt.ID,
		UserID:      attempt.UserID,
		ExamID:      attempt.ExamID,
		StartedAt:   attempt.StartedAt,
		SubmittedAt: attempt.SubmittedAt,
		ScoreTotal:  attempt.ScoreTotal,
		Status:      attempt.Status(),
	}
}

// NewAttemptResponseSlice converts a slice of attempt models.
func NewAttemptResponseSlice(attempts []models.ExamAttempt) []AttemptResponse {
	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAttemptResponse(attempt))
	}
	return responses
}

// AnswerResponse is the external view of a graded answer.
type AnswerResponse struct {
	ID           uuid.UUID `json:"id"`
	AttemptID    uuid.UUID `json:"attempt_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	AnswerText   *string   `json:"answer_text"`
	IsCorrect    *bool     `json:"is_correct"`
	ScoreAwarded int       `json:"score_awarded"`
}

// NewAnswerResponse converts an answer model to its response shape.
func NewAnswerResponse(answer models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:           answer.ID,
		AttemptID:    answer.AttemptID,
		QuestionID:   answer.QuestionID,
		AnswerText:   answer.AnswerText,
		IsCorrect:    answer.IsCorrect,
		ScoreAwarded: answer.ScoreAwarded,
	}
}

// AttemptWithAnswersResponse pairs an attempt with its graded answers.
type AttemptWithAnswersResponse struct {
	Attempt AttemptResponse  `json:"attempt"`
	Answers []AnswerResponse `json:"answers"`
}
