package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/models"
)

// ErrAttemptAlreadySubmitted indicates a concurrent submission won the race
// and finalized the attempt first.
var ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

// AttemptRepository owns all writes to exam_attempts and answers.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	GetByExamAndUser(ctx context.Context, examID, userID uuid.UUID) (models.ExamAttempt, error)
	GetByIDForUser(ctx context.Context, attemptID, userID uuid.UUID) (models.ExamAttempt, error)
	GetActive(ctx context.Context, userID, examID uuid.UUID) (models.ExamAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]models.ExamAttempt, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]models.Answer, error)
	SubmitGraded(ctx context.Context, attemptID uuid.UUID, submittedAt time.Time, scoreTotal int, answers []models.Answer) (models.ExamAttempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) GetByExamAndUser(ctx context.Context, examID, userID uuid.UUID) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&attempt).Error
	if err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) GetByIDForUser(ctx context.Context, attemptID, userID uuid.UUID) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", attemptID, userID).
		First(&attempt).Error
	if err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) GetActive(ctx context.Context, userID, examID uuid.UUID) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ? AND submitted_at IS NULL", userID, examID).
		First(&attempt).Error
	if err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]models.Answer, error) {
	var answers []models.Answer
	err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}

	return answers, nil
}

// SubmitGraded persists the graded answer batch and finalizes the attempt in
// a single transaction. A failure anywhere leaves no answer rows and the
// attempt still open. The guarded update also rejects an attempt that was
// finalized by a concurrent request.
func (r *attemptRepository) SubmitGraded(ctx context.Context, attemptID uuid.UUID, submittedAt time.Time, scoreTotal int, answers []models.Answer) (models.ExamAttempt, error) {
	var updated models.ExamAttempt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ExamAttempt{}).
			Where("id = ? AND submitted_at IS NULL", attemptID).
			Updates(map[string]interface{}{
				"submitted_at": submittedAt,
				"score_total":  scoreTotal,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAttemptAlreadySubmitted
		}

		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		return tx.First(&updated, "id = ?", attemptID).Error
	})
	if err != nil {
		return models.ExamAttempt{}, err
	}

	return updated, nil
}
