package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/models"
)

// ExamRepository provides the read-only exam, question, and roster lookups
// the attempt lifecycle depends on. All writes to these tables belong to the
// authoring and class-management surfaces.
type ExamRepository interface {
	GetByID(ctx context.Context, examID uuid.UUID) (models.Exam, error)
	GetActiveInWindow(ctx context.Context, examID uuid.UUID, at time.Time) (models.Exam, error)
	HasClassAccess(ctx context.Context, examID, userID uuid.UUID) (bool, error)
	GetQuestion(ctx context.Context, questionID, examID uuid.UUID) (models.Question, error)
	MaxScore(ctx context.Context, examID uuid.UUID) (int, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository instantiates the repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetByID(ctx context.Context, examID uuid.UUID) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, "id = ?", examID).Error; err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}

func (r *examRepository) GetActiveInWindow(ctx context.Context, examID uuid.UUID, at time.Time) (models.Exam, error) {
	var exam models.Exam
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ? AND start_time <= ? AND end_time >= ?", examID, true, at, at).
		First(&exam).Error
	if err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}

func (r *examRepository) HasClassAccess(ctx context.Context, examID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("exam_assignments").
		Joins("JOIN class_members ON class_members.class_id = exam_assignments.class_id").
		Where("exam_assignments.exam_id = ? AND class_members.user_id = ?", examID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *examRepository) GetQuestion(ctx context.Context, questionID, examID uuid.UUID) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Where("id = ? AND exam_id = ?", questionID, examID).
		First(&question).Error
	if err != nil {
		return models.Question{}, err
	}

	return question, nil
}

func (r *examRepository) MaxScore(ctx context.Context, examID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(score), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}

	return total, nil
}
