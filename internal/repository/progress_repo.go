package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/models"
)

// ProgressStats aggregates a user's progress rows for the summary view.
type ProgressStats struct {
	Completed       int64
	InProgress      int64
	TotalExperience int64
}

// LeaderboardRow is one ranked user joined with their display name.
type LeaderboardRow struct {
	UserID          uuid.UUID
	Name            string
	CurrentLevel    int
	TotalExperience int
	LevelTitle      string
}

// ProgressRepository owns all writes to user_progress and user_levels.
type ProgressRepository interface {
	CreateProgress(ctx context.Context, progress *models.UserProgress) error
	SaveProgress(ctx context.Context, progress *models.UserProgress) error
	GetProgressByIDForUser(ctx context.Context, progressID, userID uuid.UUID) (models.UserProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserProgress, error)
	FindStartedActivity(ctx context.Context, userID uuid.UUID, courseName string, courseType models.CourseType) (models.UserProgress, error)
	CountCompleted(ctx context.Context, userID uuid.UUID, courseType models.CourseType) (int64, error)
	Stats(ctx context.Context, userID uuid.UUID) (ProgressStats, error)
	GetLevel(ctx context.Context, userID uuid.UUID) (models.UserLevel, error)
	CreateLevel(ctx context.Context, level *models.UserLevel) error
	SaveLevel(ctx context.Context, level *models.UserLevel) error
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) CreateProgress(ctx context.Context, progress *models.UserProgress) error {
	return r.db.WithContext(ctx).Create(progress).Error
}

func (r *progressRepository) SaveProgress(ctx context.Context, progress *models.UserProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}

func (r *progressRepository) GetProgressByIDForUser(ctx context.Context, progressID, userID uuid.UUID) (models.UserProgress, error) {
	var progress models.UserProgress
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", progressID, userID).
		First(&progress).Error
	if err != nil {
		return models.UserProgress{}, err
	}

	return progress, nil
}

func (r *progressRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserProgress, error) {
	var entries []models.UserProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// FindStartedActivity returns the most recent unmatched started entry for an
// activity, used to pair an exam submission with the entry created at start.
func (r *progressRepository) FindStartedActivity(ctx context.Context, userID uuid.UUID, courseName string, courseType models.CourseType) (models.UserProgress, error) {
	var progress models.UserProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_name = ? AND course_type = ? AND status = ?",
			userID, courseName, courseType, models.ProgressStatusStarted).
		Order("started_at DESC").
		First(&progress).Error
	if err != nil {
		return models.UserProgress{}, err
	}

	return progress, nil
}

func (r *progressRepository) CountCompleted(ctx context.Context, userID uuid.UUID, courseType models.CourseType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserProgress{}).
		Where("user_id = ? AND status = ? AND course_type = ?", userID, models.ProgressStatusCompleted, courseType).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *progressRepository) Stats(ctx context.Context, userID uuid.UUID) (ProgressStats, error) {
	var row struct {
		Completed       int64
		InProgress      int64
		TotalExperience int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.UserProgress{}).
		Select(
			"COUNT(CASE WHEN status = ? THEN 1 END) AS completed, "+
				"COUNT(CASE WHEN status IN (?, ?) THEN 1 END) AS in_progress, "+
				"COALESCE(SUM(experience_points), 0) AS total_experience",
			models.ProgressStatusCompleted, models.ProgressStatusStarted, models.ProgressStatusInProgress,
		).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return ProgressStats{}, err
	}

	return ProgressStats{
		Completed:       row.Completed,
		InProgress:      row.InProgress,
		TotalExperience: row.TotalExperience,
	}, nil
}

func (r *progressRepository) GetLevel(ctx context.Context, userID uuid.UUID) (models.UserLevel, error) {
	var level models.UserLevel
	if err := r.db.WithContext(ctx).First(&level, "user_id = ?", userID).Error; err != nil {
		return models.UserLevel{}, err
	}

	return level, nil
}

func (r *progressRepository) CreateLevel(ctx context.Context, level *models.UserLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *progressRepository) SaveLevel(ctx context.Context, level *models.UserLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

func (r *progressRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.db.WithContext(ctx).
		Table("user_levels").
		Select("user_levels.user_id, users.name, user_levels.current_level, user_levels.total_experience, user_levels.level_title").
		Joins("JOIN users ON users.id = user_levels.user_id").
		Order("user_levels.current_level DESC, user_levels.total_experience DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
