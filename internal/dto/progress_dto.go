package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/examio/examio-api/internal/models"
)

// CreateProgressRequest records the start of a trackable activity.
type CreateProgressRequest struct {
	CourseName       string                `json:"course_name" validate:"required,min=1"`
	CourseType       models.CourseType     `json:"course_type" validate:"required,oneof=course exam assignment quiz project"`
	Status           models.ProgressStatus `json:"status" validate:"required,oneof=started in_progress completed failed enrolled"`
	TotalScore       *int                  `json:"total_score"`
	MaxScore         *int                  `json:"max_score"`
	ExperiencePoints *int                  `json:"experience_points"`
}

// UpdateProgressRequest transitions an existing progress entry.
type UpdateProgressRequest struct {
	ProgressPercentage *int                  `json:"progress_percentage" validate:"omitempty,min=0,max=100"`
	Status             models.ProgressStatus `json:"status" validate:"required,oneof=started in_progress completed failed enrolled"`
	TotalScore         *int                  `json:"total_score"`
	CompletedAt        *time.Time            `json:"completed_at"`
	ExperiencePoints   *int                  `json:"experience_points"`
}

// ProgressResponse is the external view of a progress entry.
type ProgressResponse struct {
	ID                 uuid.UUID             `json:"id"`
	UserID             uuid.UUID             `json:"user_id"`
	CourseName         string                `json:"course_name"`
	CourseType         models.CourseType     `json:"course_type"`
	ProgressPercentage *int                  `json:"progress_percentage"`
	Status             models.ProgressStatus `json:"status"`
	StartedAt          time.Time             `json:"started_at"`
	CompletedAt        *time.Time            `json:"completed_at"`
	TotalScore         *int                  `json:"total_score"`
	MaxScore           *int                  `json:"max_score"`
	Level              int                   `json:"level"`
	ExperiencePoints   int                   `json:"experience_points"`
}

// NewProgressResponse converts a progress model to its response shape.
func NewProgressResponse(progress models.UserProgress) ProgressResponse {
	return ProgressResponse{
		ID:                 progress.ID,
		UserID:             progress.UserID,
		CourseName:         progress.CourseName,
		CourseType:         progress.CourseType,
		ProgressPercentage: progress.ProgressPercentage,
		Status:             progress.Status,
		StartedAt:          progress.StartedAt,
		CompletedAt:        progress.CompletedAt,
		TotalScore:         progress.TotalScore,
		MaxScore:           progress.MaxScore,
		Level:              progress.Level,
		ExperiencePoints:   progress.ExperiencePoints,
	}
}

// NewProgressResponseSlice converts a slice of progress models.
func NewProgressResponseSlice(entries []models.UserProgress) []ProgressResponse {
	responses := make([]ProgressResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewProgressResponse(entry))
	}
	return responses
}

// UserLevelResponse is the external view of a user's leveling row.
type UserLevelResponse struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	CurrentLevel          int       `json:"current_level"`
	TotalExperience       int       `json:"total_experience"`
	ExperienceToNextLevel int       `json:"experience_to_next_level"`
	LevelTitle            string    `json:"level_title"`
	Achievements          []string  `json:"achievements"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewUserLevelResponse converts a level model to its response shape.
func NewUserLevelResponse(level models.UserLevel) UserLevelResponse {
	return UserLevelResponse{
		ID:                    level.ID,
		UserID:                level.UserID,
		CurrentLevel:          level.CurrentLevel,
		TotalExperience:       level.TotalExperience,
		ExperienceToNextLevel: level.ExperienceToNextLevel,
		LevelTitle:            level.LevelTitle,
		Achievements:          level.AchievementNames(),
		UpdatedAt:             level.UpdatedAt,
	}
}

// ProgressSummaryResponse aggregates leveling state and recent activity for
// the dashboard.
type ProgressSummaryResponse struct {
	UserLevel             UserLevelResponse  `json:"user_level"`
	RecentActivities      []ProgressResponse `json:"recent_activities"`
	CompletedCourses      int64              `json:"completed_courses"`
	CoursesInProgress     int64              `json:"courses_in_progress"`
	TotalExperienceEarned int64              `json:"total_experience_earned"`
	AchievementsUnlocked  int                `json:"achievements_unlocked"`
}

// LeaderboardEntry is one ranked row in the leaderboard.
type LeaderboardEntry struct {
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Level           int       `json:"level"`
	TotalExperience int       `json:"total_experience"`
	LevelTitle      string    `json:"level_title"`
}
