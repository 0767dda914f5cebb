package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseType classifies the activity a progress entry tracks.
type CourseType string

const (
	CourseTypeCourse     CourseType = "course"
	CourseTypeExam       CourseType = "exam"
	CourseTypeAssignment CourseType = "assignment"
	CourseTypeQuiz       CourseType = "quiz"
	CourseTypeProject    CourseType = "project"
)

// ProgressStatus is the lifecycle state of a progress entry.
type ProgressStatus string

const (
	ProgressStatusStarted    ProgressStatus = "started"
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusCompleted  ProgressStatus = "completed"
	ProgressStatusFailed     ProgressStatus = "failed"
	// ProgressStatusEnrolled is the entry state for non-exam activities.
	ProgressStatusEnrolled ProgressStatus = "enrolled"
)

// UserProgress is one row per activity instance. Experience points on a row
// only ever accumulate; completed_at is set exactly when the status becomes
// completed.
type UserProgress struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseName         string         `gorm:"size:255;not null" json:"course_name"`
	CourseType         CourseType     `gorm:"size:32;not null" json:"course_type"`
	ProgressPercentage *int           `json:"progress_percentage"`
	Status             ProgressStatus `gorm:"size:32;not null" json:"status"`
	StartedAt          time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at"`
	TotalScore         *int           `json:"total_score"`
	MaxScore           *int           `json:"max_score"`
	Level              int            `gorm:"not null" json:"level"`
	ExperiencePoints   int            `gorm:"not null;default:0" json:"experience_points"`
}

// BeforeCreate assigns a fresh identifier when none is set.
func (p *UserProgress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// UserLevel is the single per-user leveling row, created lazily on first
// access. Level and title are always the deterministic function of total
// experience; the achievements set only grows.
type UserLevel struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CurrentLevel          int            `gorm:"not null" json:"current_level"`
	TotalExperience       int            `gorm:"not null" json:"total_experience"`
	ExperienceToNextLevel int            `gorm:"not null" json:"experience_to_next_level"`
	LevelTitle            string         `gorm:"size:64;not null" json:"level_title"`
	Achievements          datatypes.JSON `gorm:"type:json" json:"achievements"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a fresh identifier when none is set.
func (l *UserLevel) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// AchievementNames decodes the stored achievements array. Malformed or empty
// payloads decode to an empty slice.
func (l UserLevel) AchievementNames() []string {
	if len(l.Achievements) == 0 {
		return []string{}
	}
	var names []string
	if err := json.Unmarshal(l.Achievements, &names); err != nil {
		return []string{}
	}
	return names
}

// SetAchievementNames encodes the achievements array for storage.
func (l *UserLevel) SetAchievementNames(names []string) error {
	if names == nil {
		names = []string{}
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return err
	}
	l.Achievements = datatypes.JSON(payload)
	return nil
}

// HasAchievement reports whether the named achievement is already unlocked.
func (l UserLevel) HasAchievement(name string) bool {
	for _, existing := range l.AchievementNames() {
		if existing == name {
			return true
		}
	}
	return false
}

// AchievementConditionKind identifies how an achievement unlocks.
type AchievementConditionKind string

const (
	ConditionCompleteExams   AchievementConditionKind = "complete_exams"
	ConditionScoreAbove      AchievementConditionKind = "score_above"
	ConditionTotalExperience AchievementConditionKind = "total_experience"
	// ConditionConsecutiveDays has no evaluator yet; study-day tracking does
	// not exist, so it always evaluates false.
	ConditionConsecutiveDays AchievementConditionKind = "consecutive_days"
	// ConditionCompleteInTime has no evaluator yet; attempt duration is not
	// carried into the progress engine, so it always evaluates false.
	ConditionCompleteInTime AchievementConditionKind = "complete_in_time"
)

// AchievementCondition pairs an unlock kind with its threshold.
type AchievementCondition struct {
	Kind      AchievementConditionKind `json:"kind"`
	Threshold int                      `json:"threshold"`
}

// Achievement is a fixed unlockable definition. Unlocking grants its
// experience reward on top of the triggering activity's award.
type Achievement struct {
	Name             string               `json:"name"`
	Description      string               `json:"description"`
	Icon             string               `json:"icon"`
	ExperienceReward int                  `json:"experience_reward"`
	Condition        AchievementCondition `json:"condition"`
}

// DefaultAchievements returns the built-in achievement catalog.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			Name:             "First Steps",
			Description:      "Complete your first exam",
			Icon:             "🎯",
			ExperienceReward: 100,
			Condition:        AchievementCondition{Kind: ConditionCompleteExams, Threshold: 1},
		},
		{
			Name:             "High Achiever",
			Description:      "Score above 90% in an exam",
			Icon:             "🏆",
			ExperienceReward: 200,
			Condition:        AchievementCondition{Kind: ConditionScoreAbove, Threshold: 90},
		},
		{
			Name:             "Dedicated Learner",
			Description:      "Study for 7 consecutive days",
			Icon:             "📚",
			ExperienceReward: 300,
			Condition:        AchievementCondition{Kind: ConditionConsecutiveDays, Threshold: 7},
		},
		{
			Name:             "Experience Master",
			Description:      "Reach 1000 total experience points",
			Icon:             "💎",
			ExperienceReward: 500,
			Condition:        AchievementCondition{Kind: ConditionTotalExperience, Threshold: 1000},
		},
		{
			Name:             "Speed Runner",
			Description:      "Complete an exam in under 30 minutes",
			Icon:             "⚡",
			ExperienceReward: 250,
			Condition:        AchievementCondition{Kind: ConditionCompleteInTime, Threshold: 30},
		},
	}
}
