package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/leveling"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/observability"
	"github.com/examio/examio-api/internal/repository"
)

// ErrProgressNotFound indicates a progress entry could not be found for the user.
var ErrProgressNotFound = errors.New("progress entry not found")

const (
	defaultProgressLimit  = 50
	leaderboardMaxEntries = 50
)

// ProgressRecorder is the best-effort surface the attempt lifecycle calls
// into. Methods return nothing: failures are captured and logged inside, so
// an attempt operation can never fail because of the progress engine.
type ProgressRecorder interface {
	RecordExamStarted(ctx context.Context, userID uuid.UUID, examTitle string)
	RecordExamCompleted(ctx context.Context, userID uuid.UUID, examTitle string, totalScore, maxScore int)
}

// ProgressService tracks per-activity progress entries and the derived
// per-user level, experience, and achievements.
type ProgressService interface {
	ProgressRecorder
	Create(ctx context.Context, userID uuid.UUID, payload dto.CreateProgressRequest) (dto.ProgressResponse, error)
	Update(ctx context.Context, progressID, userID uuid.UUID, payload dto.UpdateProgressRequest) (dto.ProgressResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]dto.ProgressResponse, error)
	GetLevel(ctx context.Context, userID uuid.UUID) (dto.UserLevelResponse, error)
	GetSummary(ctx context.Context, userID uuid.UUID) (dto.ProgressSummaryResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error)
}

type progressService struct {
	repo      repository.ProgressRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
	userLocks userLockMap
}

// NewProgressService constructs a ProgressService instance. The redis client
// is optional; without it the leaderboard is served uncached.
func NewProgressService(repo repository.ProgressRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ProgressService {
	return &progressService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "progress_service").Logger(),
		now:       time.Now,
		userLocks: userLockMap{locks: make(map[uuid.UUID]*sync.Mutex)},
	}
}

// userLockMap serializes level updates per user so two concurrent completions
// cannot lose an experience increment.
type userLockMap struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (m *userLockMap) lock(userID uuid.UUID) func() {
	m.mu.Lock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *progressService) Create(ctx context.Context, userID uuid.UUID, payload dto.CreateProgressRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProgressResponse{}, err
	}

	level, err := s.getOrCreateLevel(ctx, userID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	experience := 0
	if payload.ExperiencePoints != nil {
		experience = *payload.ExperiencePoints
	}

	progress := models.UserProgress{
		UserID:           userID,
		CourseName:       payload.CourseName,
		CourseType:       payload.CourseType,
		Status:           payload.Status,
		StartedAt:        s.now(),
		TotalScore:       payload.TotalScore,
		MaxScore:         payload.MaxScore,
		Level:            level.CurrentLevel,
		ExperiencePoints: experience,
	}

	if err := s.repo.CreateProgress(ctx, &progress); err != nil {
		return dto.ProgressResponse{}, err
	}

	if experience > 0 {
		unlock := s.userLocks.lock(userID)
		err := s.applyExperience(ctx, userID, experience)
		unlock()
		if err != nil {
			return dto.ProgressResponse{}, err
		}
	}

	return dto.NewProgressResponse(progress), nil
}

func (s *progressService) Update(ctx context.Context, progressID, userID uuid.UUID, payload dto.UpdateProgressRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProgressResponse{}, err
	}

	progress, err := s.repo.GetProgressByIDForUser(ctx, progressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrProgressNotFound
		}
		return dto.ProgressResponse{}, err
	}

	baseExperience := 0
	if payload.ExperiencePoints != nil {
		baseExperience = *payload.ExperiencePoints
	}

	experienceGain := baseExperience
	var completedAt *time.Time
	if payload.Status == models.ProgressStatusCompleted {
		completion := s.now()
		if payload.CompletedAt != nil {
			completion = *payload.CompletedAt
		}
		completedAt = &completion
		experienceGain = baseExperience + leveling.CompletionBonus(payload.TotalScore)
	}

	progress.ProgressPercentage = payload.ProgressPercentage
	progress.Status = payload.Status
	progress.TotalScore = payload.TotalScore
	progress.CompletedAt = completedAt
	// Experience on a row accumulates; it is never overwritten.
	progress.ExperiencePoints += experienceGain

	if err := s.repo.SaveProgress(ctx, &progress); err != nil {
		return dto.ProgressResponse{}, err
	}

	if experienceGain > 0 {
		unlock := s.userLocks.lock(userID)
		defer unlock()

		if err := s.applyExperience(ctx, userID, experienceGain); err != nil {
			return dto.ProgressResponse{}, err
		}
		if err := s.checkAchievements(ctx, progress); err != nil {
			return dto.ProgressResponse{}, err
		}
	}

	return dto.NewProgressResponse(progress), nil
}

// applyExperience is the single mutation path for user_levels. Callers must
// hold the user's lock.
func (s *progressService) applyExperience(ctx context.Context, userID uuid.UUID, delta int) error {
	level, err := s.getOrCreateLevel(ctx, userID)
	if err != nil {
		return err
	}

	level.TotalExperience += delta
	level.CurrentLevel = leveling.LevelForExperience(level.TotalExperience)
	level.LevelTitle = leveling.TitleForLevel(level.CurrentLevel)
	level.ExperienceToNextLevel = leveling.ExperienceToNextLevel(level.CurrentLevel)
	level.UpdatedAt = s.now()

	if err := s.repo.SaveLevel(ctx, &level); err != nil {
		return err
	}

	observability.ExperienceAwarded().Add(float64(delta))
	return nil
}

func (s *progressService) getOrCreateLevel(ctx context.Context, userID uuid.UUID) (models.UserLevel, error) {
	level, err := s.repo.GetLevel(ctx, userID)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserLevel{}, err
	}

	initial := models.UserLevel{
		UserID:                userID,
		CurrentLevel:          1,
		TotalExperience:       0,
		ExperienceToNextLevel: leveling.ExperienceToNextLevel(1),
		LevelTitle:            leveling.TitleForLevel(1),
		UpdatedAt:             s.now(),
	}
	if err := initial.SetAchievementNames(nil); err != nil {
		return models.UserLevel{}, err
	}

	if err := s.repo.CreateLevel(ctx, &initial); err != nil {
		// A concurrent request may have created the row first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.GetLevel(ctx, userID)
		}
		return models.UserLevel{}, err
	}

	return initial, nil
}

// checkAchievements evaluates the achievement catalog after an experience
// grant. Callers must hold the user's lock. Reward experience cascades
// through applyExperience and may itself raise the level again.
func (s *progressService) checkAchievements(ctx context.Context, progress models.UserProgress) error {
	level, err := s.getOrCreateLevel(ctx, progress.UserID)
	if err != nil {
		return err
	}

	var unlocked []string
	for _, achievement := range models.DefaultAchievements() {
		if level.HasAchievement(achievement.Name) {
			continue
		}

		met, err := s.conditionMet(ctx, achievement.Condition, level, progress)
		if err != nil {
			return err
		}
		if !met {
			continue
		}

		unlocked = append(unlocked, achievement.Name)
		if err := s.applyExperience(ctx, progress.UserID, achievement.ExperienceReward); err != nil {
			return err
		}

		s.logger.Info().
			Str("user_id", progress.UserID.String()).
			Str("achievement", achievement.Name).
			Msg("achievement unlocked")
	}

	if len(unlocked) == 0 {
		return nil
	}

	// Re-read so the reward experience applied above is not clobbered.
	current, err := s.repo.GetLevel(ctx, progress.UserID)
	if err != nil {
		return err
	}
	if err := current.SetAchievementNames(append(current.AchievementNames(), unlocked...)); err != nil {
		return err
	}
	current.UpdatedAt = s.now()

	return s.repo.SaveLevel(ctx, &current)
}

func (s *progressService) conditionMet(ctx context.Context, condition models.AchievementCondition, level models.UserLevel, progress models.UserProgress) (bool, error) {
	switch condition.Kind {
	case models.ConditionCompleteExams:
		count, err := s.repo.CountCompleted(ctx, progress.UserID, models.CourseTypeExam)
		if err != nil {
			return false, err
		}
		return count >= int64(condition.Threshold), nil
	case models.ConditionScoreAbove:
		if progress.ProgressPercentage != nil {
			return *progress.ProgressPercentage >= condition.Threshold, nil
		}
		if progress.TotalScore == nil || progress.MaxScore == nil || *progress.MaxScore <= 0 {
			return false, nil
		}
		return (*progress.TotalScore*100 / *progress.MaxScore) >= condition.Threshold, nil
	case models.ConditionTotalExperience:
		return level.TotalExperience >= condition.Threshold, nil
	case models.ConditionConsecutiveDays:
		// Study-day tracking does not exist yet; always false.
		return false, nil
	case models.ConditionCompleteInTime:
		// Attempt duration is not carried into the progress engine; always false.
		return false, nil
	default:
		return false, nil
	}
}

func (s *progressService) RecordExamStarted(ctx context.Context, userID uuid.UUID, examTitle string) {
	payload := dto.CreateProgressRequest{
		CourseName: examTitle,
		CourseType: models.CourseTypeExam,
		Status:     models.ProgressStatusStarted,
	}

	if _, err := s.Create(ctx, userID, payload); err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID.String()).
			Str("exam_title", examTitle).
			Msg("failed to create progress entry for exam start")
	}
}

func (s *progressService) RecordExamCompleted(ctx context.Context, userID uuid.UUID, examTitle string, totalScore, maxScore int) {
	started, err := s.repo.FindStartedActivity(ctx, userID, examTitle, models.CourseTypeExam)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().
				Str("user_id", userID.String()).
				Str("exam_title", examTitle).
				Msg("no started progress entry to complete")
			return
		}
		s.logger.Warn().Err(err).
			Str("user_id", userID.String()).
			Msg("failed to look up progress entry for exam completion")
		return
	}

	var percentage *int
	if maxScore > 0 {
		value := totalScore * 100 / maxScore
		percentage = &value
	}
	award := leveling.ExamExperience(totalScore, maxScore)

	payload := dto.UpdateProgressRequest{
		ProgressPercentage: percentage,
		Status:             models.ProgressStatusCompleted,
		TotalScore:         &totalScore,
		ExperiencePoints:   &award,
	}

	if _, err := s.Update(ctx, started.ID, userID, payload); err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID.String()).
			Str("exam_title", examTitle).
			Msg("failed to complete progress entry for exam submission")
	}
}

func (s *progressService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]dto.ProgressResponse, error) {
	if limit <= 0 {
		limit = defaultProgressLimit
	}

	entries, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewProgressResponseSlice(entries), nil
}

func (s *progressService) GetLevel(ctx context.Context, userID uuid.UUID) (dto.UserLevelResponse, error) {
	level, err := s.getOrCreateLevel(ctx, userID)
	if err != nil {
		return dto.UserLevelResponse{}, err
	}

	return dto.NewUserLevelResponse(level), nil
}

func (s *progressService) GetSummary(ctx context.Context, userID uuid.UUID) (dto.ProgressSummaryResponse, error) {
	level, err := s.getOrCreateLevel(ctx, userID)
	if err != nil {
		return dto.ProgressSummaryResponse{}, err
	}

	recent, err := s.ListForUser(ctx, userID, 10)
	if err != nil {
		return dto.ProgressSummaryResponse{}, err
	}

	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return dto.ProgressSummaryResponse{}, err
	}

	return dto.ProgressSummaryResponse{
		UserLevel:             dto.NewUserLevelResponse(level),
		RecentActivities:      recent,
		CompletedCourses:      stats.Completed,
		CoursesInProgress:     stats.InProgress,
		TotalExperienceEarned: stats.TotalExperience,
		AchievementsUnlocked:  len(level.AchievementNames()),
	}, nil
}

func (s *progressService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > leaderboardMaxEntries {
		limit = leaderboardMaxEntries
	}

	cacheKey := fmt.Sprintf("leaderboard:top:%d", limit)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var entries []dto.LeaderboardEntry
			if unmarshalErr := json.Unmarshal([]byte(cached), &entries); unmarshalErr == nil {
				s.logger.Debug().Int("limit", limit).Msg("leaderboard cache hit")
				return entries, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	rows, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			UserID:          row.UserID,
			Name:            row.Name,
			Level:           row.CurrentLevel,
			TotalExperience: row.TotalExperience,
			LevelTitle:      row.LevelTitle,
		})
	}

	if s.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return entries, nil
}
