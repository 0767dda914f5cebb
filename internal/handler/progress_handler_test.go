package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/handler"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/service"
)

type stubProgressService struct {
	progress    dto.ProgressResponse
	entries     []dto.ProgressResponse
	level       dto.UserLevelResponse
	summary     dto.ProgressSummaryResponse
	leaderboard []dto.LeaderboardEntry
	err         error
	lastUserID  uuid.UUID
	lastLimit   int
}

func (s *stubProgressService) Create(_ context.Context, userID uuid.UUID, _ dto.CreateProgressRequest) (dto.ProgressResponse, error) {
	s.lastUserID = userID
	return s.progress, s.err
}

func (s *stubProgressService) Update(_ context.Context, _, userID uuid.UUID, _ dto.UpdateProgressRequest) (dto.ProgressResponse, error) {
	s.lastUserID = userID
	return s.progress, s.err
}

func (s *stubProgressService) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]dto.ProgressResponse, error) {
	s.lastUserID = userID
	s.lastLimit = limit
	return s.entries, s.err
}

func (s *stubProgressService) GetLevel(_ context.Context, userID uuid.UUID) (dto.UserLevelResponse, error) {
	s.lastUserID = userID
	return s.level, s.err
}

func (s *stubProgressService) GetSummary(_ context.Context, userID uuid.UUID) (dto.ProgressSummaryResponse, error) {
	s.lastUserID = userID
	return s.summary, s.err
}

func (s *stubProgressService) Leaderboard(_ context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	s.lastLimit = limit
	return s.leaderboard, s.err
}

func (s *stubProgressService) RecordExamStarted(context.Context, uuid.UUID, string) {}

func (s *stubProgressService) RecordExamCompleted(context.Context, uuid.UUID, string, int, int) {}

func progressTestApp(svc service.ProgressService, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewProgressHandler(svc, zerolog.Nop())
	h.RegisterPublic(app.Group("/api/v1/progress"))
	group := app.Group("/api/v1/progress", func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		return c.Next()
	})
	h.Register(group)
	return app
}

func TestProgressHandlerCreate(t *testing.T) {
	userID := uuid.New()
	svc := &stubProgressService{
		progress: dto.ProgressResponse{
			ID:         uuid.New(),
			UserID:     userID,
			CourseName: "Algebra Midterm",
			CourseType: models.CourseTypeExam,
			Status:     models.ProgressStatusStarted,
		},
	}
	app := progressTestApp(svc, userID, models.RoleStudent)

	body := dto.CreateProgressRequest{
		CourseName: "Algebra Midterm",
		CourseType: models.CourseTypeExam,
		Status:     models.ProgressStatusStarted,
	}
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/progress", body), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                 `json:"success"`
		Data    dto.ProgressResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	require.True(t, payload.Success)
	require.Equal(t, svc.progress.ID, payload.Data.ID)
	require.Equal(t, userID, svc.lastUserID)
}

func TestProgressHandlerUpdateNotFound(t *testing.T) {
	svc := &stubProgressService{err: service.ErrProgressNotFound}
	app := progressTestApp(svc, uuid.New(), models.RoleStudent)

	body := dto.UpdateProgressRequest{Status: models.ProgressStatusCompleted}
	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/v1/progress/"+uuid.NewString(), body), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProgressHandlerTeacherOnlyRoutes(t *testing.T) {
	svc := &stubProgressService{}
	otherUser := uuid.NewString()

	app := progressTestApp(svc, uuid.New(), models.RoleStudent)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/user/"+otherUser, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/level/"+otherUser, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	app = progressTestApp(svc, uuid.New(), models.RoleTeacher)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/user/"+otherUser, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProgressHandlerLeaderboardIsPublic(t *testing.T) {
	svc := &stubProgressService{
		leaderboard: []dto.LeaderboardEntry{
			{UserID: uuid.New(), Name: "Top Student", Level: 7, TotalExperience: 3000, LevelTitle: "Advanced"},
		},
	}

	// No auth locals at all on the public group.
	app := fiber.New()
	handler.NewProgressHandler(svc, zerolog.Nop()).RegisterPublic(app.Group("/api/v1/progress"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/leaderboard?limit=5", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 5, svc.lastLimit)

	var payload struct {
		Success bool                   `json:"success"`
		Data    []dto.LeaderboardEntry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	require.True(t, payload.Success)
	require.Len(t, payload.Data, 1)
	require.Equal(t, "Top Student", payload.Data[0].Name)
}

func TestProgressHandlerLevelAndSummary(t *testing.T) {
	userID := uuid.New()
	svc := &stubProgressService{
		level: dto.UserLevelResponse{UserID: userID, CurrentLevel: 3, TotalExperience: 450, LevelTitle: "Intermediate"},
		summary: dto.ProgressSummaryResponse{
			UserLevel:        dto.UserLevelResponse{UserID: userID, CurrentLevel: 3},
			CompletedCourses: 2,
		},
	}
	app := progressTestApp(svc, userID, models.RoleStudent)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/level", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, userID, svc.lastUserID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/progress/summary", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
