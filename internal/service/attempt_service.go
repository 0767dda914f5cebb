package service

import (
	"context"
	"errors"
	"html"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/grading"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/observability"
	"github.com/examio/examio-api/internal/repository"
)

// Attempt lifecycle errors surfaced to the transport layer.
var (
	// ErrExamNotFound covers a missing exam, an inactive one, and one outside
	// its availability window.
	ErrExamNotFound = errors.New("exam not found or not active")
	// ErrExamAccessDenied means no class the user belongs to is assigned the exam.
	ErrExamAccessDenied = errors.New("no access to this exam")
	// ErrAttemptExists means the user already has an attempt for the exam.
	ErrAttemptExists = errors.New("user already has an attempt for this exam")
	// ErrAttemptNotFound means the attempt does not exist or is not owned by the caller.
	ErrAttemptNotFound = errors.New("exam attempt not found")
	// ErrAttemptSubmitted rejects a second submission of the same attempt.
	ErrAttemptSubmitted = errors.New("exam attempt already submitted")
	// ErrAttemptExpired means the exam window or the per-attempt duration has elapsed.
	ErrAttemptExpired = errors.New("exam time has expired")
	// ErrQuestionNotInExam means a submitted answer references a question
	// outside the attempt's exam.
	ErrQuestionNotInExam = errors.New("question not found")
	// ErrDuplicateAnswer means the submission batch answers the same question
	// more than once.
	ErrDuplicateAnswer = errors.New("duplicate answer for question")
)

// AttemptService orchestrates the exam-attempt lifecycle: start, submission
// with auto-grading, and the read projections.
type AttemptService interface {
	Start(ctx context.Context, userID uuid.UUID, payload dto.StartAttemptRequest) (dto.AttemptResponse, error)
	Submit(ctx context.Context, userID uuid.UUID, payload dto.SubmitAttemptRequest) (dto.AttemptResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]dto.AttemptResponse, error)
	ListForExam(ctx context.Context, examID uuid.UUID) ([]dto.AttemptResponse, error)
	GetWithAnswers(ctx context.Context, attemptID, userID uuid.UUID) (dto.AttemptWithAnswersResponse, error)
	GetActive(ctx context.Context, userID, examID uuid.UUID) (*dto.AttemptResponse, error)
}

type attemptService struct {
	attempts  repository.AttemptRepository
	exams     repository.ExamRepository
	progress  ProgressRecorder
	events    AttemptEventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAttemptService constructs an AttemptService instance.
func NewAttemptService(attempts repository.AttemptRepository, exams repository.ExamRepository, progress ProgressRecorder, events AttemptEventPublisher, validate *validator.Validate, logger zerolog.Logger) AttemptService {
	return &attemptService{
		attempts:  attempts,
		exams:     exams,
		progress:  progress,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "attempt_service").Logger(),
		tracer:    otel.Tracer("github.com/examio/examio-api/internal/service/attempt"),
		now:       time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, userID uuid.UUID, payload dto.StartAttemptRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	now := s.now()

	exam, err := s.exams.GetActiveInWindow(ctx, payload.ExamID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrExamNotFound
		}
		return dto.AttemptResponse{}, err
	}

	hasAccess, err := s.exams.HasClassAccess(ctx, exam.ID, userID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if !hasAccess {
		return dto.AttemptResponse{}, ErrExamAccessDenied
	}

	if _, err := s.attempts.GetByExamAndUser(ctx, exam.ID, userID); err == nil {
		return dto.AttemptResponse{}, ErrAttemptExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AttemptResponse{}, err
	}

	attempt := models.ExamAttempt{
		UserID:    userID,
		ExamID:    exam.ID,
		StartedAt: &now,
	}

	if err := s.attempts.Create(ctx, &attempt); err != nil {
		// The unique index on (exam_id, user_id) closes the race between the
		// existence check above and this insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AttemptResponse{}, ErrAttemptExists
		}
		return dto.AttemptResponse{}, err
	}

	observability.AttemptsStarted().Inc()
	s.logger.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("user_id", userID.String()).
		Str("exam_id", exam.ID.String()).
		Msg("exam attempt started")

	s.progress.RecordExamStarted(ctx, userID, exam.Title)
	s.events.PublishStarted(ctx, attempt, exam.Title)

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) Submit(ctx context.Context, userID uuid.UUID, payload dto.SubmitAttemptRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	attempt, err := s.attempts.GetByIDForUser(ctx, payload.AttemptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrAttemptNotFound
		}
		return dto.AttemptResponse{}, err
	}

	if attempt.SubmittedAt != nil {
		return dto.AttemptResponse{}, ErrAttemptSubmitted
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrExamNotFound
		}
		return dto.AttemptResponse{}, err
	}

	now := s.now()
	// Both the absolute exam window and the per-attempt duration must hold;
	// whichever is tighter governs.
	if now.After(exam.EndTime) {
		return dto.AttemptResponse{}, ErrAttemptExpired
	}
	if attempt.StartedAt != nil && now.After(exam.AttemptDeadline(*attempt.StartedAt)) {
		return dto.AttemptResponse{}, ErrAttemptExpired
	}

	spanCtx, span := s.tracer.Start(ctx, "attempts.submit", trace.WithAttributes(
		attribute.String("attempt.id", attempt.ID.String()),
		attribute.Int("attempt.answer_count", len(payload.Answers)),
	))
	defer span.End()

	gradingStart := s.now()
	totalScore := 0
	answers := make([]models.Answer, 0, len(payload.Answers))
	seen := make(map[uuid.UUID]struct{}, len(payload.Answers))

	for _, submission := range payload.Answers {
		if _, dup := seen[submission.QuestionID]; dup {
			return dto.AttemptResponse{}, ErrDuplicateAnswer
		}
		seen[submission.QuestionID] = struct{}{}

		question, err := s.exams.GetQuestion(spanCtx, submission.QuestionID, attempt.ExamID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.AttemptResponse{}, ErrQuestionNotInExam
			}
			return dto.AttemptResponse{}, err
		}

		// Grading compares the submission verbatim; the sanitizer only cleans
		// the copy that gets stored.
		result := grading.Grade(question, submission.AnswerText)
		totalScore += result.Awarded
		answerText := s.sanitizeAnswer(submission.AnswerText)

		answers = append(answers, models.Answer{
			AttemptID:    attempt.ID,
			QuestionID:   question.ID,
			AnswerText:   &answerText,
			IsCorrect:    result.Correct,
			ScoreAwarded: result.Awarded,
		})
	}

	updated, err := s.attempts.SubmitGraded(spanCtx, attempt.ID, now, totalScore, answers)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptAlreadySubmitted) {
			return dto.AttemptResponse{}, ErrAttemptSubmitted
		}
		return dto.AttemptResponse{}, err
	}

	observability.AttemptsSubmitted().Inc()
	observability.GradingDuration().Observe(s.now().Sub(gradingStart).Seconds())
	s.logger.Info().
		Str("attempt_id", updated.ID.String()).
		Str("user_id", userID.String()).
		Int("score_total", totalScore).
		Msg("exam attempt submitted")

	s.completeExamProgress(ctx, userID, exam, totalScore)
	s.events.PublishSubmitted(ctx, updated, exam.Title)

	return dto.NewAttemptResponse(updated), nil
}

// sanitizeAnswer strips markup from an answer before it is stored. The
// sanitizer escapes entities, so unescape afterwards to keep plain text like
// "a & b" intact.
func (s *attemptService) sanitizeAnswer(text string) string {
	return html.UnescapeString(s.sanitizer.Sanitize(text))
}

// completeExamProgress drives the best-effort progress side-effect after a
// successful submission. Failures are logged and never propagate.
func (s *attemptService) completeExamProgress(ctx context.Context, userID uuid.UUID, exam models.Exam, totalScore int) {
	maxScore, err := s.exams.MaxScore(ctx, exam.ID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("exam_id", exam.ID.String()).
			Msg("failed to compute max score for progress update")
		return
	}

	s.progress.RecordExamCompleted(ctx, userID, exam.Title, totalScore, maxScore)
}

func (s *attemptService) ListForUser(ctx context.Context, userID uuid.UUID) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) ListForExam(ctx context.Context, examID uuid.UUID) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) GetWithAnswers(ctx context.Context, attemptID, userID uuid.UUID) (dto.AttemptWithAnswersResponse, error) {
	attempt, err := s.attempts.GetByIDForUser(ctx, attemptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptWithAnswersResponse{}, ErrAttemptNotFound
		}
		return dto.AttemptWithAnswersResponse{}, err
	}

	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return dto.AttemptWithAnswersResponse{}, err
	}

	responses := make([]dto.AnswerResponse, 0, len(answers))
	for _, answer := range answers {
		responses = append(responses, dto.NewAnswerResponse(answer))
	}

	return dto.AttemptWithAnswersResponse{
		Attempt: dto.NewAttemptResponse(attempt),
		Answers: responses,
	}, nil
}

func (s *attemptService) GetActive(ctx context.Context, userID, examID uuid.UUID) (*dto.AttemptResponse, error) {
	attempt, err := s.attempts.GetActive(ctx, userID, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewAttemptResponse(attempt)
	return &response, nil
}
