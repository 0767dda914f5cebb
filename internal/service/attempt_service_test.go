package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeExamRepo struct {
	exam        models.Exam
	questions   map[uuid.UUID]models.Question
	hasAccess   bool
	maxScore    int
	maxScoreErr error
}

func (f *fakeExamRepo) GetByID(ctx context.Context, examID uuid.UUID) (models.Exam, error) {
	if examID != f.exam.ID {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return f.exam, nil
}

func (f *fakeExamRepo) GetActiveInWindow(ctx context.Context, examID uuid.UUID, at time.Time) (models.Exam, error) {
	if examID != f.exam.ID || !f.exam.IsActive || !f.exam.WindowContains(at) {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return f.exam, nil
}

func (f *fakeExamRepo) HasClassAccess(ctx context.Context, examID, userID uuid.UUID) (bool, error) {
	return f.hasAccess, nil
}

func (f *fakeExamRepo) GetQuestion(ctx context.Context, questionID, examID uuid.UUID) (models.Question, error) {
	question, ok := f.questions[questionID]
	if !ok || question.ExamID != examID {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return question, nil
}

func (f *fakeExamRepo) MaxScore(ctx context.Context, examID uuid.UUID) (int, error) {
	if f.maxScoreErr != nil {
		return 0, f.maxScoreErr
	}
	return f.maxScore, nil
}

type fakeAttemptRepo struct {
	attempts map[uuid.UUID]models.ExamAttempt
	answers  map[uuid.UUID][]models.Answer
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{
		attempts: make(map[uuid.UUID]models.ExamAttempt),
		answers:  make(map[uuid.UUID][]models.Answer),
	}
}

func (f *fakeAttemptRepo) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	for _, existing := range f.attempts {
		if existing.ExamID == attempt.ExamID && existing.UserID == attempt.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	f.attempts[attempt.ID] = *attempt
	return nil
}

func (f *fakeAttemptRepo) GetByExamAndUser(ctx context.Context, examID, userID uuid.UUID) (models.ExamAttempt, error) {
	for _, attempt := range f.attempts {
		if attempt.ExamID == examID && attempt.UserID == userID {
			return attempt, nil
		}
	}
	return models.ExamAttempt{}, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) GetByIDForUser(ctx context.Context, attemptID, userID uuid.UUID) (models.ExamAttempt, error) {
	attempt, ok := f.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return models.ExamAttempt{}, gorm.ErrRecordNotFound
	}
	return attempt, nil
}

func (f *fakeAttemptRepo) GetActive(ctx context.Context, userID, examID uuid.UUID) (models.ExamAttempt, error) {
	for _, attempt := range f.attempts {
		if attempt.UserID == userID && attempt.ExamID == examID && attempt.SubmittedAt == nil {
			return attempt, nil
		}
	}
	return models.ExamAttempt{}, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	for _, attempt := range f.attempts {
		if attempt.UserID == userID {
			attempts = append(attempts, attempt)
		}
	}
	return attempts, nil
}

func (f *fakeAttemptRepo) ListByExam(ctx context.Context, examID uuid.UUID) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	for _, attempt := range f.attempts {
		if attempt.ExamID == examID {
			attempts = append(attempts, attempt)
		}
	}
	return attempts, nil
}

func (f *fakeAttemptRepo) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]models.Answer, error) {
	return f.answers[attemptID], nil
}

func (f *fakeAttemptRepo) SubmitGraded(ctx context.Context, attemptID uuid.UUID, submittedAt time.Time, scoreTotal int, answers []models.Answer) (models.ExamAttempt, error) {
	attempt, ok := f.attempts[attemptID]
	if !ok {
		return models.ExamAttempt{}, gorm.ErrRecordNotFound
	}
	if attempt.SubmittedAt != nil {
		return models.ExamAttempt{}, repository.ErrAttemptAlreadySubmitted
	}

	attempt.SubmittedAt = &submittedAt
	attempt.ScoreTotal = &scoreTotal
	f.attempts[attemptID] = attempt
	f.answers[attemptID] = answers
	return attempt, nil
}

type fakeProgressRecorder struct {
	started   int
	completed int
	lastTotal int
	lastMax   int
}

func (f *fakeProgressRecorder) RecordExamStarted(ctx context.Context, userID uuid.UUID, examTitle string) {
	f.started++
}

func (f *fakeProgressRecorder) RecordExamCompleted(ctx context.Context, userID uuid.UUID, examTitle string, totalScore, maxScore int) {
	f.completed++
	f.lastTotal = totalScore
	f.lastMax = maxScore
}

type nopEvents struct{}

func (nopEvents) PublishStarted(ctx context.Context, attempt models.ExamAttempt, examTitle string) {}
func (nopEvents) PublishSubmitted(ctx context.Context, attempt models.ExamAttempt, examTitle string) {
}

func stringPointer(s string) *string {
	return &s
}

func openExam() models.Exam {
	now := time.Now().UTC()
	return models.Exam{
		ID:              uuid.New(),
		Title:           "Algebra Midterm",
		DurationMinutes: 60,
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		IsActive:        true,
	}
}

func newAttemptServiceForTest(exams *fakeExamRepo, attempts *fakeAttemptRepo, recorder *fakeProgressRecorder) AttemptService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewAttemptService(attempts, exams, recorder, nopEvents{}, validate, testLogger())
}

func TestAttemptServiceStart(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{exam: exam, hasAccess: true}
	attempts := newFakeAttemptRepo()
	recorder := &fakeProgressRecorder{}
	svc := newAttemptServiceForTest(exams, attempts, recorder)

	userID := uuid.New()
	attempt, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)
	require.Equal(t, exam.ID, attempt.ExamID)
	require.Equal(t, userID, attempt.UserID)
	require.NotNil(t, attempt.StartedAt)
	require.Equal(t, models.AttemptStatusInProgress, attempt.Status)
	require.Equal(t, 1, recorder.started)
}

func TestAttemptServiceStartOutsideWindow(t *testing.T) {
	exam := openExam()
	exam.StartTime = time.Now().Add(time.Hour)
	exam.EndTime = time.Now().Add(2 * time.Hour)
	exams := &fakeExamRepo{exam: exam, hasAccess: true}
	svc := newAttemptServiceForTest(exams, newFakeAttemptRepo(), &fakeProgressRecorder{})

	_, err := svc.Start(context.Background(), uuid.New(), dto.StartAttemptRequest{ExamID: exam.ID})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestAttemptServiceStartWithoutClassAccess(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{exam: exam, hasAccess: false}
	svc := newAttemptServiceForTest(exams, newFakeAttemptRepo(), &fakeProgressRecorder{})

	_, err := svc.Start(context.Background(), uuid.New(), dto.StartAttemptRequest{ExamID: exam.ID})
	require.ErrorIs(t, err, ErrExamAccessDenied)
}

func TestAttemptServiceStartDuplicate(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{exam: exam, hasAccess: true}
	attempts := newFakeAttemptRepo()
	recorder := &fakeProgressRecorder{}
	svc := newAttemptServiceForTest(exams, attempts, recorder)

	userID := uuid.New()
	_, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.ErrorIs(t, err, ErrAttemptExists)
	require.Equal(t, 1, recorder.started)
}

func TestAttemptServiceSubmitGradesAnswers(t *testing.T) {
	exam := openExam()
	choiceID := uuid.New()
	essayID := uuid.New()
	exams := &fakeExamRepo{
		exam:      exam,
		hasAccess: true,
		maxScore:  15,
		questions: map[uuid.UUID]models.Question{
			choiceID: {
				ID:            choiceID,
				ExamID:        exam.ID,
				QuestionType:  string(models.QuestionTypeMultipleChoice),
				CorrectAnswer: stringPointer("A"),
				Score:         10,
			},
			essayID: {
				ID:           essayID,
				ExamID:       exam.ID,
				QuestionType: string(models.QuestionTypeEssay),
				Score:        5,
			},
		},
	}
	attempts := newFakeAttemptRepo()
	recorder := &fakeProgressRecorder{}
	svc := newAttemptServiceForTest(exams, attempts, recorder)

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers: []dto.AnswerSubmission{
			{QuestionID: choiceID, AnswerText: "a"},
			{QuestionID: essayID, AnswerText: "my essay text"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.ScoreTotal)
	require.Equal(t, 10, *submitted.ScoreTotal)
	require.Equal(t, models.AttemptStatusCompleted, submitted.Status)

	stored := attempts.answers[started.ID]
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].IsCorrect)
	require.True(t, *stored[0].IsCorrect)
	require.Equal(t, 10, stored[0].ScoreAwarded)
	require.Nil(t, stored[1].IsCorrect)
	require.Equal(t, 0, stored[1].ScoreAwarded)

	require.Equal(t, 1, recorder.completed)
	require.Equal(t, 10, recorder.lastTotal)
	require.Equal(t, 15, recorder.lastMax)
}

func TestAttemptServiceSubmitGradesVerbatimText(t *testing.T) {
	exam := openExam()
	choiceID := uuid.New()
	essayID := uuid.New()
	exams := &fakeExamRepo{
		exam:      exam,
		hasAccess: true,
		maxScore:  10,
		questions: map[uuid.UUID]models.Question{
			choiceID: {
				ID:            choiceID,
				ExamID:        exam.ID,
				QuestionType:  string(models.QuestionTypeMultipleChoice),
				CorrectAnswer: stringPointer("salt & pepper"),
				Score:         10,
			},
			essayID: {
				ID:           essayID,
				ExamID:       exam.ID,
				QuestionType: string(models.QuestionTypeEssay),
				Score:        5,
			},
		},
	}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	// Punctuation in the submission must survive into grading untouched, and
	// the stored text keeps it too while markup is stripped.
	submitted, err := svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers: []dto.AnswerSubmission{
			{QuestionID: choiceID, AnswerText: "salt & pepper"},
			{QuestionID: essayID, AnswerText: "<script>alert(1)</script>plain < text"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.ScoreTotal)
	require.Equal(t, 10, *submitted.ScoreTotal)

	stored := attempts.answers[started.ID]
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].IsCorrect)
	require.True(t, *stored[0].IsCorrect)
	require.Equal(t, 10, stored[0].ScoreAwarded)
	require.Equal(t, "salt & pepper", *stored[0].AnswerText)
	require.Equal(t, "plain < text", *stored[1].AnswerText)
}

func TestAttemptServiceSubmitDuplicateQuestion(t *testing.T) {
	exam := openExam()
	questionID := uuid.New()
	exams := &fakeExamRepo{
		exam:      exam,
		hasAccess: true,
		maxScore:  10,
		questions: map[uuid.UUID]models.Question{
			questionID: {
				ID:            questionID,
				ExamID:        exam.ID,
				QuestionType:  string(models.QuestionTypeMultipleChoice),
				CorrectAnswer: stringPointer("A"),
				Score:         10,
			},
		},
	}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers: []dto.AnswerSubmission{
			{QuestionID: questionID, AnswerText: "A"},
			{QuestionID: questionID, AnswerText: "B"},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateAnswer)

	// The attempt stays open and nothing is persisted.
	require.Empty(t, attempts.answers[started.ID])
	reloaded, err := attempts.GetByIDForUser(context.Background(), started.ID, userID)
	require.NoError(t, err)
	require.Nil(t, reloaded.SubmittedAt)
}

func TestAttemptServiceSubmitTwice(t *testing.T) {
	exam := openExam()
	questionID := uuid.New()
	exams := &fakeExamRepo{
		exam:      exam,
		hasAccess: true,
		maxScore:  10,
		questions: map[uuid.UUID]models.Question{
			questionID: {
				ID:            questionID,
				ExamID:        exam.ID,
				QuestionType:  string(models.QuestionTypeTrueFalse),
				CorrectAnswer: stringPointer("true"),
				Score:         10,
			},
		},
	}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	payload := dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers:   []dto.AnswerSubmission{{QuestionID: questionID, AnswerText: "true"}},
	}

	first, err := svc.Submit(context.Background(), userID, payload)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), userID, payload)
	require.ErrorIs(t, err, ErrAttemptSubmitted)

	// The second call must not disturb the stored result.
	reloaded, err := attempts.GetByIDForUser(context.Background(), started.ID, userID)
	require.NoError(t, err)
	require.Equal(t, *first.ScoreTotal, *reloaded.ScoreTotal)
	require.Len(t, attempts.answers[started.ID], 1)
}

func TestAttemptServiceSubmitAfterDurationExpired(t *testing.T) {
	exam := openExam()
	exam.DurationMinutes = 30
	exams := &fakeExamRepo{exam: exam, hasAccess: true}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	// Move the clock past the per-attempt deadline but inside the exam window.
	impl := svc.(*attemptService)
	impl.now = func() time.Time { return started.StartedAt.Add(31 * time.Minute) }

	_, err = svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers:   []dto.AnswerSubmission{},
	})
	require.ErrorIs(t, err, ErrAttemptExpired)
}

func TestAttemptServiceSubmitUnknownQuestion(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{exam: exam, hasAccess: true, questions: map[uuid.UUID]models.Question{}}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers:   []dto.AnswerSubmission{{QuestionID: uuid.New(), AnswerText: "A"}},
	})
	require.ErrorIs(t, err, ErrQuestionNotInExam)

	// No partial state may remain.
	require.Empty(t, attempts.answers[started.ID])
	reloaded, err := attempts.GetByIDForUser(context.Background(), started.ID, userID)
	require.NoError(t, err)
	require.Nil(t, reloaded.SubmittedAt)
}

func TestAttemptServiceSubmitSucceedsWhenProgressFails(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{
		exam:        exam,
		hasAccess:   true,
		maxScoreErr: errors.New("boom"),
		questions:   map[uuid.UUID]models.Question{},
	}
	attempts := newFakeAttemptRepo()
	recorder := &fakeProgressRecorder{}
	svc := newAttemptServiceForTest(exams, attempts, recorder)

	userID := uuid.New()
	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), userID, dto.SubmitAttemptRequest{
		AttemptID: started.ID,
		Answers:   []dto.AnswerSubmission{},
	})
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusCompleted, submitted.Status)
	require.Equal(t, 0, recorder.completed)
}

func TestAttemptServiceGetActive(t *testing.T) {
	exam := openExam()
	exams := &fakeExamRepo{exam: exam, hasAccess: true}
	attempts := newFakeAttemptRepo()
	svc := newAttemptServiceForTest(exams, attempts, &fakeProgressRecorder{})

	userID := uuid.New()

	active, err := svc.GetActive(context.Background(), userID, exam.ID)
	require.NoError(t, err)
	require.Nil(t, active)

	started, err := svc.Start(context.Background(), userID, dto.StartAttemptRequest{ExamID: exam.ID})
	require.NoError(t, err)

	active, err = svc.GetActive(context.Background(), userID, exam.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, started.ID, active.ID)
}
