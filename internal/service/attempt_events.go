package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/examio/examio-api/internal/models"
)

// AttemptEventPublisher broadcasts attempt lifecycle events for downstream
// consumers (notifications, analytics). Publishing is best-effort: failures
// are logged and never surface to the attempt operation.
type AttemptEventPublisher interface {
	PublishStarted(ctx context.Context, attempt models.ExamAttempt, examTitle string)
	PublishSubmitted(ctx context.Context, attempt models.ExamAttempt, examTitle string)
}

type attemptEvent struct {
	Event      string    `json:"event"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	UserID     uuid.UUID `json:"user_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	ExamTitle  string    `json:"exam_title"`
	ScoreTotal *int      `json:"score_total,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type natsAttemptEvents struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewAttemptEventPublisher constructs a NATS-backed publisher. A nil
// connection yields a publisher that drops events silently, so callers never
// have to branch on messaging availability.
func NewAttemptEventPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) AttemptEventPublisher {
	base := strings.TrimSuffix(subjectBase, ".")
	if base == "" {
		base = "examio.attempts"
	}

	return &natsAttemptEvents{
		conn:        conn,
		subjectBase: base,
		logger:      logger.With().Str("component", "attempt_events").Logger(),
	}
}

func (p *natsAttemptEvents) PublishStarted(ctx context.Context, attempt models.ExamAttempt, examTitle string) {
	p.publish(ctx, "started", attempt, examTitle)
}

func (p *natsAttemptEvents) PublishSubmitted(ctx context.Context, attempt models.ExamAttempt, examTitle string) {
	p.publish(ctx, "submitted", attempt, examTitle)
}

func (p *natsAttemptEvents) publish(_ context.Context, kind string, attempt models.ExamAttempt, examTitle string) {
	if p.conn == nil {
		return
	}

	event := attemptEvent{
		Event:      kind,
		AttemptID:  attempt.ID,
		UserID:     attempt.UserID,
		ExamID:     attempt.ExamID,
		ExamTitle:  examTitle,
		ScoreTotal: attempt.ScoreTotal,
		OccurredAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("event", kind).Msg("failed to encode attempt event")
		return
	}

	subject := p.subjectBase + "." + kind
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish attempt event")
	}
}
