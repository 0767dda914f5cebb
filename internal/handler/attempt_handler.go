package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/middleware"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/service"
	"github.com/examio/examio-api/internal/utils"
)

// AttemptHandler wires the exam-attempt HTTP routes.
type AttemptHandler struct {
	service service.AttemptService
	logger  zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		logger:  logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches attempt endpoints to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Post("/start", middleware.RateLimit("attempts_start", 10, time.Minute), h.start)
	router.Post("/submit", middleware.RateLimit("attempts_submit", 10, time.Minute), h.submit)
	router.Get("/my", h.listMine)
	router.Get("/active/:exam_id", h.getActive)
	router.Get("/exam/:exam_id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.listForExam)
	router.Get("/:id/answers", h.getWithAnswers)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	var payload dto.StartAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	attempt, err := h.service.Start(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam attempt started", attempt)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	attempt, err := h.service.Submit(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam attempt submitted", attempt)
}

func (h *AttemptHandler) listMine(c *fiber.Ctx) error {
	attempts, err := h.service.ListForUser(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *AttemptHandler) listForExam(c *fiber.Ctx) error {
	examID, err := parseUUIDParam(c, "exam_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempts, err := h.service.ListForExam(c.UserContext(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam attempts retrieved", attempts)
}

func (h *AttemptHandler) getWithAnswers(c *fiber.Ctx) error {
	attemptID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.service.GetWithAnswers(c.UserContext(), attemptID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", detail)
}

func (h *AttemptHandler) getActive(c *fiber.Ctx) error {
	examID, err := parseUUIDParam(c, "exam_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.GetActive(c.UserContext(), userIDFromContext(c), examID)
	if err != nil {
		return h.handleError(c, err)
	}
	if attempt == nil {
		return utils.SendSuccess(c, "no active attempt", nil)
	}

	return utils.SendSuccess(c, "active attempt retrieved", attempt)
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found or not active")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam attempt not found")
	case errors.Is(err, service.ErrQuestionNotInExam):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrExamAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "no access to this exam")
	case errors.Is(err, service.ErrAttemptExists):
		return utils.SendError(c, fiber.StatusConflict, "exam already attempted")
	case errors.Is(err, service.ErrAttemptSubmitted):
		return utils.SendError(c, fiber.StatusBadRequest, "exam attempt already submitted")
	case errors.Is(err, service.ErrAttemptExpired):
		return utils.SendError(c, fiber.StatusBadRequest, "exam time has expired")
	case errors.Is(err, service.ErrDuplicateAnswer):
		return utils.SendError(c, fiber.StatusBadRequest, "duplicate answer for question")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
