package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examio/examio-api/internal/dto"
	"github.com/examio/examio-api/internal/middleware"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/service"
	"github.com/examio/examio-api/internal/utils"
)

// ProgressHandler wires the progress and leveling HTTP routes.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the authenticated progress endpoints to the router group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Get("", h.listMine)
	router.Get("/level", h.getMyLevel)
	router.Get("/summary", h.getSummary)
	router.Get("/user/:user_id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.listForUser)
	router.Get("/level/:user_id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.getLevelForUser)
}

// RegisterPublic attaches the endpoints that do not require authentication.
func (h *ProgressHandler) RegisterPublic(router fiber.Router) {
	router.Get("/leaderboard", h.leaderboard)
}

func (h *ProgressHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	progress, err := h.service.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress created", progress)
}

func (h *ProgressHandler) update(c *fiber.Ctx) error {
	progressID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpdateProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	progress, err := h.service.Update(c.UserContext(), progressID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress updated", progress)
}

func (h *ProgressHandler) listMine(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.ListForUser(c.UserContext(), userIDFromContext(c), limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", entries)
}

func (h *ProgressHandler) listForUser(c *fiber.Ctx) error {
	userID, err := parseUUIDParam(c, "user_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.ListForUser(c.UserContext(), userID, limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", entries)
}

func (h *ProgressHandler) getMyLevel(c *fiber.Ctx) error {
	level, err := h.service.GetLevel(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "level retrieved", level)
}

func (h *ProgressHandler) getLevelForUser(c *fiber.Ctx) error {
	userID, err := parseUUIDParam(c, "user_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	level, err := h.service.GetLevel(c.UserContext(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "level retrieved", level)
}

func (h *ProgressHandler) getSummary(c *fiber.Ctx) error {
	summary, err := h.service.GetSummary(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress summary retrieved", summary)
}

func (h *ProgressHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.Leaderboard(c.UserContext(), limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}

func (h *ProgressHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProgressNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "progress entry not found")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
