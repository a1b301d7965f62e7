package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// FeedbackHandler wires the feedback desk routes.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs a feedback handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register binds the feedback routes. Submission and detail are open to every
// authenticated role; listing and responding stay admin-only. Submissions are
// rate limited per user to keep the desk usable.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("", middleware.RateLimit("feedback_submit", 5, time.Minute), h.submit)
	router.Get("", middleware.RequireRole("admin"), h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/respond", middleware.RequireRole("admin"), h.respond)
}

func (h *FeedbackHandler) submit(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SubmitFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Submit(requestContext(c), userID, userRoleFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to submit feedback")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit feedback")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback submitted", response)
}

func (h *FeedbackHandler) list(c *fiber.Ctx) error {
	var query dto.FeedbackListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	entries, total, err := h.service.List(requestContext(c), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to list feedback")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load feedback")
	}

	meta := fiber.Map{"total": total, "limit": query.Limit, "offset": query.Offset}
	return utils.SendSuccessWithMeta(c, "feedback entries", entries, meta)
}

func (h *FeedbackHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entry, err := h.service.Get(requestContext(c), id, userID, userRoleFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFeedbackNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrFeedbackForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to load feedback entry")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load feedback")
		}
	}

	return utils.SendSuccess(c, "feedback entry", entry)
}

func (h *FeedbackHandler) respond(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FeedbackRespondRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	entry, err := h.service.Respond(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrFeedbackNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to respond to feedback")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to store response")
		}
	}

	return utils.SendSuccess(c, "response stored", entry)
}
