package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// ActivityHandler serves the audit trail of roster and feedback mutations.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register binds the activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var query dto.ActivityListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	entries, meta, err := h.service.List(requestContext(c), query)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list activity log")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load activity log")
	}

	return utils.SendSuccessWithMeta(c, "activity log", entries, meta)
}
