package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// StandingHandler serves recorded standings and live performance summaries.
type StandingHandler struct {
	service service.PerformanceService
	logger  zerolog.Logger
}

// NewStandingHandler constructs a standing handler.
func NewStandingHandler(service service.PerformanceService, logger zerolog.Logger) *StandingHandler {
	return &StandingHandler{
		service: service,
		logger:  logger.With().Str("component", "standing_handler").Logger(),
	}
}

// Register binds the standings routes. The at-risk listing registers first so
// it is not shadowed by the student id parameter.
func (h *StandingHandler) Register(router fiber.Router) {
	router.Get("/at-risk", h.atRisk)
	router.Get("/:studentID", h.studentStandings)
	router.Get("/:studentID/:subjectID", h.standing)
}

// RegisterSummary binds the live performance summary route.
func (h *StandingHandler) RegisterSummary(router fiber.Router) {
	router.Get("/:studentID/:subjectID", h.summary)
}

func (h *StandingHandler) atRisk(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	standings, total, err := h.service.AtRisk(requestContext(c), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list at-risk standings")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load standings")
	}

	meta := fiber.Map{"total": total, "limit": limit, "offset": offset}
	return utils.SendSuccessWithMeta(c, "at-risk standings", standings, meta)
}

func (h *StandingHandler) studentStandings(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	standings, err := h.service.StudentStandings(requestContext(c), studentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to list student standings")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load standings")
		}
	}

	return utils.SendSuccess(c, "student standings", standings)
}

func (h *StandingHandler) standing(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	subjectID, err := parseUintParam(c, "subjectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	standing, err := h.service.Standing(requestContext(c), studentID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStandingNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to load standing")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load standing")
		}
	}

	return utils.SendSuccess(c, "standing", standing)
}

func (h *StandingHandler) summary(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	subjectID, err := parseUintParam(c, "subjectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.Summary(requestContext(c), studentID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound), errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to compute performance summary")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load performance summary")
		}
	}

	return utils.SendSuccess(c, "performance summary", summary)
}
