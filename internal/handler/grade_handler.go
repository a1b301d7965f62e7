package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// GradeHandler wires grade recording and lookups.
type GradeHandler struct {
	service service.GradeService
	logger  zerolog.Logger
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(service service.GradeService, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register binds the grade routes.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Put("", h.upsert)
	router.Get("/:studentID/:subjectID", h.listByPair)
}

func (h *GradeHandler) upsert(c *fiber.Ctx) error {
	var payload dto.UpsertGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Upsert(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStudentNotFound), errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to record grade")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record grade")
		}
	}

	status := fiber.StatusOK
	if response.Created {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, "grade recorded", response)
}

func (h *GradeHandler) listByPair(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	subjectID, err := parseUintParam(c, "subjectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grades, err := h.service.ListByPair(requestContext(c), studentID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to load grades")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load grades")
		}
	}

	return utils.SendSuccess(c, "grades", grades)
}
