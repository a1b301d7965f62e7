package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// RosterHandler wires the directory routes the engine fans out over.
type RosterHandler struct {
	service service.RosterService
	logger  zerolog.Logger
}

// NewRosterHandler constructs a roster handler.
func NewRosterHandler(service service.RosterService, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service: service,
		logger:  logger.With().Str("component", "roster_handler").Logger(),
	}
}

// RegisterStudents binds the student directory routes.
func (h *RosterHandler) RegisterStudents(router fiber.Router) {
	router.Post("", h.createStudent)
	router.Get("", h.listStudents)
	router.Get("/:id", h.getStudent)
	router.Post("/:id/parent", h.linkParent)
}

// RegisterParents binds the parent directory routes.
func (h *RosterHandler) RegisterParents(router fiber.Router) {
	router.Post("", h.createParent)
}

// RegisterTeachers binds the teacher directory routes.
func (h *RosterHandler) RegisterTeachers(router fiber.Router) {
	router.Post("", h.createTeacher)
}

// RegisterSubjects binds the subject directory routes.
func (h *RosterHandler) RegisterSubjects(router fiber.Router) {
	router.Post("", h.createSubject)
	router.Get("", h.listSubjects)
	router.Post("/:id/teacher", h.assignTeacher)
}

func (h *RosterHandler) createStudent(c *fiber.Ctx) error {
	var payload dto.CreateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.service.CreateStudent(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create student")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *RosterHandler) listStudents(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	students, total, err := h.service.ListStudents(requestContext(c), c.Query("section"), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load students")
	}

	meta := fiber.Map{"total": total, "limit": limit, "offset": offset}
	return utils.SendSuccessWithMeta(c, "students", students, meta)
}

func (h *RosterHandler) getStudent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	student, err := h.service.GetStudent(requestContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to load student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load student")
		}
	}

	return utils.SendSuccess(c, "student", student)
}

func (h *RosterHandler) linkParent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.LinkParentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.service.LinkParent(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStudentNotFound), errors.Is(err, service.ErrParentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to link parent")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to link parent")
		}
	}

	return utils.SendSuccess(c, "parent linked", student)
}

func (h *RosterHandler) createParent(c *fiber.Ctx) error {
	var payload dto.CreateParentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	parent, err := h.service.CreateParent(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create parent")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create parent")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "parent created", parent)
}

func (h *RosterHandler) createTeacher(c *fiber.Ctx) error {
	var payload dto.CreateTeacherRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	teacher, err := h.service.CreateTeacher(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create teacher")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "teacher created", teacher)
}

func (h *RosterHandler) createSubject(c *fiber.Ctx) error {
	var payload dto.CreateSubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	subject, err := h.service.CreateSubject(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTeacherNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to create subject")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create subject")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject created", subject)
}

func (h *RosterHandler) listSubjects(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	subjects, total, err := h.service.ListSubjects(requestContext(c), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list subjects")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load subjects")
	}

	meta := fiber.Map{"total": total, "limit": limit, "offset": offset}
	return utils.SendSuccessWithMeta(c, "subjects", subjects, meta)
}

func (h *RosterHandler) assignTeacher(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignTeacherRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	subject, err := h.service.AssignTeacher(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubjectNotFound), errors.Is(err, service.ErrTeacherNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to assign teacher")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to assign teacher")
		}
	}

	return utils.SendSuccess(c, "teacher assigned", subject)
}
