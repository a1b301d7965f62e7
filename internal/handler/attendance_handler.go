package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// AttendanceHandler wires attendance recording and the live register feed.
type AttendanceHandler struct {
	service service.AttendanceService
	feed    service.AttendanceFeedService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(service service.AttendanceService, feed service.AttendanceFeedService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		feed:    feed,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register binds the attendance routes.
func (h *AttendanceHandler) Register(router fiber.Router) {
	router.Post("", h.mark)
	router.Post("/bulk", h.bulkMark)
	router.Get("/recent/:studentID/:subjectID", h.recent)

	router.Use("/live/:subjectID", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/live/:subjectID", websocket.New(h.live))
}

func (h *AttendanceHandler) mark(c *fiber.Ctx) error {
	var payload dto.MarkAttendanceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Mark(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStudentNotFound), errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to mark attendance")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to mark attendance")
		}
	}

	status := fiber.StatusOK
	if response.Created {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, "attendance recorded", response)
}

func (h *AttendanceHandler) bulkMark(c *fiber.Ctx) error {
	var payload dto.BulkAttendanceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BulkMark(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to bulk mark attendance")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to mark attendance")
		}
	}

	return utils.SendSuccess(c, "attendance batch processed", result)
}

func (h *AttendanceHandler) recent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	subjectID, err := parseUintParam(c, "subjectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	records, err := h.service.Recent(requestContext(c), studentID, subjectID, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to load recent attendance")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load attendance")
		}
	}

	return utils.SendSuccess(c, "recent attendance", records)
}

func (h *AttendanceHandler) live(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	subjectID, err := strconv.ParseUint(strings.TrimSpace(conn.Params("subjectID")), 10, 64)
	if err != nil || subjectID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid subject id"))
		_ = conn.Close()
		return
	}

	role := fmt.Sprint(conn.Locals("user_role"))
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.AttendanceFeedOptions{
		UserID:        userID,
		Role:          role,
		SubjectID:     uint(subjectID),
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Uint64("subject_id", subjectID).Msg("attendance feed connected")
	h.feed.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", userID).Uint64("subject_id", subjectID).Msg("attendance feed disconnected")
}

func websocketUserID(conn *websocket.Conn) string {
	if value := conn.Locals("user_id"); value != nil {
		if v, ok := value.(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
