package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/service"
	"github.com/edulog/edulog-go-api/internal/utils"
)

// NotificationHandler manages the notification inbox and the SSE stream.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)
	router.Post("/read-all", h.markAllRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, total, err := h.service.List(requestContext(c), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load notifications")
	}

	meta := fiber.Map{"total": total, "limit": limit, "offset": offset}
	return utils.SendSuccessWithMeta(c, "notifications", notifications, meta)
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	count, err := h.service.CountUnread(requestContext(c), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count unread notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to count notifications")
	}

	return utils.SendSuccess(c, "unread notifications", fiber.Map{"count": count})
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	notification, err := h.service.MarkRead(requestContext(c), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotificationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to mark notification read")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update notification")
		}
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to mark notifications read")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update notifications")
	}

	return utils.SendSuccess(c, "notifications updated", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	stream, cleanup := h.service.Subscribe(userID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func writeNotificationEvent(w *bufio.Writer, notification interface{}) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
