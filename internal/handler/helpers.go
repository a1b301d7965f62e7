package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/service"
)

// requestContext derives the service-layer context for a request, carrying
// the correlation id set by the middleware.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, errors.New(key + " required")
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
