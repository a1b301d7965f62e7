package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edulog/edulog-go-api/internal/utils"
)

// JWTProtected returns a middleware that validates externally issued JWT
// bearer tokens and binds the subject identity and role to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		c.Locals("user_id", userID)

		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "uid"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}

	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v), 10)
	case int:
		if v < 0 {
			return ""
		}
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	default:
		return ""
	}
	return ""
}
