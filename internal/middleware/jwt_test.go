package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/edulog/edulog-go-api/internal/middleware"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestJWTProtectedBindsSubjectAndRole(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		role, _ := c.Locals("user_role").(string)
		return c.JSON(fiber.Map{"user_id": userID, "role": role})
	})

	token := signToken(t, jwt.MapClaims{
		"sub":  "usr-parent-7",
		"role": "Parent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "usr-1"})
	signed, err := token.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsTokenWithoutSubject(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token := signToken(t, jwt.MapClaims{"role": "student"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
