package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/edulog/edulog-go-api/internal/utils"
)

func TestSendSuccessDefaultsMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := map[string]string{"hello": "world"}
		return utils.SendSuccess(c, "", data)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
}

func TestSendSuccessWithMetaIncludesMeta(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := []string{"a", "b"}
		meta := map[string]int{"total": 2, "offset": 0}
		return utils.SendSuccessWithMeta(c, "items", data, meta)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    []string               `json:"data"`
		Meta    map[string]interface{} `json:"meta"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "items", payload.Message)
	require.Len(t, payload.Data, 2)
	require.Equal(t, float64(2), payload.Meta["total"])
}

func TestSendErrorOmitsData(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, "invalid payload", payload.Message)
	require.Nil(t, payload.Data)
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
