package performance_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/handler"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
	"github.com/edulog/edulog-go-api/internal/service"
)

func setupInboxPerformanceApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:inbox_perf_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	// A busy guardian inbox: hundreds of alerts across several subjects.
	studentID := uint(3)
	for i := 0; i < 300; i++ {
		subjectID := uint(1 + i%4)
		notification := models.Notification{
			UserID:    "usr-parent-7",
			Role:      models.RoleParent,
			Kind:      models.KindAttendanceAbsent,
			Message:   fmt.Sprintf("Your child Juan Cruz was marked absent in Algebra on 2025-%02d-%02d.", 1+i%12, 1+i%28),
			StudentID: &studentID,
			SubjectID: &subjectID,
			DedupKey:  fmt.Sprintf("perf_seed_%d", i),
		}
		require.NoError(t, db.Create(&notification).Error)
	}

	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := service.NewNotificationService(notificationRepo, nil, "edulog", nil, zerolog.Nop())
	notificationHandler := handler.NewNotificationHandler(notificationService, zerolog.Nop(), 30*time.Second)

	app := fiber.New()
	group := app.Group("/api/v1/notifications", func(c *fiber.Ctx) error {
		c.Locals("user_id", "usr-parent-7")
		c.Locals("user_role", models.RoleParent)
		return c.Next()
	})
	notificationHandler.Register(group)

	return app
}

func TestNotificationListP95LatencyBelow250ms(t *testing.T) {
	app := setupInboxPerformanceApp(t)

	runs := 40
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=50&offset=0", nil)
		start := time.Now()
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	require.LessOrEqual(t, p95, 250*time.Millisecond)
}
