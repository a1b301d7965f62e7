package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/config"
	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/handler"
	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
	"github.com/edulog/edulog-go-api/internal/router"
	"github.com/edulog/edulog-go-api/internal/service"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Parent{},
		&models.Teacher{},
		&models.Subject{},
		&models.AttendanceRecord{},
		&models.GradeRecord{},
		&models.Notification{},
		&models.SubjectStanding{},
		&models.Feedback{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	standingRepo := repository.NewStandingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	thresholds := service.Thresholds{AtRisk: 70, Warning: 75}

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, nil, "edulog", nil, logger)
	feedService := service.NewAttendanceFeedService(nil, "edulog", nil, logger)
	alertService := service.NewAlertService(rosterRepo, attendanceRepo, gradeRepo, standingRepo, notificationService, thresholds, 3, 5, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, rosterRepo, alertService, feedService, activityService, validate, logger)
	gradeService := service.NewGradeService(gradeRepo, rosterRepo, alertService, activityService, validate, logger)
	performanceService := service.NewPerformanceService(rosterRepo, attendanceRepo, gradeRepo, standingRepo, thresholds, logger)
	rosterService := service.NewRosterService(rosterRepo, activityService, validate, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, notificationService, activityService, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	cfg := config.Config{AppName: "EduLog Alerts API", AppEnv: "test", JWTSecret: "secret"}
	router.Register(app, cfg, router.Dependencies{
		AttendanceHandler:   handler.NewAttendanceHandler(attendanceService, feedService, logger),
		GradeHandler:        handler.NewGradeHandler(gradeService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 30*time.Second),
		StandingHandler:     handler.NewStandingHandler(performanceService, logger),
		FeedbackHandler:     handler.NewFeedbackHandler(feedbackService, logger),
		RosterHandler:       handler.NewRosterHandler(rosterService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			user := c.Get("X-Test-User")
			if user == "" {
				user = "usr-admin-1"
			}
			role := c.Get("X-Test-Role")
			if role == "" {
				role = models.RoleAdmin
			}
			c.Locals("user_id", user)
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}, user, role string) *http.Request {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	return req
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestAlertPipelineEndToEnd(t *testing.T) {
	app := setupApp(t)

	// Step 1: admin builds the roster.
	var teacherResp struct {
		Success bool                `json:"success"`
		Data    dto.TeacherResponse `json:"data"`
	}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/teachers", map[string]interface{}{
		"name": "Alice Reyes", "email": "alice@school.test", "user_id": "usr-teacher-9",
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &teacherResp)
	require.Equal(t, fmt.Sprintf("TCH-%d-00001", time.Now().Year()), teacherResp.Data.TeacherNo)

	var parentResp struct {
		Success bool               `json:"success"`
		Data    dto.ParentResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/parents", map[string]interface{}{
		"name": "Maria Cruz", "email": "maria@family.test", "user_id": "usr-parent-9",
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &parentResp)

	var studentResp struct {
		Success bool                `json:"success"`
		Data    dto.StudentResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/students", map[string]interface{}{
		"name": "Juan Cruz", "email": "juan@family.test", "user_id": "usr-student-9", "section": "1-A",
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &studentResp)
	require.Equal(t, fmt.Sprintf("STD-%d-00001", time.Now().Year()), studentResp.Data.StudentNo)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/students/%d/parent", studentResp.Data.ID), map[string]interface{}{
		"parent_id": parentResp.Data.ID,
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var subjectResp struct {
		Success bool                `json:"success"`
		Data    dto.SubjectResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/subjects", map[string]interface{}{
		"code": "math101", "name": "Algebra", "section": "1-A", "teacher_id": teacherResp.Data.ID,
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &subjectResp)
	require.Equal(t, "MATH101", subjectResp.Data.Code)

	// Step 2: the teacher marks an absence, which cascades into alerts.
	var markResp struct {
		Success bool                   `json:"success"`
		Data    dto.AttendanceResponse `json:"data"`
	}
	markPayload := map[string]interface{}{
		"student_id": studentResp.Data.ID,
		"subject_id": subjectResp.Data.ID,
		"date":       "2025-06-03",
		"status":     "absent",
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attendance", markPayload, "usr-teacher-9", models.RoleTeacher), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &markResp)
	require.True(t, markResp.Data.Created)
	require.Equal(t, "2025-06-03", markResp.Data.Date)

	// Step 3: the guardian finds the absence alert and the at-risk alert.
	var inbox struct {
		Success bool                       `json:"success"`
		Data    []dto.NotificationResponse `json:"data"`
		Meta    map[string]interface{}     `json:"meta"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications", nil, "usr-parent-9", models.RoleParent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &inbox)
	require.Len(t, inbox.Data, 2)
	require.Equal(t, float64(2), inbox.Meta["total"])

	kinds := map[string]bool{}
	for _, notification := range inbox.Data {
		kinds[notification.Kind] = true
		require.Equal(t, "usr-parent-9", notification.UserID)
		require.Equal(t, models.RoleParent, notification.Role)
		require.False(t, notification.Read)
	}
	require.True(t, kinds[models.KindAttendanceAbsent])
	require.True(t, kinds[models.KindPerformanceAtRisk])

	var unread struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", nil, "usr-parent-9", models.RoleParent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &unread)
	require.Equal(t, float64(2), unread.Data["count"])

	// Step 4: reading one alert leaves the other unread.
	var read struct {
		Success bool                     `json:"success"`
		Data    dto.NotificationResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", inbox.Data[0].ID), nil, "usr-parent-9", models.RoleParent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &read)
	require.True(t, read.Data.Read)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", nil, "usr-parent-9", models.RoleParent), -1)
	require.NoError(t, err)
	decode(t, resp, &unread)
	require.Equal(t, float64(1), unread.Data["count"])

	// Step 5: repeating the identical mark is a correction, not a new event.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attendance", markPayload, "usr-teacher-9", models.RoleTeacher), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &markResp)
	require.False(t, markResp.Data.Created)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications", nil, "usr-parent-9", models.RoleParent), -1)
	require.NoError(t, err)
	decode(t, resp, &inbox)
	require.Len(t, inbox.Data, 2)

	// Step 6: standing and live summary agree on the classification.
	var standing struct {
		Success bool                 `json:"success"`
		Data    dto.StandingResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/standings/%d/%d", studentResp.Data.ID, subjectResp.Data.ID), nil, "usr-teacher-9", models.RoleTeacher), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &standing)
	require.Equal(t, models.StandingAtRisk, standing.Data.Status)
	require.Equal(t, 0.0, standing.Data.AttendancePct)

	var summary struct {
		Success bool                           `json:"success"`
		Data    dto.PerformanceSummaryResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/performance/%d/%d", studentResp.Data.ID, subjectResp.Data.ID), nil, "usr-teacher-9", models.RoleTeacher), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &summary)
	require.Equal(t, models.StandingAtRisk, summary.Data.Status)
	require.Equal(t, int64(1), summary.Data.AttendanceCount)
	require.Equal(t, 0.0, summary.Data.AverageGrade)
	require.Equal(t, 5.0, summary.Data.GWA)

	// Step 7: the audit trail recorded the roster changes and the mark.
	var activity struct {
		Success bool                   `json:"success"`
		Data    []dto.ActivityResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/activity?action=attendance.marked", nil, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &activity)
	require.Len(t, activity.Data, 1)
	require.Equal(t, "usr-teacher-9", activity.Data[0].ActorID)

	// Step 8: role boundaries hold.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attendance", markPayload, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/students", nil, "usr-teacher-9", models.RoleTeacher), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestFeedbackDeskEndToEnd(t *testing.T) {
	app := setupApp(t)

	// Step 1: a student files feedback; the type defaults to general.
	var submitted struct {
		Success bool                 `json:"success"`
		Data    dto.FeedbackResponse `json:"data"`
	}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"rating": 4, "subject": "Slow portal", "message": "Pages take ages to load.",
	}, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &submitted)
	require.Equal(t, "general", submitted.Data.Type)
	require.Equal(t, "usr-student-9", submitted.Data.UserID)

	// Step 2: only the desk sees the listing.
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/feedback", nil, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var listing struct {
		Success bool                   `json:"success"`
		Data    []dto.FeedbackResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/feedback", nil, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &listing)
	require.Len(t, listing.Data, 1)

	// Step 3: opening the entry as admin marks it read.
	var entry struct {
		Success bool                 `json:"success"`
		Data    dto.FeedbackResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/feedback/%d", submitted.Data.ID), nil, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &entry)
	require.True(t, entry.Data.Read)

	// Step 4: the admin response lands in the author's inbox exactly once.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/feedback/%d/respond", submitted.Data.ID), map[string]interface{}{
		"response": "Thanks for the report, a fix ships this week.",
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &entry)
	require.NotEmpty(t, entry.Data.AdminResponse)
	require.NotNil(t, entry.Data.RespondedAt)

	var inbox struct {
		Success bool                       `json:"success"`
		Data    []dto.NotificationResponse `json:"data"`
	}
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications", nil, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	decode(t, resp, &inbox)
	require.Len(t, inbox.Data, 1)
	require.Equal(t, models.KindGeneral, inbox.Data[0].Kind)
	require.Contains(t, inbox.Data[0].Message, `Your feedback "Slow portal" has received a response.`)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/feedback/%d/respond", submitted.Data.ID), map[string]interface{}{
		"response": "Thanks for the report, a fix ships this week.",
	}, "", ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/notifications", nil, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	decode(t, resp, &inbox)
	require.Len(t, inbox.Data, 1)

	// Step 5: authors see their own entry, other students do not.
	resp, err = app.Test(jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/feedback/%d", submitted.Data.ID), nil, "usr-student-9", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/feedback/%d", submitted.Data.ID), nil, "usr-student-8", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Step 6: the submit route throttles after five requests per user.
	for i := 0; i < 5; i++ {
		resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
			"rating": 3, "subject": "Throttle probe", "message": fmt.Sprintf("attempt %d", i),
		}, "usr-student-8", models.RoleStudent), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"rating": 3, "subject": "Throttle probe", "message": "attempt 5",
	}, "usr-student-8", models.RoleStudent), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
