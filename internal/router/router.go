package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edulog/edulog-go-api/internal/config"
	"github.com/edulog/edulog-go-api/internal/handler"
	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/models"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttendanceHandler   *handler.AttendanceHandler
	GradeHandler        *handler.GradeHandler
	NotificationHandler *handler.NotificationHandler
	StandingHandler     *handler.StandingHandler
	FeedbackHandler     *handler.FeedbackHandler
	RosterHandler       *handler.RosterHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staffOnly := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// Attendance recording and the live register feed are staff surfaces.
	if deps.AttendanceHandler != nil {
		attendance := api.Group("/attendance", jwtMiddleware, staffOnly)
		deps.AttendanceHandler.Register(attendance)
	}

	if deps.GradeHandler != nil {
		grades := api.Group("/grades", jwtMiddleware, staffOnly)
		deps.GradeHandler.Register(grades)
	}

	// Every authenticated role owns an inbox.
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	// Standings are a staff analysis surface; students and parents hear
	// about status changes through their notifications.
	if deps.StandingHandler != nil {
		standings := api.Group("/standings", jwtMiddleware, staffOnly)
		deps.StandingHandler.Register(standings)

		performance := api.Group("/performance", jwtMiddleware, staffOnly)
		deps.StandingHandler.RegisterSummary(performance)
	}

	if deps.FeedbackHandler != nil {
		feedback := api.Group("/feedback", jwtMiddleware)
		deps.FeedbackHandler.Register(feedback)
	}

	// Directory CRUD stays admin-scoped.
	if deps.RosterHandler != nil {
		deps.RosterHandler.RegisterStudents(api.Group("/students", jwtMiddleware, adminOnly))
		deps.RosterHandler.RegisterParents(api.Group("/parents", jwtMiddleware, adminOnly))
		deps.RosterHandler.RegisterTeachers(api.Group("/teachers", jwtMiddleware, adminOnly))
		deps.RosterHandler.RegisterSubjects(api.Group("/subjects", jwtMiddleware, adminOnly))
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware, adminOnly)
		deps.ActivityHandler.Register(activity)
	}
}
