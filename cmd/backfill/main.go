package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/config"
	"github.com/edulog/edulog-go-api/internal/database"
	"github.com/edulog/edulog-go-api/internal/repository"
	"github.com/edulog/edulog-go-api/internal/service"
)

type phase struct {
	name string
	run  func(context.Context) (service.PhaseReport, error)
}

func main() {
	attendanceOnly := flag.Bool("attendance-only", false, "Run only the attendance notification phase")
	performanceOnly := flag.Bool("performance-only", false, "Run only the performance evaluation phase")
	streaksOnly := flag.Bool("streaks-only", false, "Run only the consecutive-absence phase")
	pageSize := flag.Int("page-size", 0, "Records per page (defaults to EDULOG_BACKFILL_PAGE_SIZE)")
	seedPath := flag.String("seed", "", "Load a roster+records fixture before running the phases")
	flag.Parse()

	if countTrue(*attendanceOnly, *performanceOnly, *streaksOnly) > 1 {
		fmt.Fprintln(os.Stderr, "at most one of -attendance-only, -performance-only, -streaks-only may be set")
		os.Exit(1)
	}

	cfg, err := config.LoadBatch()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *pageSize > 0 {
		cfg.BackfillPageSize = *pageSize
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	standingRepo := repository.NewStandingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	// Without redis or NATS the notification service still stores and
	// deduplicates rows; only the live fan-out is a no-op.
	notificationService := service.NewNotificationService(notificationRepo, nil, cfg.ChannelBase, nil, logger)

	thresholds := service.Thresholds{
		AtRisk:  cfg.AtRiskThreshold,
		Warning: cfg.WarningThreshold,
	}
	alertService := service.NewAlertService(rosterRepo, attendanceRepo, gradeRepo, standingRepo, notificationService, thresholds, cfg.StreakThreshold, cfg.AttendanceWindow, logger)
	backfillService := service.NewBackfillService(attendanceRepo, gradeRepo, alertService, cfg.BackfillPageSize, logger)

	ctx := context.Background()

	if *seedPath != "" {
		activityService := service.NewActivityService(activityRepo, logger)
		rosterService := service.NewRosterService(rosterRepo, activityService, validate, logger)
		seedService := service.NewSeedService(rosterService, attendanceRepo, gradeRepo, logger)

		report, err := seedService.LoadFixture(ctx, *seedPath)
		if err != nil {
			log.Fatalf("failed to load fixture: %v", err)
		}

		fmt.Printf("seeded %d teachers, %d parents, %d students, %d subjects, %d attendance records, %d grades\n",
			report.Teachers, report.Parents, report.Students, report.Subjects, report.Attendance, report.Grades)
	}

	failed := false
	for _, p := range selectPhases(backfillService, *attendanceOnly, *performanceOnly, *streaksOnly) {
		report, err := p.run(ctx)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s phase failed: %v\n", p.name, err)
			continue
		}

		fmt.Printf("%s: processed=%d created=%d suppressed=%d skipped=%d failed=%d\n",
			p.name, report.Processed, report.Created, report.Suppressed, report.Skipped, report.Failed)
	}

	if failed {
		os.Exit(1)
	}
}

func selectPhases(backfill service.BackfillService, attendanceOnly, performanceOnly, streaksOnly bool) []phase {
	attendance := phase{name: "attendance", run: backfill.BackfillAttendance}
	performance := phase{name: "performance", run: backfill.BackfillPerformance}
	streaks := phase{name: "streaks", run: backfill.BackfillStreaks}

	switch {
	case attendanceOnly:
		return []phase{attendance}
	case performanceOnly:
		return []phase{performance}
	case streaksOnly:
		return []phase{streaks}
	default:
		return []phase{attendance, performance, streaks}
	}
}

func countTrue(values ...bool) int {
	n := 0
	for _, value := range values {
		if value {
			n++
		}
	}
	return n
}
