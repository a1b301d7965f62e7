package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

// Classification thresholds used when configuration does not override them.
const (
	DefaultAtRiskThreshold  = 70.0
	DefaultWarningThreshold = 75.0
)

// ErrStandingNotFound indicates no standing has been recorded for the pair yet.
var ErrStandingNotFound = errors.New("standing not found")

// Thresholds are the percentage bounds the classifier evaluates against.
// Both checks are strictly-less-than.
type Thresholds struct {
	AtRisk  float64
	Warning float64
}

func (t Thresholds) normalized() Thresholds {
	if t.AtRisk <= 0 {
		t.AtRisk = DefaultAtRiskThreshold
	}
	if t.Warning <= 0 {
		t.Warning = DefaultWarningThreshold
	}
	return t
}

// PerformanceMetrics are the per (student, subject) aggregates the classifier
// consumes. Empty record sets yield zero values, never an error.
type PerformanceMetrics struct {
	AttendancePct   float64
	AttendanceCount int64
	AverageGrade    float64
	GradeCount      int64
}

// Classification is the classifier verdict: the binary standing plus the two
// independent early-warning flags. Warnings never alter the status.
type Classification struct {
	Status            string
	AttendanceWarning bool
	GradeWarning      bool
}

// AtRisk reports whether the verdict is the at-risk standing.
func (c Classification) AtRisk() bool {
	return c.Status == models.StandingAtRisk
}

// Classify maps metrics to a standing. A pair is at risk when either the
// attendance percentage or the grade average falls below the at-risk
// threshold. Warning flags fire below the warning threshold but only once the
// metric is non-zero, so pairs without records stay quiet.
func Classify(metrics PerformanceMetrics, thresholds Thresholds) Classification {
	thresholds = thresholds.normalized()

	classification := Classification{Status: models.StandingActive}
	if metrics.AttendancePct < thresholds.AtRisk || metrics.AverageGrade < thresholds.AtRisk {
		classification.Status = models.StandingAtRisk
	}
	if metrics.AttendancePct > 0 && metrics.AttendancePct < thresholds.Warning {
		classification.AttendanceWarning = true
	}
	if metrics.AverageGrade > 0 && metrics.AverageGrade < thresholds.Warning {
		classification.GradeWarning = true
	}
	return classification
}

// GradeToGWA converts a percentage grade to the 1.00-5.00 general weighted
// average scale, where lower is better and anything below 75 is a failing 5.00.
func GradeToGWA(percentage float64) float64 {
	switch {
	case percentage >= 97:
		return 1.00
	case percentage >= 94:
		return 1.25
	case percentage >= 91:
		return 1.50
	case percentage >= 88:
		return 1.75
	case percentage >= 85:
		return 2.00
	case percentage >= 82:
		return 2.25
	case percentage >= 79:
		return 2.50
	case percentage >= 76:
		return 2.75
	case percentage >= 75:
		return 3.00
	default:
		return 5.00
	}
}

func collectMetrics(ctx context.Context, attendance repository.AttendanceRepository, grades repository.GradeRepository, studentID, subjectID uint) (PerformanceMetrics, error) {
	present, total, err := attendance.CountByStatus(ctx, studentID, subjectID)
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("count attendance: %w", err)
	}

	average, gradeCount, err := grades.Average(ctx, studentID, subjectID)
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("average grades: %w", err)
	}

	metrics := PerformanceMetrics{
		AttendanceCount: total,
		AverageGrade:    average,
		GradeCount:      gradeCount,
	}
	if total > 0 {
		metrics.AttendancePct = float64(present) / float64(total) * 100
	}
	return metrics, nil
}

// PerformanceService serves the read side of the engine: live metric
// summaries and the recorded standings.
type PerformanceService interface {
	Summary(ctx context.Context, studentID, subjectID uint) (dto.PerformanceSummaryResponse, error)
	Standing(ctx context.Context, studentID, subjectID uint) (dto.StandingResponse, error)
	StudentStandings(ctx context.Context, studentID uint) ([]dto.StandingResponse, error)
	AtRisk(ctx context.Context, limit, offset int) ([]dto.StandingResponse, int64, error)
}

type performanceService struct {
	roster     repository.RosterRepository
	attendance repository.AttendanceRepository
	grades     repository.GradeRepository
	standings  repository.StandingRepository
	thresholds Thresholds
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewPerformanceService constructs the read-side performance service.
func NewPerformanceService(roster repository.RosterRepository, attendance repository.AttendanceRepository, grades repository.GradeRepository, standings repository.StandingRepository, thresholds Thresholds, logger zerolog.Logger) PerformanceService {
	return &performanceService{
		roster:     roster,
		attendance: attendance,
		grades:     grades,
		standings:  standings,
		thresholds: thresholds.normalized(),
		logger:     logger.With().Str("component", "performance_service").Logger(),
		tracer:     otel.Tracer("github.com/edulog/edulog-go-api/internal/service/performance"),
	}
}

func (s *performanceService) Summary(ctx context.Context, studentID, subjectID uint) (dto.PerformanceSummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "performance.summary", trace.WithAttributes(
		attribute.Int64("performance.student_id", int64(studentID)),
		attribute.Int64("performance.subject_id", int64(subjectID)),
	))
	defer span.End()

	if _, err := s.roster.FindStudent(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PerformanceSummaryResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.PerformanceSummaryResponse{}, err
	}
	if _, err := s.roster.FindSubject(ctx, subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PerformanceSummaryResponse{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.PerformanceSummaryResponse{}, err
	}

	metrics, err := collectMetrics(ctx, s.attendance, s.grades, studentID, subjectID)
	if err != nil {
		span.RecordError(err)
		return dto.PerformanceSummaryResponse{}, err
	}

	classification := Classify(metrics, s.thresholds)
	span.SetAttributes(attribute.String("performance.status", classification.Status))

	return dto.PerformanceSummaryResponse{
		StudentID:         studentID,
		SubjectID:         subjectID,
		AttendancePct:     metrics.AttendancePct,
		AttendanceCount:   metrics.AttendanceCount,
		AverageGrade:      metrics.AverageGrade,
		GradeCount:        metrics.GradeCount,
		GWA:               GradeToGWA(metrics.AverageGrade),
		Status:            classification.Status,
		AttendanceWarning: classification.AttendanceWarning,
		GradeWarning:      classification.GradeWarning,
	}, nil
}

func (s *performanceService) Standing(ctx context.Context, studentID, subjectID uint) (dto.StandingResponse, error) {
	standing, err := s.standings.Get(ctx, studentID, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StandingResponse{}, ErrStandingNotFound
		}
		return dto.StandingResponse{}, err
	}
	return dto.NewStandingResponse(standing, GradeToGWA(standing.GradeAverage)), nil
}

func (s *performanceService) StudentStandings(ctx context.Context, studentID uint) ([]dto.StandingResponse, error) {
	if _, err := s.roster.FindStudent(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	standings, err := s.standings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.StandingResponse, 0, len(standings))
	for _, standing := range standings {
		responses = append(responses, dto.NewStandingResponse(standing, GradeToGWA(standing.GradeAverage)))
	}
	return responses, nil
}

func (s *performanceService) AtRisk(ctx context.Context, limit, offset int) ([]dto.StandingResponse, int64, error) {
	standings, total, err := s.standings.ListAtRisk(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]dto.StandingResponse, 0, len(standings))
	for _, standing := range standings {
		responses = append(responses, dto.NewStandingResponse(standing, GradeToGWA(standing.GradeAverage)))
	}
	return responses, total, nil
}
