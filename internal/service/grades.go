package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

// GradeService owns the scoring workflow: upsert the score and hand the pair
// to the alert engine when it changed.
type GradeService interface {
	Upsert(ctx context.Context, payload dto.UpsertGradeRequest, actor ActivityActor) (dto.GradeResponse, error)
	ListByPair(ctx context.Context, studentID, subjectID uint) ([]dto.GradeResponse, error)
}

type gradeService struct {
	grades    repository.GradeRepository
	roster    repository.RosterRepository
	alerts    AlertService
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewGradeService constructs the scoring workflow service.
func NewGradeService(grades repository.GradeRepository, roster repository.RosterRepository, alerts AlertService, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) GradeService {
	return &gradeService{
		grades:    grades,
		roster:    roster,
		alerts:    alerts,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "grade_service").Logger(),
		tracer:    otel.Tracer("github.com/edulog/edulog-go-api/internal/service/grades"),
	}
}

func (s *gradeService) Upsert(ctx context.Context, payload dto.UpsertGradeRequest, actor ActivityActor) (dto.GradeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeResponse{}, err
	}

	term := strings.TrimSpace(payload.Term)
	if term == "" {
		term = models.DefaultTerm
	}

	ctx, span := s.tracer.Start(ctx, "grades.upsert", trace.WithAttributes(
		attribute.Int64("grade.student_id", int64(payload.StudentID)),
		attribute.Int64("grade.subject_id", int64(payload.SubjectID)),
		attribute.String("grade.term", term),
	))
	defer span.End()

	if _, err := s.roster.FindStudent(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}
	if _, err := s.roster.FindSubject(ctx, payload.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	record := models.GradeRecord{
		StudentID:  payload.StudentID,
		SubjectID:  payload.SubjectID,
		Term:       term,
		Score:      *payload.Score,
		RecordedBy: actorReference(actor),
	}

	created, changed, err := s.grades.Upsert(ctx, &record)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}
	span.SetAttributes(
		attribute.Bool("grade.created", created),
		attribute.Bool("grade.changed", changed),
		attribute.Float64("grade.score", record.Score),
	)

	if created || changed {
		if _, err := s.alerts.EvaluatePerformance(ctx, record.StudentID, record.SubjectID); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Uint("subject_id", record.SubjectID).Msg("performance evaluation failed")
		}

		if s.activity != nil {
			id := record.ID
			_, _ = s.activity.Record(ctx, ActivityEntry{
				ActorID:    actor.ID,
				ActorRole:  actor.Role,
				Action:     "grade.recorded",
				EntityType: "grade",
				EntityID:   &id,
				Metadata: map[string]interface{}{
					"student_id": record.StudentID,
					"subject_id": record.SubjectID,
					"term":       record.Term,
					"score":      record.Score,
					"created":    created,
				},
			})
		}
	}

	return dto.NewGradeResponse(record, created), nil
}

func (s *gradeService) ListByPair(ctx context.Context, studentID, subjectID uint) ([]dto.GradeResponse, error) {
	if _, err := s.roster.FindStudent(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	records, err := s.grades.ListByPair(ctx, studentID, subjectID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GradeResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewGradeResponse(record, false))
	}
	return responses, nil
}
