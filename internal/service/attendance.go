package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// AttendanceService owns the marking workflow: upsert the record, feed the
// live register, and hand the record to the alert engine.
type AttendanceService interface {
	Mark(ctx context.Context, payload dto.MarkAttendanceRequest, actor ActivityActor) (dto.AttendanceResponse, error)
	BulkMark(ctx context.Context, payload dto.BulkAttendanceRequest, actor ActivityActor) (dto.BulkAttendanceResult, error)
	Recent(ctx context.Context, studentID, subjectID uint, limit int) ([]dto.AttendanceResponse, error)
}

type attendanceService struct {
	records   repository.AttendanceRepository
	roster    repository.RosterRepository
	alerts    AlertService
	feed      AttendanceFeedService
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAttendanceService constructs the marking workflow service.
func NewAttendanceService(records repository.AttendanceRepository, roster repository.RosterRepository, alerts AlertService, feed AttendanceFeedService, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		records:   records,
		roster:    roster,
		alerts:    alerts,
		feed:      feed,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "attendance_service").Logger(),
		tracer:    otel.Tracer("github.com/edulog/edulog-go-api/internal/service/attendance"),
		now:       time.Now,
	}
}

func (s *attendanceService) Mark(ctx context.Context, payload dto.MarkAttendanceRequest, actor ActivityActor) (dto.AttendanceResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttendanceResponse{}, err
	}

	date, err := s.resolveDate(payload.Date)
	if err != nil {
		return dto.AttendanceResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "attendance.mark", trace.WithAttributes(
		attribute.Int64("attendance.student_id", int64(payload.StudentID)),
		attribute.Int64("attendance.subject_id", int64(payload.SubjectID)),
		attribute.String("attendance.status", payload.Status),
	))
	defer span.End()

	student, err := s.roster.FindStudent(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttendanceResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}
	if _, err := s.roster.FindSubject(ctx, payload.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttendanceResponse{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}

	record := models.AttendanceRecord{
		StudentID:  payload.StudentID,
		SubjectID:  payload.SubjectID,
		Date:       date,
		Status:     payload.Status,
		RecordedBy: actorReference(actor),
	}

	created, changed, err := s.records.Upsert(ctx, &record)
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}
	span.SetAttributes(
		attribute.Bool("attendance.created", created),
		attribute.Bool("attendance.changed", changed),
	)

	if created || changed {
		s.feed.Broadcast(ctx, dto.AttendanceFeedEvent{
			SubjectID:   record.SubjectID,
			StudentID:   record.StudentID,
			StudentName: student.Name,
			Date:        record.Date.Format(alertDateLayout),
			Status:      record.Status,
			Created:     created,
			MarkedAt:    s.now().UTC(),
		})
		s.runAlerts(ctx, record)
		s.recordActivity(ctx, actor, "attendance.marked", record.ID, map[string]interface{}{
			"student_id": record.StudentID,
			"subject_id": record.SubjectID,
			"date":       record.Date.Format(alertDateLayout),
			"status":     record.Status,
			"created":    created,
		})
	}

	return dto.NewAttendanceResponse(record, created), nil
}

func (s *attendanceService) BulkMark(ctx context.Context, payload dto.BulkAttendanceRequest, actor ActivityActor) (dto.BulkAttendanceResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BulkAttendanceResult{}, err
	}

	date, err := s.resolveDate(payload.Date)
	if err != nil {
		return dto.BulkAttendanceResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "attendance.bulk_mark", trace.WithAttributes(
		attribute.Int64("attendance.subject_id", int64(payload.SubjectID)),
		attribute.Int("attendance.entries", len(payload.Entries)),
	))
	defer span.End()

	if _, err := s.roster.FindSubject(ctx, payload.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BulkAttendanceResult{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.BulkAttendanceResult{}, err
	}

	var result dto.BulkAttendanceResult
	for _, entry := range payload.Entries {
		student, err := s.roster.FindStudent(ctx, entry.StudentID)
		if err != nil {
			result.Failed++
			reason := "student lookup failed"
			if errors.Is(err, gorm.ErrRecordNotFound) {
				reason = "student not found"
			} else {
				s.logger.Warn().Err(err).Uint("student_id", entry.StudentID).Msg("bulk mark student lookup failed")
			}
			result.Errors = append(result.Errors, dto.BulkAttendanceError{StudentID: entry.StudentID, Reason: reason})
			continue
		}

		record := models.AttendanceRecord{
			StudentID:  entry.StudentID,
			SubjectID:  payload.SubjectID,
			Date:       date,
			Status:     entry.Status,
			RecordedBy: actorReference(actor),
		}

		created, changed, err := s.records.Upsert(ctx, &record)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.BulkAttendanceError{StudentID: entry.StudentID, Reason: "failed to store mark"})
			s.logger.Warn().Err(err).Uint("student_id", entry.StudentID).Uint("subject_id", payload.SubjectID).Msg("bulk mark upsert failed")
			continue
		}

		if created {
			result.Created++
		} else {
			result.Updated++
		}

		if created || changed {
			s.feed.Broadcast(ctx, dto.AttendanceFeedEvent{
				SubjectID:   record.SubjectID,
				StudentID:   record.StudentID,
				StudentName: student.Name,
				Date:        record.Date.Format(alertDateLayout),
				Status:      record.Status,
				Created:     created,
				MarkedAt:    s.now().UTC(),
			})
			s.runAlerts(ctx, record)
		}
	}

	span.SetAttributes(
		attribute.Int("attendance.created", result.Created),
		attribute.Int("attendance.updated", result.Updated),
		attribute.Int("attendance.failed", result.Failed),
	)

	s.recordActivity(ctx, actor, "attendance.bulk_marked", 0, map[string]interface{}{
		"subject_id": payload.SubjectID,
		"date":       date.Format(alertDateLayout),
		"created":    result.Created,
		"updated":    result.Updated,
		"failed":     result.Failed,
	})

	return result, nil
}

func (s *attendanceService) Recent(ctx context.Context, studentID, subjectID uint, limit int) ([]dto.AttendanceResponse, error) {
	if _, err := s.roster.FindStudent(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	records, err := s.records.Recent(ctx, studentID, subjectID, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AttendanceResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewAttendanceResponse(record, false))
	}
	return responses, nil
}

// runAlerts feeds one stored mark through the engine. Engine failures are
// logged and do not unwind the mark itself.
func (s *attendanceService) runAlerts(ctx context.Context, record models.AttendanceRecord) {
	if _, err := s.alerts.NotifyAttendanceMark(ctx, record); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Uint("subject_id", record.SubjectID).Msg("attendance alert failed")
	}
	if _, err := s.alerts.CheckConsecutiveAbsences(ctx, record.StudentID, record.SubjectID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Uint("subject_id", record.SubjectID).Msg("consecutive absence check failed")
	}
	if _, err := s.alerts.EvaluatePerformance(ctx, record.StudentID, record.SubjectID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Uint("subject_id", record.SubjectID).Msg("performance evaluation failed")
	}
}

func (s *attendanceService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	entry := ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "attendance",
		Metadata:   metadata,
	}
	if entityID != 0 {
		id := entityID
		entry.EntityID = &id
	}

	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity entry")
	}
}

func (s *attendanceService) resolveDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return dateOnly(s.now()), nil
	}

	parsed, err := time.Parse(alertDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %w", err)
	}
	return dateOnly(parsed), nil
}

func actorReference(actor ActivityActor) *string {
	id := strings.TrimSpace(actor.ID)
	if id == "" {
		return nil
	}
	return &id
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
