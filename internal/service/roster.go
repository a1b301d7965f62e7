package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

// Directory sentinels, mapped to 404 at the handler layer.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrParentNotFound  = errors.New("parent not found")
	ErrTeacherNotFound = errors.New("teacher not found")
	ErrSubjectNotFound = errors.New("subject not found")
)

// RosterService owns the directory the engine fans out over: students,
// parents, teachers, subjects, and the links between them.
type RosterService interface {
	CreateStudent(ctx context.Context, payload dto.CreateStudentRequest, actor ActivityActor) (dto.StudentResponse, error)
	GetStudent(ctx context.Context, id uint) (dto.StudentResponse, error)
	ListStudents(ctx context.Context, section string, limit, offset int) ([]dto.StudentResponse, int64, error)
	LinkParent(ctx context.Context, studentID uint, payload dto.LinkParentRequest, actor ActivityActor) (dto.StudentResponse, error)

	CreateParent(ctx context.Context, payload dto.CreateParentRequest, actor ActivityActor) (dto.ParentResponse, error)
	CreateTeacher(ctx context.Context, payload dto.CreateTeacherRequest, actor ActivityActor) (dto.TeacherResponse, error)

	CreateSubject(ctx context.Context, payload dto.CreateSubjectRequest, actor ActivityActor) (dto.SubjectResponse, error)
	ListSubjects(ctx context.Context, limit, offset int) ([]dto.SubjectResponse, int64, error)
	AssignTeacher(ctx context.Context, subjectID uint, payload dto.AssignTeacherRequest, actor ActivityActor) (dto.SubjectResponse, error)
}

type rosterService struct {
	repo      repository.RosterRepository
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRosterService constructs the directory service.
func NewRosterService(repo repository.RosterRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) RosterService {
	return &rosterService{
		repo:      repo,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "roster_service").Logger(),
		tracer:    otel.Tracer("github.com/edulog/edulog-go-api/internal/service/roster"),
		now:       time.Now,
	}
}

func (s *rosterService) CreateStudent(ctx context.Context, payload dto.CreateStudentRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	name, err := s.cleanName(payload.Name)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.create_student")
	defer span.End()

	number, err := s.issueNumber(ctx, models.StudentNoPrefix, s.repo.CountStudentNumbers)
	if err != nil {
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		StudentNo: number,
		Name:      name,
		Email:     optionalString(payload.Email),
		UserID:    optionalString(payload.UserID),
		Section:   strings.TrimSpace(payload.Section),
	}
	if err := s.repo.CreateStudent(ctx, &student); err != nil {
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}
	span.SetAttributes(attribute.String("roster.student_no", student.StudentNo))

	s.recordActivity(ctx, actor, "student.created", "student", student.ID, map[string]interface{}{
		"student_no": student.StudentNo,
		"section":    student.Section,
	})

	return dto.NewStudentResponse(student), nil
}

func (s *rosterService) GetStudent(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.repo.FindStudent(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *rosterService) ListStudents(ctx context.Context, section string, limit, offset int) ([]dto.StudentResponse, int64, error) {
	students, total, err := s.repo.ListStudents(ctx, strings.TrimSpace(section), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return dto.NewStudentResponseSlice(students), total, nil
}

func (s *rosterService) LinkParent(ctx context.Context, studentID uint, payload dto.LinkParentRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.link_parent", trace.WithAttributes(
		attribute.Int64("roster.student_id", int64(studentID)),
		attribute.Int64("roster.parent_id", int64(payload.ParentID)),
	))
	defer span.End()

	if _, err := s.repo.FindParent(ctx, payload.ParentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrParentNotFound
		}
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	if err := s.repo.LinkParent(ctx, studentID, payload.ParentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	student, err := s.repo.FindStudent(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	s.recordActivity(ctx, actor, "student.parent_linked", "student", studentID, map[string]interface{}{
		"parent_id": payload.ParentID,
	})

	return dto.NewStudentResponse(student), nil
}

func (s *rosterService) CreateParent(ctx context.Context, payload dto.CreateParentRequest, actor ActivityActor) (dto.ParentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ParentResponse{}, err
	}

	name, err := s.cleanName(payload.Name)
	if err != nil {
		return dto.ParentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.create_parent")
	defer span.End()

	number, err := s.issueNumber(ctx, models.ParentNoPrefix, s.repo.CountParentNumbers)
	if err != nil {
		span.RecordError(err)
		return dto.ParentResponse{}, err
	}

	parent := models.Parent{
		ParentNo:      number,
		Name:          name,
		Email:         optionalString(payload.Email),
		UserID:        optionalString(payload.UserID),
		ContactNumber: strings.TrimSpace(payload.ContactNumber),
	}
	if err := s.repo.CreateParent(ctx, &parent); err != nil {
		span.RecordError(err)
		return dto.ParentResponse{}, err
	}

	s.recordActivity(ctx, actor, "parent.created", "parent", parent.ID, map[string]interface{}{
		"parent_no": parent.ParentNo,
	})

	return dto.NewParentResponse(parent), nil
}

func (s *rosterService) CreateTeacher(ctx context.Context, payload dto.CreateTeacherRequest, actor ActivityActor) (dto.TeacherResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TeacherResponse{}, err
	}

	name, err := s.cleanName(payload.Name)
	if err != nil {
		return dto.TeacherResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.create_teacher")
	defer span.End()

	number, err := s.issueNumber(ctx, models.TeacherNoPrefix, s.repo.CountTeacherNumbers)
	if err != nil {
		span.RecordError(err)
		return dto.TeacherResponse{}, err
	}

	teacher := models.Teacher{
		TeacherNo:  number,
		Name:       name,
		Email:      optionalString(payload.Email),
		UserID:     optionalString(payload.UserID),
		Department: strings.TrimSpace(payload.Department),
	}
	if err := s.repo.CreateTeacher(ctx, &teacher); err != nil {
		span.RecordError(err)
		return dto.TeacherResponse{}, err
	}

	s.recordActivity(ctx, actor, "teacher.created", "teacher", teacher.ID, map[string]interface{}{
		"teacher_no": teacher.TeacherNo,
	})

	return dto.NewTeacherResponse(teacher), nil
}

func (s *rosterService) CreateSubject(ctx context.Context, payload dto.CreateSubjectRequest, actor ActivityActor) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubjectResponse{}, err
	}

	name, err := s.cleanName(payload.Name)
	if err != nil {
		return dto.SubjectResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.create_subject")
	defer span.End()

	if payload.TeacherID != nil {
		if _, err := s.repo.FindTeacher(ctx, *payload.TeacherID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SubjectResponse{}, ErrTeacherNotFound
			}
			span.RecordError(err)
			return dto.SubjectResponse{}, err
		}
	}

	subject := models.Subject{
		Code:      strings.ToUpper(strings.TrimSpace(payload.Code)),
		Name:      name,
		Section:   strings.TrimSpace(payload.Section),
		TeacherID: payload.TeacherID,
	}
	if err := s.repo.CreateSubject(ctx, &subject); err != nil {
		span.RecordError(err)
		return dto.SubjectResponse{}, err
	}
	span.SetAttributes(attribute.String("roster.subject_code", subject.Code))

	s.recordActivity(ctx, actor, "subject.created", "subject", subject.ID, map[string]interface{}{
		"code":    subject.Code,
		"section": subject.Section,
	})

	return dto.NewSubjectResponse(subject), nil
}

func (s *rosterService) ListSubjects(ctx context.Context, limit, offset int) ([]dto.SubjectResponse, int64, error) {
	subjects, total, err := s.repo.ListSubjects(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return dto.NewSubjectResponseSlice(subjects), total, nil
}

func (s *rosterService) AssignTeacher(ctx context.Context, subjectID uint, payload dto.AssignTeacherRequest, actor ActivityActor) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubjectResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.assign_teacher", trace.WithAttributes(
		attribute.Int64("roster.subject_id", int64(subjectID)),
		attribute.Int64("roster.teacher_id", int64(payload.TeacherID)),
	))
	defer span.End()

	if _, err := s.repo.FindTeacher(ctx, payload.TeacherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrTeacherNotFound
		}
		span.RecordError(err)
		return dto.SubjectResponse{}, err
	}

	if err := s.repo.AssignTeacher(ctx, subjectID, payload.TeacherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.SubjectResponse{}, err
	}

	subject, err := s.repo.FindSubject(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		return dto.SubjectResponse{}, err
	}

	s.recordActivity(ctx, actor, "subject.teacher_assigned", "subject", subjectID, map[string]interface{}{
		"teacher_id": payload.TeacherID,
	})

	return dto.NewSubjectResponse(subject), nil
}

// issueNumber derives the next directory number for the current year, e.g.
// STD-2026-00042. The unique index on the number column catches collisions
// under concurrent enrollment.
func (s *rosterService) issueNumber(ctx context.Context, prefix string, counter func(context.Context, string) (int64, error)) (string, error) {
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, s.now().Year())
	count, err := counter(ctx, yearPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", yearPrefix, count+1), nil
}

func (s *rosterService) cleanName(raw string) (string, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	if name == "" {
		return "", errors.New("name empty after sanitization")
	}
	return name, nil
}

func (s *rosterService) recordActivity(ctx context.Context, actor ActivityActor, action, entityType string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := entityID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity entry")
	}
}

func optionalString(raw string) *string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	return &value
}
