package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/observability"
	"github.com/edulog/edulog-go-api/internal/repository"
)

// Streak detection defaults, overridable through configuration.
const (
	DefaultStreakThreshold  = 3
	DefaultAttendanceWindow = 5
)

const (
	alertDateLayout      = "2006-01-02"
	alertHumanDateLayout = "January 02, 2006"
)

// AlertOutcome counts what one engine pass did to the notification store.
// Suppressed rows are deliveries that hit an already-existing dedup key.
type AlertOutcome struct {
	Created    int `json:"created"`
	Suppressed int `json:"suppressed"`
}

// Add accumulates another outcome into this one.
func (o *AlertOutcome) Add(other AlertOutcome) {
	o.Created += other.Created
	o.Suppressed += other.Suppressed
}

// NotificationDeliverer is the engine-facing slice of the notification
// service: store one notification keyed for idempotency, report whether a row
// was actually created, and let the service fan it out to live subscribers.
type NotificationDeliverer interface {
	Deliver(ctx context.Context, notification models.Notification) (bool, error)
}

// AlertService is the notification engine. Every method is idempotent with
// respect to the notification store: re-running an evaluation can only
// suppress, never duplicate.
type AlertService interface {
	// NotifyAttendanceMark raises the absent/late alert for one attendance
	// record. Present marks produce nothing.
	NotifyAttendanceMark(ctx context.Context, record models.AttendanceRecord) (AlertOutcome, error)
	// EvaluatePerformance recomputes the metrics for the pair, records the
	// standing, and raises transition and warning alerts as needed.
	EvaluatePerformance(ctx context.Context, studentID, subjectID uint) (AlertOutcome, error)
	// CheckConsecutiveAbsences inspects the trailing run of absences for the
	// pair and raises the streak alert once per streak length.
	CheckConsecutiveAbsences(ctx context.Context, studentID, subjectID uint) (AlertOutcome, error)
}

type alertService struct {
	roster     repository.RosterRepository
	attendance repository.AttendanceRepository
	grades     repository.GradeRepository
	standings  repository.StandingRepository
	deliverer  NotificationDeliverer
	thresholds Thresholds
	streakMin  int
	window     int
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAlertService constructs the notification engine.
func NewAlertService(
	roster repository.RosterRepository,
	attendance repository.AttendanceRepository,
	grades repository.GradeRepository,
	standings repository.StandingRepository,
	deliverer NotificationDeliverer,
	thresholds Thresholds,
	streakThreshold int,
	attendanceWindow int,
	logger zerolog.Logger,
) AlertService {
	if streakThreshold <= 0 {
		streakThreshold = DefaultStreakThreshold
	}
	if attendanceWindow <= 0 {
		attendanceWindow = DefaultAttendanceWindow
	}
	if attendanceWindow < streakThreshold {
		attendanceWindow = streakThreshold
	}

	return &alertService{
		roster:     roster,
		attendance: attendance,
		grades:     grades,
		standings:  standings,
		deliverer:  deliverer,
		thresholds: thresholds.normalized(),
		streakMin:  streakThreshold,
		window:     attendanceWindow,
		logger:     logger.With().Str("component", "alert_service").Logger(),
		tracer:     otel.Tracer("github.com/edulog/edulog-go-api/internal/service/alerts"),
		now:        time.Now,
	}
}

func (s *alertService) NotifyAttendanceMark(ctx context.Context, record models.AttendanceRecord) (AlertOutcome, error) {
	var outcome AlertOutcome

	var kind string
	switch record.Status {
	case models.AttendanceAbsent:
		kind = models.KindAttendanceAbsent
	case models.AttendanceLate:
		kind = models.KindAttendanceLate
	default:
		return outcome, nil
	}

	ctx, span := s.tracer.Start(ctx, "alerts.attendance_mark", trace.WithAttributes(
		attribute.Int64("alert.student_id", int64(record.StudentID)),
		attribute.Int64("alert.subject_id", int64(record.SubjectID)),
		attribute.String("alert.status", record.Status),
	))
	defer span.End()

	student, subject, err := s.resolvePair(ctx, record.StudentID, record.SubjectID)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}

	when := record.Date.Format(alertHumanDateLayout)
	metadata := map[string]interface{}{
		"date":   record.Date.Format(alertDateLayout),
		"status": record.Status,
	}

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("You were marked %s in %s on %s.", record.Status, subject.Label(), when)
		notification := alertNotification(userID, models.RoleStudent, kind, message, attendanceKey(kind, student.ID, subject.ID, record.Date), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}
	if ok {
		message := fmt.Sprintf("Your child %s was marked %s in %s on %s.", student.Name, record.Status, subject.Label(), when)
		notification := alertNotification(parentUserID, models.RoleParent, kind, message, attendanceParentKey(kind, parent.ID, student.ID, subject.ID, record.Date), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	return outcome, nil
}

func (s *alertService) EvaluatePerformance(ctx context.Context, studentID, subjectID uint) (AlertOutcome, error) {
	var outcome AlertOutcome

	ctx, span := s.tracer.Start(ctx, "alerts.evaluate_performance", trace.WithAttributes(
		attribute.Int64("alert.student_id", int64(studentID)),
		attribute.Int64("alert.subject_id", int64(subjectID)),
	))
	defer span.End()

	student, subject, err := s.resolvePair(ctx, studentID, subjectID)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}

	metrics, err := collectMetrics(ctx, s.attendance, s.grades, studentID, subjectID)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}

	classification := Classify(metrics, s.thresholds)
	span.SetAttributes(
		attribute.Float64("alert.attendance_pct", metrics.AttendancePct),
		attribute.Float64("alert.grade_average", metrics.AverageGrade),
		attribute.String("alert.status", classification.Status),
	)

	previous := ""
	standing, err := s.standings.Get(ctx, studentID, subjectID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		span.RecordError(err)
		return outcome, err
	default:
		previous = standing.Status
	}

	if previous != classification.Status {
		switch {
		case classification.AtRisk():
			if err := s.notifyAtRisk(ctx, student, subject, metrics, &outcome); err != nil {
				span.RecordError(err)
				return outcome, err
			}
			observability.StatusTransitions().WithLabelValues("at_risk").Inc()
		case previous == models.StandingAtRisk:
			if err := s.notifyImproved(ctx, student, subject, metrics, &outcome); err != nil {
				span.RecordError(err)
				return outcome, err
			}
			observability.StatusTransitions().WithLabelValues("improved").Inc()
		}
	}

	next := models.SubjectStanding{
		StudentID:     studentID,
		SubjectID:     subjectID,
		Status:        classification.Status,
		AttendancePct: metrics.AttendancePct,
		GradeAverage:  metrics.AverageGrade,
		ChangedAt:     s.now(),
	}
	if previous == classification.Status {
		next.ChangedAt = standing.ChangedAt
	}
	if err := s.standings.Upsert(ctx, &next); err != nil {
		span.RecordError(err)
		return outcome, fmt.Errorf("record standing: %w", err)
	}

	if classification.AttendanceWarning {
		if err := s.notifyAttendanceWarning(ctx, student, subject, metrics, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}
	if classification.GradeWarning {
		if err := s.notifyGradeWarning(ctx, student, subject, metrics, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	return outcome, nil
}

func (s *alertService) CheckConsecutiveAbsences(ctx context.Context, studentID, subjectID uint) (AlertOutcome, error) {
	var outcome AlertOutcome

	ctx, span := s.tracer.Start(ctx, "alerts.consecutive_absences", trace.WithAttributes(
		attribute.Int64("alert.student_id", int64(studentID)),
		attribute.Int64("alert.subject_id", int64(subjectID)),
	))
	defer span.End()

	records, err := s.attendance.Recent(ctx, studentID, subjectID, s.window)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}
	if len(records) < s.streakMin {
		return outcome, nil
	}

	// Trailing streak only: stop at the first non-absent record. A run longer
	// than the window is reported as the window bound.
	streak := 0
	for _, record := range records {
		if !record.IsAbsent() {
			break
		}
		streak++
	}
	span.SetAttributes(attribute.Int("alert.streak", streak))
	if streak < s.streakMin {
		return outcome, nil
	}

	student, subject, err := s.resolvePair(ctx, studentID, subjectID)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}

	key := streakKey(studentID, subjectID, streak)
	metadata := map[string]interface{}{"streak": streak}

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("Warning: You have been absent for %d consecutive days in %s. Please contact your teacher.", streak, subject.Label())
		notification := alertNotification(userID, models.RoleStudent, models.KindConsecutiveAbsences, message, key, studentID, subjectID, metadata)
		if err := s.deliver(ctx, notification, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}
	if ok {
		message := fmt.Sprintf("Warning: %s has been absent for %d consecutive days in %s. Please contact the school.", student.Name, streak, subject.Label())
		notification := alertNotification(parentUserID, models.RoleParent, models.KindConsecutiveAbsences, message, fmt.Sprintf("%s_parent_%d", key, parent.ID), studentID, subjectID, metadata)
		if err := s.deliver(ctx, notification, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	teacher, teacherUserID, ok, err := s.teacherRecipient(ctx, subject)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}
	if ok {
		message := fmt.Sprintf("Alert: %s (%s) has been absent for %d consecutive days in %s. Please follow up.", student.Name, student.StudentNo, streak, subject.Label())
		notification := alertNotification(teacherUserID, models.RoleTeacher, models.KindTeacherConsecutiveAbsences, message, fmt.Sprintf("%s_teacher_%d", key, teacher.ID), studentID, subjectID, metadata)
		if err := s.deliver(ctx, notification, &outcome); err != nil {
			span.RecordError(err)
			return outcome, err
		}
	}

	return outcome, nil
}

func (s *alertService) notifyAtRisk(ctx context.Context, student models.Student, subject models.Subject, metrics PerformanceMetrics, outcome *AlertOutcome) error {
	reasons := s.riskReasons(metrics)
	base := statusKeyBase(student.ID, subject.ID)
	today := s.now().Format(alertDateLayout)
	metadata := performanceMetadata(metrics)

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("Performance Alert: You are now marked as 'At Risk' in %s due to low %s.", subject.Label(), reasons)
		notification := alertNotification(userID, models.RoleStudent, models.KindPerformanceAtRisk, message, fmt.Sprintf("%s_%s", base, today), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		return err
	}
	if ok {
		message := fmt.Sprintf("Performance Alert: %s is now marked as 'At Risk' in %s due to low %s.", student.Name, subject.Label(), reasons)
		notification := alertNotification(parentUserID, models.RoleParent, models.KindPerformanceAtRisk, message, fmt.Sprintf("%s_parent_%d_%s", base, parent.ID, today), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	teacher, teacherUserID, ok, err := s.teacherRecipient(ctx, subject)
	if err != nil {
		return err
	}
	if ok {
		message := fmt.Sprintf("Alert: %s (%s) is now marked as 'At Risk' in %s due to low %s.", student.Name, student.StudentNo, subject.Label(), reasons)
		notification := alertNotification(teacherUserID, models.RoleTeacher, models.KindTeacherStudentAtRisk, message, fmt.Sprintf("%s_teacher_%d_%s", base, teacher.ID, today), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	return nil
}

func (s *alertService) notifyImproved(ctx context.Context, student models.Student, subject models.Subject, metrics PerformanceMetrics, outcome *AlertOutcome) error {
	base := statusKeyBase(student.ID, subject.ID)
	today := s.now().Format(alertDateLayout)
	metadata := performanceMetadata(metrics)

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("Great job! Your performance has improved in %s and you're back to 'Active' status.", subject.Label())
		notification := alertNotification(userID, models.RoleStudent, models.KindPerformanceImproved, message, fmt.Sprintf("%s_%s", base, today), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		return err
	}
	if ok {
		message := fmt.Sprintf("Great news! %s's performance has improved in %s and is back to 'Active' status.", student.Name, subject.Label())
		notification := alertNotification(parentUserID, models.RoleParent, models.KindPerformanceImproved, message, fmt.Sprintf("%s_parent_%d_%s", base, parent.ID, today), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	return nil
}

func (s *alertService) notifyAttendanceWarning(ctx context.Context, student models.Student, subject models.Subject, metrics PerformanceMetrics, outcome *AlertOutcome) error {
	key := warningKey("attendance", student.ID, subject.ID)
	metadata := map[string]interface{}{"attendance_pct": metrics.AttendancePct}

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("Performance Warning: Your attendance in %s is below %.0f%% (%.1f%%). Please improve your attendance.", subject.Label(), s.thresholds.Warning, metrics.AttendancePct)
		notification := alertNotification(userID, models.RoleStudent, models.KindWarningAttendance, message, key, student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		return err
	}
	if ok {
		message := fmt.Sprintf("Performance Warning: %s's attendance in %s is below %.0f%% (%.1f%%).", student.Name, subject.Label(), s.thresholds.Warning, metrics.AttendancePct)
		notification := alertNotification(parentUserID, models.RoleParent, models.KindWarningAttendance, message, fmt.Sprintf("%s_parent_%d", key, parent.ID), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	return nil
}

func (s *alertService) notifyGradeWarning(ctx context.Context, student models.Student, subject models.Subject, metrics PerformanceMetrics, outcome *AlertOutcome) error {
	key := warningKey("gpa", student.ID, subject.ID)
	metadata := map[string]interface{}{"grade_average": metrics.AverageGrade}

	if userID, ok := s.studentRecipient(student); ok {
		message := fmt.Sprintf("Performance Warning: Your grade average in %s is below %.0f%% (%.2f). Please work on improving your grades.", subject.Label(), s.thresholds.Warning, metrics.AverageGrade)
		notification := alertNotification(userID, models.RoleStudent, models.KindWarningGrade, message, key, student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	parent, parentUserID, ok, err := s.parentRecipient(ctx, student)
	if err != nil {
		return err
	}
	if ok {
		message := fmt.Sprintf("Performance Warning: %s's grade average in %s is below %.0f%% (%.2f).", student.Name, subject.Label(), s.thresholds.Warning, metrics.AverageGrade)
		notification := alertNotification(parentUserID, models.RoleParent, models.KindWarningGrade, message, fmt.Sprintf("%s_parent_%d", key, parent.ID), student.ID, subject.ID, metadata)
		if err := s.deliver(ctx, notification, outcome); err != nil {
			return err
		}
	}

	return nil
}

func (s *alertService) resolvePair(ctx context.Context, studentID, subjectID uint) (models.Student, models.Subject, error) {
	student, err := s.roster.FindStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, models.Subject{}, ErrStudentNotFound
		}
		return models.Student{}, models.Subject{}, err
	}

	subject, err := s.roster.FindSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, models.Subject{}, ErrSubjectNotFound
		}
		return models.Student{}, models.Subject{}, err
	}

	return student, subject, nil
}

func (s *alertService) studentRecipient(student models.Student) (string, bool) {
	userID, ok := deliverableUserID(student.UserID)
	if !ok {
		s.logger.Debug().Uint("student_id", student.ID).Msg("student has no deliverable user id, skipping recipient")
	}
	return userID, ok
}

func (s *alertService) parentRecipient(ctx context.Context, student models.Student) (models.Parent, string, bool, error) {
	parent, err := s.roster.ParentOf(ctx, student.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Uint("student_id", student.ID).Msg("no linked parent, skipping recipient")
			return models.Parent{}, "", false, nil
		}
		return models.Parent{}, "", false, err
	}

	userID, ok := deliverableUserID(parent.UserID)
	if !ok {
		s.logger.Debug().Uint("parent_id", parent.ID).Msg("parent has no deliverable user id, skipping recipient")
		return models.Parent{}, "", false, nil
	}
	return parent, userID, true, nil
}

func (s *alertService) teacherRecipient(ctx context.Context, subject models.Subject) (models.Teacher, string, bool, error) {
	teacher, err := s.roster.TeacherOf(ctx, subject.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Uint("subject_id", subject.ID).Msg("no assigned teacher, skipping recipient")
			return models.Teacher{}, "", false, nil
		}
		return models.Teacher{}, "", false, err
	}

	userID, ok := deliverableUserID(teacher.UserID)
	if !ok {
		s.logger.Debug().Uint("teacher_id", teacher.ID).Msg("teacher has no deliverable user id, skipping recipient")
		return models.Teacher{}, "", false, nil
	}
	return teacher, userID, true, nil
}

func (s *alertService) deliver(ctx context.Context, notification models.Notification, outcome *AlertOutcome) error {
	created, err := s.deliverer.Deliver(ctx, notification)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", notification.DedupKey, err)
	}
	if created {
		outcome.Created++
	} else {
		outcome.Suppressed++
	}
	return nil
}

func (s *alertService) riskReasons(metrics PerformanceMetrics) string {
	var reasons []string
	if metrics.AttendancePct < s.thresholds.AtRisk {
		reasons = append(reasons, fmt.Sprintf("attendance (%.1f%%)", metrics.AttendancePct))
	}
	if metrics.AverageGrade < s.thresholds.AtRisk {
		reasons = append(reasons, fmt.Sprintf("grade average (%.2f)", metrics.AverageGrade))
	}
	return strings.Join(reasons, ", ")
}

func performanceMetadata(metrics PerformanceMetrics) map[string]interface{} {
	return map[string]interface{}{
		"attendance_pct": metrics.AttendancePct,
		"grade_average":  metrics.AverageGrade,
	}
}

func alertNotification(userID, role, kind, message, key string, studentID, subjectID uint, metadata map[string]interface{}) models.Notification {
	sid := studentID
	subid := subjectID
	return models.Notification{
		UserID:    userID,
		Role:      role,
		Kind:      kind,
		Message:   message,
		StudentID: &sid,
		SubjectID: &subid,
		DedupKey:  key,
		Metadata:  datatypes.JSONMap(metadata),
	}
}

func deliverableUserID(userID *string) (string, bool) {
	if userID == nil {
		return "", false
	}
	id := strings.TrimSpace(*userID)
	return id, id != ""
}

// Dedup key grammar. Keys are the sole idempotency mechanism, so their shape
// is load-bearing: attendance keys carry the record date, status keys carry
// the evaluation date, warning keys carry no date at all and therefore fire
// once until cleared, and streak keys carry the streak length.
func attendanceKey(kind string, studentID, subjectID uint, date time.Time) string {
	return fmt.Sprintf("%s_student_%d_subject_%d_date_%s", kind, studentID, subjectID, date.Format(alertDateLayout))
}

func attendanceParentKey(kind string, parentID, studentID, subjectID uint, date time.Time) string {
	return fmt.Sprintf("%s_parent_%d_student_%d_subject_%d_date_%s", kind, parentID, studentID, subjectID, date.Format(alertDateLayout))
}

func statusKeyBase(studentID, subjectID uint) string {
	return fmt.Sprintf("performance_status_student_%d_subject_%d", studentID, subjectID)
}

func warningKey(metric string, studentID, subjectID uint) string {
	return fmt.Sprintf("performance_warning_%s_student_%d_subject_%d", metric, studentID, subjectID)
}

func streakKey(studentID, subjectID uint, days int) string {
	return fmt.Sprintf("consecutive_absences_student_%d_subject_%d_days_%d", studentID, subjectID, days)
}
