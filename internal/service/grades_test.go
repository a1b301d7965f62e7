package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

type gradeFixture struct {
	*alertFixture
	svc GradeService
}

func newGradeFixture(t *testing.T) *gradeFixture {
	t.Helper()
	f := newAlertFixture(t)

	activity := NewActivityService(repository.NewActivityLogRepository(f.db), testLogger())
	svc := NewGradeService(
		repository.NewGradeRepository(f.db),
		repository.NewRosterRepository(f.db),
		f.alerts,
		activity,
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	return &gradeFixture{alertFixture: f, svc: svc}
}

func score(v float64) *float64 {
	return &v
}

func TestGradeUpsertDefaultsTermAndEvaluates(t *testing.T) {
	f := newGradeFixture(t)
	f.engine.now = func() time.Time { return june(10) }
	for day := 1; day <= 5; day++ {
		f.seedAttendance(t, day, models.AttendancePresent)
	}

	resp, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(55),
	}, staffActor())
	require.NoError(t, err)
	require.True(t, resp.Created)
	require.Equal(t, models.DefaultTerm, resp.Term)
	require.Equal(t, 55.0, resp.Score)

	// Perfect attendance with a failing average: the at-risk trio plus the
	// two grade warnings.
	require.Len(t, f.notifications(t), 5)
	atRisk := f.notificationByKey(t, fmt.Sprintf("performance_status_student_%d_subject_%d_2025-06-10", f.student.ID, f.subject.ID))
	require.Equal(t, models.KindPerformanceAtRisk, atRisk.Kind)
	require.Equal(t, "Performance Alert: You are now marked as 'At Risk' in MATH101 - Algebra due to low grade average (55.00).", atRisk.Message)

	warning := f.notificationByKey(t, fmt.Sprintf("performance_warning_gpa_student_%d_subject_%d", f.student.ID, f.subject.ID))
	require.Equal(t, models.KindWarningGrade, warning.Kind)
	require.Equal(t, "Performance Warning: Your grade average in MATH101 - Algebra is below 75% (55.00). Please work on improving your grades.", warning.Message)

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", "grade.recorded").First(&entry).Error)
	require.Equal(t, float64(55), entry.Metadata["score"])
	require.Equal(t, models.DefaultTerm, entry.Metadata["term"])
}

func TestGradeUpsertCorrectionReEvaluates(t *testing.T) {
	f := newGradeFixture(t)
	f.engine.now = func() time.Time { return june(10) }
	for day := 1; day <= 5; day++ {
		f.seedAttendance(t, day, models.AttendancePresent)
	}

	first, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(55),
	}, staffActor())
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Len(t, f.notifications(t), 5)

	f.engine.now = func() time.Time { return june(16) }
	second, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(90),
	}, staffActor())
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, 90.0, second.Score)

	var count int64
	require.NoError(t, f.db.Model(&models.GradeRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The correction lifts the pair back to active, which adds the two
	// improvement notes on top of the earlier five rows.
	require.Len(t, f.notifications(t), 7)
	improved := f.notificationByKey(t, fmt.Sprintf("performance_status_student_%d_subject_%d_2025-06-16", f.student.ID, f.subject.ID))
	require.Equal(t, models.KindPerformanceImproved, improved.Kind)
	require.Equal(t, "Great job! Your performance has improved in MATH101 - Algebra and you're back to 'Active' status.", improved.Message)

	var standing models.SubjectStanding
	require.NoError(t, f.db.Where("student_id = ? AND subject_id = ?", f.student.ID, f.subject.ID).First(&standing).Error)
	require.Equal(t, models.StandingActive, standing.Status)
}

func TestGradeUpsertIdenticalScoreSkipsEvaluation(t *testing.T) {
	f := newGradeFixture(t)
	for day := 1; day <= 5; day++ {
		f.seedAttendance(t, day, models.AttendancePresent)
	}

	first, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(85),
	}, staffActor())
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(85),
	}, staffActor())
	require.NoError(t, err)
	require.False(t, second.Created)

	require.Empty(t, f.notifications(t))

	var count int64
	require.NoError(t, f.db.Model(&models.ActivityLog{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGradeUpsertRejectsOutOfRangeScore(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
		Score:     score(101),
	}, staffActor())
	require.Error(t, err)

	_, err = f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: f.subject.ID,
	}, staffActor())
	require.Error(t, err)
}

func TestGradeUpsertUnknownStudent(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: 9999,
		SubjectID: f.subject.ID,
		Score:     score(80),
	}, staffActor())
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestGradeUpsertUnknownSubject(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.svc.Upsert(context.Background(), dto.UpsertGradeRequest{
		StudentID: f.student.ID,
		SubjectID: 9999,
		Score:     score(80),
	}, staffActor())
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestListByPairReturnsAllTerms(t *testing.T) {
	f := newGradeFixture(t)
	f.seedGrade(t, "Midterm", 82)
	f.seedGrade(t, "Final", 91)

	records, err := f.svc.ListByPair(context.Background(), f.student.ID, f.subject.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	terms := map[string]float64{}
	for _, record := range records {
		terms[record.Term] = record.Score
	}
	require.Equal(t, map[string]float64{"Midterm": 82, "Final": 91}, terms)
}

func TestListByPairUnknownStudent(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.svc.ListByPair(context.Background(), 9999, f.subject.ID)
	require.ErrorIs(t, err, ErrStudentNotFound)
}
