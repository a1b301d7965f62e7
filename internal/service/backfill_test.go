package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

func newBackfill(f *alertFixture, pageSize int) BackfillService {
	return NewBackfillService(
		repository.NewAttendanceRepository(f.db),
		repository.NewGradeRepository(f.db),
		f.alerts,
		pageSize,
		testLogger(),
	)
}

func addStudent(t *testing.T, f *alertFixture, number, name, userID string) models.Student {
	t.Helper()
	uid := userID
	student := models.Student{StudentNo: number, Name: name, UserID: &uid, Section: "1-A"}
	require.NoError(t, f.db.Create(&student).Error)
	return student
}

func seedAttendanceFor(t *testing.T, f *alertFixture, studentID uint, day int, status string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.AttendanceRecord{
		StudentID: studentID,
		SubjectID: f.subject.ID,
		Date:      june(day),
		Status:    status,
	}).Error)
}

func TestBackfillAttendanceRaisesStoredMarks(t *testing.T) {
	f := newAlertFixture(t)
	f.seedAttendance(t, 1, models.AttendanceAbsent)
	f.seedAttendance(t, 2, models.AttendanceLate)
	f.seedAttendance(t, 3, models.AttendancePresent)

	// Page size one forces the phase through multiple pages.
	svc := newBackfill(f, 1)

	report, err := svc.BackfillAttendance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Created: 4}, report)
	require.Len(t, f.notifications(t), 4)

	rerun, err := svc.BackfillAttendance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Suppressed: 4}, rerun)
	require.Len(t, f.notifications(t), 4)
}

func TestBackfillAttendanceIsolatesItemFailures(t *testing.T) {
	f := newAlertFixture(t)
	f.seedAttendance(t, 1, models.AttendanceAbsent)
	seedAttendanceFor(t, f, 9999, 2, models.AttendanceAbsent)

	report, err := newBackfill(f, 0).BackfillAttendance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Created: 2, Failed: 1}, report)
}

func TestBackfillPerformanceEvaluatesEveryPair(t *testing.T) {
	f := newAlertFixture(t)
	f.engine.now = func() time.Time { return june(10) }

	for day := 1; day <= 4; day++ {
		f.seedAttendance(t, day, models.AttendancePresent)
	}
	f.seedAttendance(t, 5, models.AttendanceAbsent)
	f.seedGrade(t, models.DefaultTerm, 85)

	failing := addStudent(t, f, "STD-2025-00002", "Pedro Santos", "usr-student-2")
	seedAttendanceFor(t, f, failing.ID, 1, models.AttendanceAbsent)
	seedAttendanceFor(t, f, failing.ID, 2, models.AttendanceAbsent)

	svc := newBackfill(f, 0)

	// The healthy pair evaluates cleanly with nothing to raise; the failing
	// pair goes at risk with no parent on file, so only the student and
	// teacher copies land.
	report, err := svc.BackfillPerformance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Created: 2, Skipped: 1}, report)

	rerun, err := svc.BackfillPerformance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Skipped: 2}, rerun)
}

func TestBackfillPerformanceRecoversLostStanding(t *testing.T) {
	f := newAlertFixture(t)
	f.engine.now = func() time.Time { return june(10) }

	failing := addStudent(t, f, "STD-2025-00002", "Pedro Santos", "usr-student-2")
	seedAttendanceFor(t, f, failing.ID, 1, models.AttendanceAbsent)
	seedAttendanceFor(t, f, failing.ID, 2, models.AttendanceAbsent)

	svc := newBackfill(f, 0)

	first, err := svc.BackfillPerformance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 1, Created: 2}, first)

	// Losing the standing row replays the transition; the dedup keys keep
	// the recipients from hearing about it twice.
	require.NoError(t, f.db.Where("student_id = ?", failing.ID).Delete(&models.SubjectStanding{}).Error)

	second, err := svc.BackfillPerformance(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 1, Suppressed: 2}, second)
	require.Len(t, f.notifications(t), 2)

	var standing models.SubjectStanding
	require.NoError(t, f.db.Where("student_id = ?", failing.ID).First(&standing).Error)
	require.Equal(t, models.StandingAtRisk, standing.Status)
}

func TestBackfillStreaksKeyedByLength(t *testing.T) {
	f := newAlertFixture(t)
	f.seedAttendance(t, 1, models.AttendanceAbsent)
	f.seedAttendance(t, 2, models.AttendanceAbsent)
	f.seedAttendance(t, 3, models.AttendanceAbsent)

	short := addStudent(t, f, "STD-2025-00002", "Pedro Santos", "usr-student-2")
	seedAttendanceFor(t, f, short.ID, 1, models.AttendanceAbsent)
	seedAttendanceFor(t, f, short.ID, 2, models.AttendanceAbsent)

	svc := newBackfill(f, 0)

	report, err := svc.BackfillStreaks(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Created: 3, Skipped: 1}, report)

	rerun, err := svc.BackfillStreaks(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Suppressed: 3, Skipped: 1}, rerun)

	// One more absence lengthens the streak, which keys fresh notifications.
	f.seedAttendance(t, 4, models.AttendanceAbsent)

	grown, err := svc.BackfillStreaks(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReport{Processed: 2, Created: 3, Skipped: 1}, grown)
}
