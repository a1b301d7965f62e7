package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/models"
)

func setupRecordDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:record_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AttendanceRecord{}, &models.GradeRecord{}))
	return db
}

func day(offset int) time.Time {
	return time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestAttendanceUpsertCreateCorrectNoop(t *testing.T) {
	db := setupRecordDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	record := models.AttendanceRecord{StudentID: 1, SubjectID: 2, Date: day(0), Status: models.AttendanceAbsent}
	created, changed, err := repo.Upsert(ctx, &record)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, changed)

	correction := models.AttendanceRecord{StudentID: 1, SubjectID: 2, Date: day(0), Status: models.AttendanceLate}
	created, changed, err = repo.Upsert(ctx, &correction)
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, changed)
	require.Equal(t, record.ID, correction.ID)

	repeat := models.AttendanceRecord{StudentID: 1, SubjectID: 2, Date: day(0), Status: models.AttendanceLate}
	created, changed, err = repo.Upsert(ctx, &repeat)
	require.NoError(t, err)
	require.False(t, created)
	require.False(t, changed)

	var count int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAttendanceRecentOrdersByDateDescending(t *testing.T) {
	db := setupRecordDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	statuses := []string{
		models.AttendancePresent,
		models.AttendanceAbsent,
		models.AttendanceAbsent,
		models.AttendanceAbsent,
	}
	for i, status := range statuses {
		record := models.AttendanceRecord{StudentID: 1, SubjectID: 2, Date: day(i), Status: status}
		_, _, err := repo.Upsert(ctx, &record)
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, day(3).Format("2006-01-02"), recent[0].Date.Format("2006-01-02"))
	require.Equal(t, day(1).Format("2006-01-02"), recent[2].Date.Format("2006-01-02"))
}

func TestAttendanceCountByStatus(t *testing.T) {
	db := setupRecordDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	statuses := []string{
		models.AttendancePresent,
		models.AttendancePresent,
		models.AttendancePresent,
		models.AttendanceAbsent,
		models.AttendanceLate,
	}
	for i, status := range statuses {
		record := models.AttendanceRecord{StudentID: 1, SubjectID: 2, Date: day(i), Status: status}
		_, _, err := repo.Upsert(ctx, &record)
		require.NoError(t, err)
	}

	present, total, err := repo.CountByStatus(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), present)
	require.Equal(t, int64(5), total)

	present, total, err = repo.CountByStatus(ctx, 9, 9)
	require.NoError(t, err)
	require.Zero(t, present)
	require.Zero(t, total)
}

func TestGradeUpsertAndAverage(t *testing.T) {
	db := setupRecordDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()

	midterm := models.GradeRecord{StudentID: 1, SubjectID: 2, Term: "Midterm", Score: 80}
	created, changed, err := repo.Upsert(ctx, &midterm)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, changed)

	finals := models.GradeRecord{StudentID: 1, SubjectID: 2, Term: "Finals", Score: 90}
	_, _, err = repo.Upsert(ctx, &finals)
	require.NoError(t, err)

	correction := models.GradeRecord{StudentID: 1, SubjectID: 2, Term: "Midterm", Score: 70}
	created, changed, err = repo.Upsert(ctx, &correction)
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, changed)

	average, count, err := repo.Average(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.InDelta(t, 80, average, 0.001)

	average, count, err = repo.Average(ctx, 9, 9)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, average)
}

func TestDistinctPairsSpanBothStores(t *testing.T) {
	db := setupRecordDB(t)
	attendance := NewAttendanceRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	for _, pair := range []StudentSubjectPair{{1, 1}, {1, 2}, {2, 1}} {
		record := models.AttendanceRecord{StudentID: pair.StudentID, SubjectID: pair.SubjectID, Date: day(0), Status: models.AttendancePresent}
		_, _, err := attendance.Upsert(ctx, &record)
		require.NoError(t, err)
	}
	grade := models.GradeRecord{StudentID: 3, SubjectID: 1, Term: "Midterm", Score: 75}
	_, _, err := grades.Upsert(ctx, &grade)
	require.NoError(t, err)

	attendancePairs, err := attendance.DistinctPairs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, attendancePairs, 3)

	gradePairs, err := grades.DistinctPairs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, gradePairs, 1)
	require.Equal(t, StudentSubjectPair{StudentID: 3, SubjectID: 1}, gradePairs[0])
}
