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

func setupStandingDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:standing_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SubjectStanding{}))
	return db
}

func TestStandingUpsertKeepsOneRowPerPair(t *testing.T) {
	db := setupStandingDB(t)
	repo := NewStandingRepository(db)
	ctx := context.Background()

	changedAt := time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)
	first := models.SubjectStanding{
		StudentID:     1,
		SubjectID:     2,
		Status:        models.StandingActive,
		AttendancePct: 92.5,
		GradeAverage:  88,
		ChangedAt:     changedAt,
	}
	require.NoError(t, repo.Upsert(ctx, &first))

	flipped := models.SubjectStanding{
		StudentID:     1,
		SubjectID:     2,
		Status:        models.StandingAtRisk,
		AttendancePct: 61.5,
		GradeAverage:  58.2,
		ChangedAt:     changedAt.Add(24 * time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, &flipped))

	var count int64
	require.NoError(t, db.Model(&models.SubjectStanding{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stored, err := repo.Get(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, models.StandingAtRisk, stored.Status)
	require.InDelta(t, 61.5, stored.AttendancePct, 0.001)
	require.Equal(t, changedAt.Add(24*time.Hour).Unix(), stored.ChangedAt.Unix())
}

func TestStandingGetMissingPairReturnsNotFound(t *testing.T) {
	db := setupStandingDB(t)
	repo := NewStandingRepository(db)

	_, err := repo.Get(context.Background(), 9, 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListAtRiskFiltersByStatus(t *testing.T) {
	db := setupStandingDB(t)
	repo := NewStandingRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []models.SubjectStanding{
		{StudentID: 1, SubjectID: 1, Status: models.StandingActive, ChangedAt: now},
		{StudentID: 1, SubjectID: 2, Status: models.StandingAtRisk, ChangedAt: now.Add(-time.Hour)},
		{StudentID: 2, SubjectID: 1, Status: models.StandingAtRisk, ChangedAt: now},
	}
	for i := range rows {
		require.NoError(t, repo.Upsert(ctx, &rows[i]))
	}

	atRisk, total, err := repo.ListAtRisk(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, atRisk, 2)
	require.Equal(t, uint(2), atRisk[0].StudentID, "expected most recent change first")
}
