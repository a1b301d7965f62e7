package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate synchronizes the schema for every persisted model, including the
// unique indexes the dedup and standing upserts rely on.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Parent{},
		&models.Teacher{},
		&models.Subject{},
		&models.AttendanceRecord{},
		&models.GradeRecord{},
		&models.Notification{},
		&models.SubjectStanding{},
		&models.Feedback{},
		&models.ActivityLog{},
	)
}
