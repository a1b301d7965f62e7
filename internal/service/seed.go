package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

//go:embed seed_schema.json
var seedSchemaSource string

var seedSchema = jsonschema.MustCompileString("seed_schema.json", seedSchemaSource)

// seedActor attributes fixture writes in the activity log.
var seedActor = ActivityActor{ID: "seed", Role: "system"}

// SeedReport counts the rows a fixture load produced.
type SeedReport struct {
	Teachers   int `json:"teachers"`
	Parents    int `json:"parents"`
	Students   int `json:"students"`
	Subjects   int `json:"subjects"`
	Attendance int `json:"attendance"`
	Grades     int `json:"grades"`
}

// SeedService loads a roster+records fixture. The fixture is validated
// against the embedded schema before any row is written, so a malformed file
// never leaves a half-loaded database behind.
type SeedService interface {
	LoadFixture(ctx context.Context, path string) (SeedReport, error)
}

type seedService struct {
	roster     RosterService
	attendance repository.AttendanceRepository
	grades     repository.GradeRepository
	logger     zerolog.Logger
}

// NewSeedService constructs the fixture loader.
func NewSeedService(
	roster RosterService,
	attendance repository.AttendanceRepository,
	grades repository.GradeRepository,
	logger zerolog.Logger,
) SeedService {
	return &seedService{
		roster:     roster,
		attendance: attendance,
		grades:     grades,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

// Fixture entities reference each other by local ref keys, resolved to
// database ids during the load.
type seedFixture struct {
	Teachers []struct {
		Ref        string `json:"ref"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		UserID     string `json:"user_id"`
		Department string `json:"department"`
	} `json:"teachers"`
	Parents []struct {
		Ref           string `json:"ref"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		UserID        string `json:"user_id"`
		ContactNumber string `json:"contact_number"`
	} `json:"parents"`
	Students []struct {
		Ref     string `json:"ref"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		UserID  string `json:"user_id"`
		Section string `json:"section"`
		Parent  string `json:"parent"`
	} `json:"students"`
	Subjects []struct {
		Ref     string `json:"ref"`
		Code    string `json:"code"`
		Name    string `json:"name"`
		Section string `json:"section"`
		Teacher string `json:"teacher"`
	} `json:"subjects"`
	Attendance []struct {
		Student string `json:"student"`
		Subject string `json:"subject"`
		Date    string `json:"date"`
		Status  string `json:"status"`
	} `json:"attendance"`
	Grades []struct {
		Student string  `json:"student"`
		Subject string  `json:"subject"`
		Term    string  `json:"term"`
		Score   float64 `json:"score"`
	} `json:"grades"`
}

func (s *seedService) LoadFixture(ctx context.Context, path string) (SeedReport, error) {
	var report SeedReport

	raw, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("read fixture: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return report, fmt.Errorf("parse fixture: %w", err)
	}
	if err := seedSchema.Validate(doc); err != nil {
		return report, fmt.Errorf("fixture schema: %w", err)
	}

	var fixture seedFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return report, fmt.Errorf("decode fixture: %w", err)
	}

	teacherIDs := make(map[string]uint, len(fixture.Teachers))
	for i, item := range fixture.Teachers {
		if _, ok := teacherIDs[item.Ref]; ok {
			return report, fmt.Errorf("teachers[%d]: duplicate ref %q", i, item.Ref)
		}
		teacher, err := s.roster.CreateTeacher(ctx, dto.CreateTeacherRequest{
			Name:       item.Name,
			Email:      item.Email,
			UserID:     item.UserID,
			Department: item.Department,
		}, seedActor)
		if err != nil {
			return report, fmt.Errorf("teachers[%d] (%s): %w", i, item.Ref, err)
		}
		teacherIDs[item.Ref] = teacher.ID
		report.Teachers++
	}

	parentIDs := make(map[string]uint, len(fixture.Parents))
	for i, item := range fixture.Parents {
		if _, ok := parentIDs[item.Ref]; ok {
			return report, fmt.Errorf("parents[%d]: duplicate ref %q", i, item.Ref)
		}
		parent, err := s.roster.CreateParent(ctx, dto.CreateParentRequest{
			Name:          item.Name,
			Email:         item.Email,
			UserID:        item.UserID,
			ContactNumber: item.ContactNumber,
		}, seedActor)
		if err != nil {
			return report, fmt.Errorf("parents[%d] (%s): %w", i, item.Ref, err)
		}
		parentIDs[item.Ref] = parent.ID
		report.Parents++
	}

	studentIDs := make(map[string]uint, len(fixture.Students))
	for i, item := range fixture.Students {
		if _, ok := studentIDs[item.Ref]; ok {
			return report, fmt.Errorf("students[%d]: duplicate ref %q", i, item.Ref)
		}
		student, err := s.roster.CreateStudent(ctx, dto.CreateStudentRequest{
			Name:    item.Name,
			Email:   item.Email,
			UserID:  item.UserID,
			Section: item.Section,
		}, seedActor)
		if err != nil {
			return report, fmt.Errorf("students[%d] (%s): %w", i, item.Ref, err)
		}
		studentIDs[item.Ref] = student.ID
		report.Students++

		if item.Parent != "" {
			parentID, ok := parentIDs[item.Parent]
			if !ok {
				return report, fmt.Errorf("students[%d]: unknown parent ref %q", i, item.Parent)
			}
			if _, err := s.roster.LinkParent(ctx, student.ID, dto.LinkParentRequest{ParentID: parentID}, seedActor); err != nil {
				return report, fmt.Errorf("students[%d] (%s): link parent: %w", i, item.Ref, err)
			}
		}
	}

	subjectIDs := make(map[string]uint, len(fixture.Subjects))
	for i, item := range fixture.Subjects {
		if _, ok := subjectIDs[item.Ref]; ok {
			return report, fmt.Errorf("subjects[%d]: duplicate ref %q", i, item.Ref)
		}
		var teacherID *uint
		if item.Teacher != "" {
			id, ok := teacherIDs[item.Teacher]
			if !ok {
				return report, fmt.Errorf("subjects[%d]: unknown teacher ref %q", i, item.Teacher)
			}
			teacherID = &id
		}
		subject, err := s.roster.CreateSubject(ctx, dto.CreateSubjectRequest{
			Code:      item.Code,
			Name:      item.Name,
			Section:   item.Section,
			TeacherID: teacherID,
		}, seedActor)
		if err != nil {
			return report, fmt.Errorf("subjects[%d] (%s): %w", i, item.Ref, err)
		}
		subjectIDs[item.Ref] = subject.ID
		report.Subjects++
	}

	for i, item := range fixture.Attendance {
		studentID, subjectID, err := resolveSeedPair(studentIDs, subjectIDs, item.Student, item.Subject)
		if err != nil {
			return report, fmt.Errorf("attendance[%d]: %w", i, err)
		}
		date, err := time.Parse(alertDateLayout, item.Date)
		if err != nil {
			return report, fmt.Errorf("attendance[%d]: invalid date: %w", i, err)
		}
		record := models.AttendanceRecord{
			StudentID: studentID,
			SubjectID: subjectID,
			Date:      date.UTC(),
			Status:    item.Status,
		}
		if _, _, err := s.attendance.Upsert(ctx, &record); err != nil {
			return report, fmt.Errorf("attendance[%d]: %w", i, err)
		}
		report.Attendance++
	}

	for i, item := range fixture.Grades {
		studentID, subjectID, err := resolveSeedPair(studentIDs, subjectIDs, item.Student, item.Subject)
		if err != nil {
			return report, fmt.Errorf("grades[%d]: %w", i, err)
		}
		term := item.Term
		if term == "" {
			term = models.DefaultTerm
		}
		record := models.GradeRecord{
			StudentID: studentID,
			SubjectID: subjectID,
			Term:      term,
			Score:     item.Score,
		}
		if _, _, err := s.grades.Upsert(ctx, &record); err != nil {
			return report, fmt.Errorf("grades[%d]: %w", i, err)
		}
		report.Grades++
	}

	s.logger.Info().
		Int("teachers", report.Teachers).
		Int("parents", report.Parents).
		Int("students", report.Students).
		Int("subjects", report.Subjects).
		Int("attendance", report.Attendance).
		Int("grades", report.Grades).
		Msg("fixture loaded")

	return report, nil
}

func resolveSeedPair(students, subjects map[string]uint, studentRef, subjectRef string) (uint, uint, error) {
	studentID, ok := students[studentRef]
	if !ok {
		return 0, 0, fmt.Errorf("unknown student ref %q", studentRef)
	}
	subjectID, ok := subjects[subjectRef]
	if !ok {
		return 0, 0, fmt.Errorf("unknown subject ref %q", subjectRef)
	}
	return studentID, subjectID, nil
}
