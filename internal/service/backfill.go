package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/edulog/edulog-go-api/internal/repository"
)

// DefaultBackfillPageSize bounds how many rows one backfill query pulls.
const DefaultBackfillPageSize = 200

// PhaseReport aggregates one backfill phase. Failed counts items whose
// evaluation errored; Skipped counts items that evaluated cleanly but had
// nothing to raise.
type PhaseReport struct {
	Processed  int `json:"processed"`
	Created    int `json:"created"`
	Suppressed int `json:"suppressed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (r *PhaseReport) observe(outcome AlertOutcome, err error) {
	r.Processed++
	if err != nil {
		r.Failed++
		return
	}
	if outcome.Created == 0 && outcome.Suppressed == 0 {
		r.Skipped++
		return
	}
	r.Created += outcome.Created
	r.Suppressed += outcome.Suppressed
}

// BackfillService re-runs the engine over records that already exist. Every
// phase is best-effort: item failures are logged and counted, only a paging
// failure aborts a phase.
type BackfillService interface {
	// BackfillAttendance raises the absent/late alert for every stored
	// alertable record.
	BackfillAttendance(ctx context.Context) (PhaseReport, error)
	// BackfillPerformance evaluates every (student, subject) pair that has
	// attendance or grade records.
	BackfillPerformance(ctx context.Context) (PhaseReport, error)
	// BackfillStreaks runs the consecutive-absence check for every pair with
	// attendance records.
	BackfillStreaks(ctx context.Context) (PhaseReport, error)
}

type backfillService struct {
	attendance repository.AttendanceRepository
	grades     repository.GradeRepository
	alerts     AlertService
	pageSize   int
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewBackfillService constructs the batch driver.
func NewBackfillService(
	attendance repository.AttendanceRepository,
	grades repository.GradeRepository,
	alerts AlertService,
	pageSize int,
	logger zerolog.Logger,
) BackfillService {
	if pageSize <= 0 {
		pageSize = DefaultBackfillPageSize
	}

	return &backfillService{
		attendance: attendance,
		grades:     grades,
		alerts:     alerts,
		pageSize:   pageSize,
		logger:     logger.With().Str("component", "backfill_service").Logger(),
		tracer:     otel.Tracer("github.com/edulog/edulog-go-api/internal/service/backfill"),
	}
}

func (s *backfillService) BackfillAttendance(ctx context.Context) (PhaseReport, error) {
	ctx, span := s.tracer.Start(ctx, "backfill.attendance")
	defer span.End()

	var report PhaseReport
	offset := 0
	for {
		records, err := s.attendance.PageAlertable(ctx, offset, s.pageSize)
		if err != nil {
			span.RecordError(err)
			return report, fmt.Errorf("page alertable records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			outcome, err := s.alerts.NotifyAttendanceMark(ctx, record)
			report.observe(outcome, err)
			if err != nil {
				s.logger.Warn().Err(err).
					Uint("student_id", record.StudentID).
					Uint("subject_id", record.SubjectID).
					Str("date", record.Date.Format(alertDateLayout)).
					Msg("attendance backfill item failed")
			}
		}
		offset += len(records)
	}

	s.finishPhase(span, "attendance", report)
	return report, nil
}

func (s *backfillService) BackfillPerformance(ctx context.Context) (PhaseReport, error) {
	ctx, span := s.tracer.Start(ctx, "backfill.performance")
	defer span.End()

	var report PhaseReport
	pairs, err := s.collectPairs(ctx)
	if err != nil {
		span.RecordError(err)
		return report, err
	}

	for _, pair := range pairs {
		outcome, err := s.alerts.EvaluatePerformance(ctx, pair.StudentID, pair.SubjectID)
		report.observe(outcome, err)
		if err != nil {
			s.logger.Warn().Err(err).
				Uint("student_id", pair.StudentID).
				Uint("subject_id", pair.SubjectID).
				Msg("performance backfill item failed")
		}
	}

	s.finishPhase(span, "performance", report)
	return report, nil
}

func (s *backfillService) BackfillStreaks(ctx context.Context) (PhaseReport, error) {
	ctx, span := s.tracer.Start(ctx, "backfill.streaks")
	defer span.End()

	var report PhaseReport
	offset := 0
	for {
		pairs, err := s.attendance.DistinctPairs(ctx, offset, s.pageSize)
		if err != nil {
			span.RecordError(err)
			return report, fmt.Errorf("page attendance pairs: %w", err)
		}
		if len(pairs) == 0 {
			break
		}

		for _, pair := range pairs {
			outcome, err := s.alerts.CheckConsecutiveAbsences(ctx, pair.StudentID, pair.SubjectID)
			report.observe(outcome, err)
			if err != nil {
				s.logger.Warn().Err(err).
					Uint("student_id", pair.StudentID).
					Uint("subject_id", pair.SubjectID).
					Msg("streak backfill item failed")
			}
		}
		offset += len(pairs)
	}

	s.finishPhase(span, "streaks", report)
	return report, nil
}

// collectPairs unions the pairs seen in attendance and grade records,
// preserving first-seen order so re-runs evaluate in a stable sequence.
func (s *backfillService) collectPairs(ctx context.Context) ([]repository.StudentSubjectPair, error) {
	seen := make(map[repository.StudentSubjectPair]struct{})
	var pairs []repository.StudentSubjectPair

	sources := []struct {
		name string
		page func(context.Context, int, int) ([]repository.StudentSubjectPair, error)
	}{
		{name: "attendance", page: s.attendance.DistinctPairs},
		{name: "grades", page: s.grades.DistinctPairs},
	}

	for _, source := range sources {
		offset := 0
		for {
			batch, err := source.page(ctx, offset, s.pageSize)
			if err != nil {
				return nil, fmt.Errorf("page %s pairs: %w", source.name, err)
			}
			if len(batch) == 0 {
				break
			}

			for _, pair := range batch {
				if _, ok := seen[pair]; ok {
					continue
				}
				seen[pair] = struct{}{}
				pairs = append(pairs, pair)
			}
			offset += len(batch)
		}
	}

	return pairs, nil
}

func (s *backfillService) finishPhase(span trace.Span, phase string, report PhaseReport) {
	span.SetAttributes(
		attribute.Int("backfill.processed", report.Processed),
		attribute.Int("backfill.created", report.Created),
		attribute.Int("backfill.suppressed", report.Suppressed),
		attribute.Int("backfill.failed", report.Failed),
	)
	s.logger.Info().
		Str("phase", phase).
		Int("processed", report.Processed).
		Int("created", report.Created).
		Int("suppressed", report.Suppressed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("backfill phase completed")
}
