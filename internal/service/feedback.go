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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

var (
	// ErrFeedbackNotFound indicates the entry does not exist.
	ErrFeedbackNotFound = errors.New("feedback not found")
	// ErrFeedbackForbidden indicates the viewer is neither admin nor author.
	ErrFeedbackForbidden = errors.New("feedback access denied")
)

// FeedbackService exposes the feedback desk: any signed-in role can file an
// entry, admins triage and respond, authors get notified through the same
// store the engine writes to.
type FeedbackService interface {
	Submit(ctx context.Context, userID, role string, payload dto.SubmitFeedbackRequest) (dto.FeedbackResponse, error)
	List(ctx context.Context, query dto.FeedbackListQuery) ([]dto.FeedbackResponse, int64, error)
	Get(ctx context.Context, id uint, viewerID, viewerRole string) (dto.FeedbackResponse, error)
	Respond(ctx context.Context, id uint, payload dto.FeedbackRespondRequest, actor ActivityActor) (dto.FeedbackResponse, error)
}

type feedbackService struct {
	repo      repository.FeedbackRepository
	deliverer NotificationDeliverer
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewFeedbackService constructs the feedback desk service.
func NewFeedbackService(
	repo repository.FeedbackRepository,
	deliverer NotificationDeliverer,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) FeedbackService {
	return &feedbackService{
		repo:      repo,
		deliverer: deliverer,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "feedback_service").Logger(),
		tracer:    otel.Tracer("github.com/edulog/edulog-go-api/internal/service/feedback"),
		now:       time.Now,
	}
}

func (s *feedbackService) Submit(ctx context.Context, userID, role string, payload dto.SubmitFeedbackRequest) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}

	subject := strings.TrimSpace(s.sanitizer.Sanitize(payload.Subject))
	message := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if subject == "" || message == "" {
		return dto.FeedbackResponse{}, errors.New("feedback content empty after sanitization")
	}

	feedbackType := payload.Type
	if feedbackType == "" {
		feedbackType = models.FeedbackGeneral
	}

	ctx, span := s.tracer.Start(ctx, "feedback.submit", trace.WithAttributes(
		attribute.String("feedback.type", feedbackType),
		attribute.Int("feedback.rating", payload.Rating),
		attribute.Bool("feedback.anonymous", payload.Anonymous),
	))
	defer span.End()

	entry := models.Feedback{
		UserID:    userID,
		Role:      role,
		Type:      feedbackType,
		Rating:    payload.Rating,
		Subject:   subject,
		Message:   message,
		Anonymous: payload.Anonymous,
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		span.RecordError(err)
		return dto.FeedbackResponse{}, err
	}

	s.recordActivity(ctx, ActivityActor{ID: userID, Role: role}, "feedback.submitted", entry.ID, map[string]interface{}{
		"type":   entry.Type,
		"rating": entry.Rating,
	})

	return dto.NewFeedbackResponse(entry, true), nil
}

func (s *feedbackService) List(ctx context.Context, query dto.FeedbackListQuery) ([]dto.FeedbackResponse, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, err
	}

	entries, total, err := s.repo.List(ctx, repository.FeedbackFilter{
		Type:   query.Type,
		Rating: query.Rating,
		Unread: query.Unread,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	return dto.NewFeedbackResponseSlice(entries, false), total, nil
}

func (s *feedbackService) Get(ctx context.Context, id uint, viewerID, viewerRole string) (dto.FeedbackResponse, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FeedbackResponse{}, ErrFeedbackNotFound
		}
		return dto.FeedbackResponse{}, err
	}

	isAuthor := entry.UserID == viewerID
	if viewerRole != models.RoleAdmin && !isAuthor {
		return dto.FeedbackResponse{}, ErrFeedbackForbidden
	}

	if viewerRole == models.RoleAdmin && !entry.Read {
		if err := s.repo.MarkRead(ctx, entry.ID); err != nil {
			s.logger.Warn().Err(err).Uint("feedback_id", entry.ID).Msg("failed to mark feedback read")
		} else {
			entry.Read = true
		}
	}

	return dto.NewFeedbackResponse(entry, isAuthor), nil
}

func (s *feedbackService) Respond(ctx context.Context, id uint, payload dto.FeedbackRespondRequest, actor ActivityActor) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}

	response := strings.TrimSpace(s.sanitizer.Sanitize(payload.Response))
	if response == "" {
		return dto.FeedbackResponse{}, errors.New("response empty after sanitization")
	}

	ctx, span := s.tracer.Start(ctx, "feedback.respond", trace.WithAttributes(
		attribute.Int64("feedback.id", int64(id)),
	))
	defer span.End()

	entry, err := s.repo.Respond(ctx, id, response, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FeedbackResponse{}, ErrFeedbackNotFound
		}
		span.RecordError(err)
		return dto.FeedbackResponse{}, err
	}

	s.notifyAuthor(ctx, entry)
	s.recordActivity(ctx, actor, "feedback.responded", entry.ID, map[string]interface{}{
		"type": entry.Type,
	})

	return dto.NewFeedbackResponse(entry, false), nil
}

// notifyAuthor routes the response notice through the engine's store so the
// author sees it in the same feed as performance alerts. Failures are logged,
// never surfaced: the response itself is already persisted.
func (s *feedbackService) notifyAuthor(ctx context.Context, entry models.Feedback) {
	if s.deliverer == nil {
		return
	}

	notification := models.Notification{
		UserID:   entry.UserID,
		Role:     entry.Role,
		Kind:     models.KindGeneral,
		Message:  fmt.Sprintf("Your feedback %q has received a response.", entry.Subject),
		DedupKey: fmt.Sprintf("feedback_response_%d", entry.ID),
		Metadata: datatypes.JSONMap{"feedback_id": entry.ID},
	}
	if _, err := s.deliverer.Deliver(ctx, notification); err != nil {
		s.logger.Warn().Err(err).Uint("feedback_id", entry.ID).Msg("failed to notify feedback author")
	}
}

func (s *feedbackService) recordActivity(ctx context.Context, actor ActivityActor, action string, entryID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := entryID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "feedback",
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity entry")
	}
}
