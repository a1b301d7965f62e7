package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/observability"
	"github.com/edulog/edulog-go-api/internal/repository"
)

const (
	notificationBufferSize = 16
	notificationQueueGroup = "edulog-notifications"
)

// ErrNotificationNotFound indicates the notification does not exist or does
// not belong to the requesting user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService stores engine alerts idempotently and streams them to
// end users via SSE, propagating across nodes through redis and NATS.
type NotificationService interface {
	// Deliver stores the notification unless its dedup key already exists,
	// reporting whether a row was created. Created notifications fan out to
	// live subscribers on every node.
	Deliver(ctx context.Context, notification models.Notification) (bool, error)
	List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	broker       *notificationBroker
	nodeID       string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. The redis client
// and NATS connection are both optional; with neither the service still works
// within a single node.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/edulog/edulog-go-api/internal/service/notifications"),
		sanitizer:    bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Deliver(ctx context.Context, notification models.Notification) (bool, error) {
	if strings.TrimSpace(notification.UserID) == "" {
		return false, errors.New("notification user id is required")
	}
	if strings.TrimSpace(notification.DedupKey) == "" {
		return false, errors.New("notification dedup key is required")
	}
	if notification.Kind == "" {
		notification.Kind = models.KindGeneral
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(notification.Message))
	if cleanMessage == "" {
		return false, errors.New("notification message empty after sanitization")
	}
	notification.Message = cleanMessage

	ctx, span := s.tracer.Start(ctx, "notifications.deliver", trace.WithAttributes(
		attribute.String("notification.user_id", notification.UserID),
		attribute.String("notification.kind", notification.Kind),
		attribute.String("notification.dedup_key", notification.DedupKey),
	))
	defer span.End()

	created, err := s.repo.CreateIfAbsent(ctx, &notification)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("notification.created", created))

	if !created {
		observability.NotificationsSuppressed().WithLabelValues(notification.Kind).Inc()
		return false, nil
	}
	observability.NotificationsCreated().WithLabelValues(notification.Kind).Inc()

	response := dto.NewNotificationResponse(notification)
	s.broker.broadcast(response.UserID, response)
	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Str("dedup_key", notification.DedupKey).Msg("failed to propagate notification to peers")
	}

	return true, nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, errors.New("user id is required")
	}

	notifications, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return dto.NewNotificationResponseSlice(notifications), total, nil
}

func (s *notificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("user id is required")
	}
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.String("notification.user_id", userID),
		attribute.Int64("notification.id", int64(id)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("user id is required")
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, notificationQueueGroup, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	notification := event.Notification
	if notification.Kind == "" {
		notification.Kind = models.KindGeneral
	}

	s.broker.broadcast(notification.UserID, notification)
}

func (b *notificationBroker) subscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID string, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[userID]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
