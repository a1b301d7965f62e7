package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/observability"
)

const (
	feedSendBufferSize = 32
	feedPingInterval   = 30 * time.Second
	feedQueueGroup     = "edulog-attendance"
)

// AttendanceFeedOptions wraps metadata extracted during the HTTP upgrade.
type AttendanceFeedOptions struct {
	UserID        string
	Role          string
	SubjectID     uint
	CorrelationID string
	Context       context.Context
}

// AttendanceFeedService streams attendance marks to websocket watchers of a
// subject, so an open register page sees marks land in real time.
type AttendanceFeedService interface {
	ServeConnection(conn *websocket.Conn, opts AttendanceFeedOptions)
	Broadcast(ctx context.Context, event dto.AttendanceFeedEvent)
	Start(ctx context.Context)
}

type attendanceFeedService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	hub          *feedHub
	nodeID       string
}

type feedEvent struct {
	Source string                  `json:"source"`
	Event  dto.AttendanceFeedEvent `json:"event"`
	SentAt time.Time               `json:"sent_at"`
}

// feedHub keeps track of active websocket watchers per subject.
type feedHub struct {
	mu       sync.RWMutex
	subjects map[uint]map[*feedClient]struct{}
	log      zerolog.Logger
}

type feedClient struct {
	conn    *websocket.Conn
	send    chan dto.AttendanceFeedEvent
	options AttendanceFeedOptions
	service *attendanceFeedService
	closed  chan struct{}
	once    sync.Once
}

// NewAttendanceFeedService creates the live attendance feed. Redis and NATS
// are optional; without them events stay within the node.
func NewAttendanceFeedService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AttendanceFeedService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":attendance"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".attendance"
	}

	return &attendanceFeedService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "attendance_feed").Logger(),
		hub: &feedHub{
			subjects: make(map[uint]map[*feedClient]struct{}),
			log:      logger.With().Str("component", "attendance_feed_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *attendanceFeedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *attendanceFeedService) ServeConnection(conn *websocket.Conn, opts AttendanceFeedOptions) {
	client := &feedClient{
		conn:    conn,
		send:    make(chan dto.AttendanceFeedEvent, feedSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.AttendanceFeedClientsActive().Inc()

	go client.writer()
	client.reader()
}

func (s *attendanceFeedService) Broadcast(ctx context.Context, event dto.AttendanceFeedEvent) {
	s.hub.broadcast(event.SubjectID, event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("subject_id", event.SubjectID).Msg("failed to propagate attendance event to peers")
	}
}

func (s *attendanceFeedService) publish(ctx context.Context, event dto.AttendanceFeedEvent) error {
	wrapped := feedEvent{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(wrapped)
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

func (s *attendanceFeedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("attendance feed redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *attendanceFeedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, feedQueueGroup, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats attendance subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain attendance nats subscription")
		}
	}()
}

func (s *attendanceFeedService) handleEvent(payload []byte) {
	var event feedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid attendance feed payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Event.SubjectID, event.Event)
}

func (h *feedHub) register(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subjectID := client.options.SubjectID
	if _, exists := h.subjects[subjectID]; !exists {
		h.subjects[subjectID] = make(map[*feedClient]struct{})
	}
	h.subjects[subjectID][client] = struct{}{}
	h.log.Debug().Uint("subject_id", subjectID).Str("user_id", client.options.UserID).Msg("attendance watcher connected")
}

func (h *feedHub) unregister(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subjectID := client.options.SubjectID
	if clients, ok := h.subjects[subjectID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subjects, subjectID)
		}
	}
	h.log.Debug().Uint("subject_id", subjectID).Str("user_id", client.options.UserID).Msg("attendance watcher disconnected")
}

func (h *feedHub) broadcast(subjectID uint, event dto.AttendanceFeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.subjects[subjectID]
	for client := range clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("subject_id", subjectID).Str("user_id", client.options.UserID).Msg("dropping attendance event for slow watcher")
		}
	}
}

// reader drains the connection so pings and close frames are processed.
// Watchers never send payloads of their own.
func (c *feedClient) reader() {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("attendance feed read loop ended")
			return
		}
	}
}

func (c *feedClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("attendance feed write loop terminated")
				return
			}
		case <-time.After(feedPingInterval):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("attendance feed ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.AttendanceFeedClientsActive().Dec()
		_ = c.conn.Close()
	})
}
