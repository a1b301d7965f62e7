package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
)

func newFeedService(redisClient *redis.Client) *attendanceFeedService {
	svc := NewAttendanceFeedService(redisClient, "edulog", nil, testLogger())
	return svc.(*attendanceFeedService)
}

// watcherFor registers a hub client without a websocket connection; tests read
// the send channel directly instead of running the write pump.
func watcherFor(svc *attendanceFeedService, subjectID uint, buffer int) *feedClient {
	client := &feedClient{
		send:    make(chan dto.AttendanceFeedEvent, buffer),
		options: AttendanceFeedOptions{UserID: "usr-teacher-1", Role: models.RoleTeacher, SubjectID: subjectID},
		service: svc,
		closed:  make(chan struct{}),
	}
	svc.hub.register(client)
	return client
}

func feedMark(subjectID uint) dto.AttendanceFeedEvent {
	return dto.AttendanceFeedEvent{
		SubjectID:   subjectID,
		StudentID:   1,
		StudentName: "Juan Cruz",
		Date:        "2025-06-03",
		Status:      models.AttendanceAbsent,
		Created:     true,
		MarkedAt:    june(3),
	}
}

func TestFeedRoutesEventsBySubject(t *testing.T) {
	svc := newFeedService(nil)
	mathWatcher := watcherFor(svc, 1, 4)
	scienceWatcher := watcherFor(svc, 2, 4)

	svc.Broadcast(context.Background(), feedMark(1))

	select {
	case event := <-mathWatcher.send:
		require.Equal(t, uint(1), event.SubjectID)
		require.Equal(t, "Juan Cruz", event.StudentName)
	default:
		t.Fatal("expected the math watcher to receive the event")
	}
	require.Empty(t, scienceWatcher.send)

	svc.hub.unregister(mathWatcher)
	svc.Broadcast(context.Background(), feedMark(1))
	require.Empty(t, mathWatcher.send)
}

func TestFeedDropsEventsForSlowWatcher(t *testing.T) {
	svc := newFeedService(nil)
	slow := watcherFor(svc, 1, 1)

	svc.Broadcast(context.Background(), feedMark(1))
	svc.Broadcast(context.Background(), feedMark(1))

	// The second event is dropped rather than blocking the register.
	require.Len(t, slow.send, 1)
}

func TestFeedHandleEventSkipsOwnNode(t *testing.T) {
	svc := newFeedService(nil)
	watcher := watcherFor(svc, 1, 4)

	own, err := json.Marshal(feedEvent{Source: svc.nodeID, Event: feedMark(1)})
	require.NoError(t, err)
	svc.handleEvent(own)
	require.Empty(t, watcher.send)

	foreign, err := json.Marshal(feedEvent{Source: "another-node", Event: feedMark(1)})
	require.NoError(t, err)
	svc.handleEvent(foreign)
	require.Len(t, watcher.send, 1)
}

func TestFeedPublishesEventToRedis(t *testing.T) {
	server := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	svc := newFeedService(redisClient)

	pubsub := redisClient.Subscribe(context.Background(), "edulog:attendance")
	t.Cleanup(func() { _ = pubsub.Close() })
	_, err := pubsub.Receive(context.Background())
	require.NoError(t, err)

	svc.Broadcast(context.Background(), feedMark(7))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var wrapped feedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &wrapped))
	require.Equal(t, svc.nodeID, wrapped.Source)
	require.Equal(t, uint(7), wrapped.Event.SubjectID)
	require.Equal(t, "Juan Cruz", wrapped.Event.StudentName)
}

func TestFeedRedisRelayBetweenNodes(t *testing.T) {
	server := miniredis.RunT(t)

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = clientA.Close() })
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = clientB.Close() })

	nodeA := newFeedService(clientA)
	nodeB := newFeedService(clientB)

	watcher := watcherFor(nodeB, 7, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.Start(ctx)

	// Junk publishes double as a readiness probe: handleEvent drops them and
	// the return value reports how many consumers are attached.
	require.Eventually(t, func() bool {
		return server.Publish("edulog:attendance", "") > 0
	}, 5*time.Second, 10*time.Millisecond)

	nodeA.Broadcast(context.Background(), feedMark(7))

	select {
	case event := <-watcher.send:
		require.Equal(t, uint(7), event.SubjectID)
		require.Equal(t, models.AttendanceAbsent, event.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("expected the relayed event to reach the watcher on the other node")
	}
}
