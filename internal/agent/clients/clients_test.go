package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"AgentTree/internal/agent/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPublishClient struct {
	mock.Mock
}

func (m *mockPublishClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return args.Get(0).(*redis.IntCmd)
}

func transition(path string, to *domain.State) domain.Transition {
	return domain.Transition{AgentID: "id-" + path, Name: path, Path: path, From: domain.Undefined, To: to}
}

func TestPublisherPublishesJSON(t *testing.T) {
	client := &mockPublishClient{}
	var (
		mu       sync.Mutex
		payloads [][]byte
	)
	client.On("Publish", mock.Anything, "alerts", mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, args.Get(2).([]byte))
		}).
		Return(redis.NewIntResult(1, nil))

	p := NewPublisher(client, PublisherConfig{Channel: "alerts"}, quietLogger())

	down := domain.NewState(domain.LevelCritical, "probe timeout", domain.WithLink("https://runbook"))
	p.OnTransition(transition("/net/web", down))
	require.NoError(t, p.Close(context.Background()))

	client.AssertNumberOfCalls(t, "Publish", 1)
	require.Len(t, payloads, 1)

	var ev TransitionEvent
	require.NoError(t, json.Unmarshal(payloads[0], &ev))
	assert.Equal(t, "/net/web", ev.Path)
	assert.Equal(t, "undefined", ev.From)
	assert.Equal(t, "critical", ev.To)
	assert.Equal(t, "probe timeout", ev.Summary)
	assert.Equal(t, "https://runbook", ev.Link)
}

func TestPublisherSkipsQuietStates(t *testing.T) {
	client := &mockPublishClient{}
	p := NewPublisher(client, PublisherConfig{}, quietLogger())

	quiet := domain.NewState(domain.LevelReady, "ok", domain.WithNotify(false))
	p.OnTransition(transition("/a", quiet))
	require.NoError(t, p.Close(context.Background()))

	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublisherQueue(t *testing.T) {
	client := &mockPublishClient{}
	release := make(chan time.Time)
	client.On("Publish", mock.Anything, DefaultChannel, mock.Anything).
		WaitUntil(release).
		Return(redis.NewIntResult(1, nil))

	p := NewPublisher(client, PublisherConfig{Buffer: 1}, quietLogger())
	ev := TransitionEvent{Path: "/a"}

	// The first event is taken by the publishing goroutine and blocks there.
	require.NoError(t, p.Enqueue(ev))
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, p.Enqueue(ev))
	assert.ErrorIs(t, p.Enqueue(ev), ErrQueueFull)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.ErrorIs(t, p.Enqueue(ev), ErrPublisherClosed)
	client.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPublisherLogsFailures(t *testing.T) {
	client := &mockPublishClient{}
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(redis.NewIntResult(0, errors.New("connection refused")))

	var buf bytes.Buffer
	p := NewPublisher(client, PublisherConfig{}, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, p.Enqueue(TransitionEvent{Path: "/a"}))
	require.NoError(t, p.Close(context.Background()))

	assert.Contains(t, buf.String(), "failed to publish transition")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogListener(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.OnTransition(transition("/a", domain.NewState(domain.LevelError, "broken")))
	l.OnTransition(transition("/b", domain.NewState(domain.LevelReady, "quiet", domain.WithNotify(false))))
	l.OnTransition(transition("/c", domain.NewState(domain.LevelReady, "ok")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "WARN", first["level"])
	assert.Equal(t, "/a", first["agent"])
	assert.Equal(t, "error", first["to"])

	assert.Contains(t, string(lines[1]), `"agent":"/c"`)
}
