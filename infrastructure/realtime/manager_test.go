package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer is a minimal collaboration server
type testServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	headers []http.Header
	queries []string
	refuse  atomic.Bool

	received chan events.Envelope
	accepted chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		received: make(chan events.Envelope, 16),
		accepted: make(chan *websocket.Conn, 4),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.refuse.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.headers = append(s.headers, r.Header.Clone())
		s.queries = append(s.queries, r.URL.RawQuery)
		s.mu.Unlock()
		s.accepted <- conn

		for {
			var env events.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			s.received <- env
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// recorder collects dispatched events
type recorder struct {
	ch chan events.Envelope
}

func newRecorder(bus *Bus) *recorder {
	r := &recorder{ch: make(chan events.Envelope, 32)}
	bus.Register(AnyEvent, func(env events.Envelope) { r.ch <- env })
	return r
}

func (r *recorder) next(t *testing.T) events.Envelope {
	t.Helper()
	select {
	case env := <-r.ch:
		return env
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Envelope{}
	}
}

func (r *recorder) await(t *testing.T, eventType string) events.Envelope {
	t.Helper()
	for {
		env := r.next(t)
		if env.Type == eventType {
			return env
		}
	}
}

func waitConn(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.accepted:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("server never accepted a connection")
		return nil
	}
}

func newTestManager(s *testServer, attempts int) (*Manager, *recorder) {
	bus := NewBus()
	rec := newRecorder(bus)
	m := NewManager(Config{
		URL:                  s.wsURL(),
		MaxReconnectAttempts: attempts,
		ReconnectInitial:     10 * time.Millisecond,
		ReconnectMax:         20 * time.Millisecond,
	}, bus, nil, nil)
	return m, rec
}

func TestManager_ConnectSuppliesToken(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 0)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok-123"))
	waitConn(t, s)

	assert.Equal(t, events.Connect, rec.next(t).Type)
	assert.True(t, m.IsConnected())
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "Bearer tok-123", s.headers[0].Get("Authorization"))
	assert.Equal(t, "token=tok-123", s.queries[0])
}

func TestManager_EmitAndReceiveInOrder(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 0)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok"))
	conn := waitConn(t, s)
	rec.await(t, events.Connect)

	require.NoError(t, m.Emit(events.JoinProject, events.ProjectPayload{ProjectID: "p1"}))
	select {
	case env := <-s.received:
		assert.Equal(t, events.JoinProject, env.Type)
		var p events.ProjectPayload
		require.NoError(t, env.Decode(&p))
		assert.Equal(t, "p1", p.ProjectID)
		assert.NotZero(t, env.Timestamp)
	case <-time.After(3 * time.Second):
		t.Fatal("server never received join_project")
	}

	for _, typ := range []string{events.UserJoinedProject, events.CursorUpdate, events.UserLeftProject} {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": typ, "data": map[string]string{"userId": "u2"}}))
	}
	assert.Equal(t, events.UserJoinedProject, rec.next(t).Type)
	assert.Equal(t, events.CursorUpdate, rec.next(t).Type)
	assert.Equal(t, events.UserLeftProject, rec.next(t).Type)
}

func TestManager_EmitWhileDisconnected(t *testing.T) {
	s := newTestServer(t)
	m, _ := newTestManager(s, 0)
	defer m.Close()

	err := m.Emit(events.JoinProject, events.ProjectPayload{ProjectID: "p1"})

	assert.True(t, pkgerrors.IsTransport(err))
}

func TestManager_ConnectFailureRaisesDisconnect(t *testing.T) {
	s := newTestServer(t)
	s.refuse.Store(true)
	m, rec := newTestManager(s, 0)
	defer m.Close()

	err := m.Connect(context.Background(), "tok")

	assert.True(t, pkgerrors.IsTransport(err))
	env := rec.next(t)
	assert.Equal(t, events.Disconnect, env.Type)
	var p events.DisconnectPayload
	require.NoError(t, env.Decode(&p))
	assert.NotEmpty(t, p.Reason)
	assert.False(t, m.IsConnected())
}

func TestManager_ReconnectsAfterDrop(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 3)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok"))
	first := waitConn(t, s)
	rec.await(t, events.Connect)

	first.Close()

	assert.Equal(t, events.Disconnect, rec.await(t, events.Disconnect).Type)
	attempt := rec.await(t, events.ReconnectAttempt)
	var p events.ReconnectPayload
	require.NoError(t, attempt.Decode(&p))
	assert.Equal(t, 1, p.Attempt)
	rec.await(t, events.Connect)
	waitConn(t, s)

	status := m.Status()
	assert.True(t, status.Connected)
	assert.False(t, status.Reconnecting)
	s.mu.Lock()
	assert.Equal(t, "Bearer tok", s.headers[1].Get("Authorization"))
	s.mu.Unlock()
}

func TestManager_GivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 2)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok"))
	first := waitConn(t, s)
	rec.await(t, events.Connect)

	s.refuse.Store(true)
	first.Close()

	rec.await(t, events.Disconnect)
	rec.await(t, events.ReconnectAttempt)
	rec.await(t, events.ReconnectAttempt)
	failed := rec.await(t, events.ReconnectFailed)
	var p events.ReconnectPayload
	require.NoError(t, failed.Decode(&p))
	assert.Equal(t, 2, p.Attempt)
	assert.NotEmpty(t, p.Error)

	status := m.Status()
	assert.False(t, status.Connected)
	assert.False(t, status.Reconnecting)
}

func TestManager_DisconnectDoesNotReconnect(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 3)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok"))
	waitConn(t, s)
	rec.await(t, events.Connect)

	m.Disconnect()

	env := rec.await(t, events.Disconnect)
	var p events.DisconnectPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, events.ReasonClientDisconnect, p.Reason)
	assert.False(t, m.IsConnected())

	select {
	case env := <-rec.ch:
		t.Fatalf("unexpected event after disconnect: %s", env.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_ConnectReplacesLiveChannel(t *testing.T) {
	s := newTestServer(t)
	m, rec := newTestManager(s, 3)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "tok"))
	waitConn(t, s)
	rec.await(t, events.Connect)

	require.NoError(t, m.Connect(context.Background(), "tok2"))
	waitConn(t, s)

	env := rec.next(t)
	assert.Equal(t, events.Disconnect, env.Type)
	var p events.DisconnectPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, events.ReasonReplaced, p.Reason)
	assert.Equal(t, events.Connect, rec.next(t).Type)
	assert.True(t, m.IsConnected())
}

func TestManager_FirstDialFailureKeepsRetrying(t *testing.T) {
	s := newTestServer(t)
	s.refuse.Store(true)
	m, rec := newTestManager(s, 5)
	defer m.Close()

	err := m.Connect(context.Background(), "tok")
	require.True(t, pkgerrors.IsTransport(err))
	rec.await(t, events.Disconnect)

	s.refuse.Store(false)

	rec.await(t, events.ReconnectAttempt)
	rec.await(t, events.Connect)
	waitConn(t, s)
	assert.True(t, m.IsConnected())
	s.mu.Lock()
	assert.Equal(t, "Bearer tok", s.headers[0].Get("Authorization"))
	s.mu.Unlock()
}

func TestManager_FirstDialFailureWithoutRetries(t *testing.T) {
	s := newTestServer(t)
	s.refuse.Store(true)
	m, rec := newTestManager(s, 0)
	defer m.Close()

	require.Error(t, m.Connect(context.Background(), "tok"))
	rec.await(t, events.Disconnect)
	s.refuse.Store(false)

	select {
	case env := <-rec.ch:
		t.Fatalf("unexpected event: %s", env.Type)
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, m.IsConnected())
}

func TestManager_FramesFromSupersededChannelAreDropped(t *testing.T) {
	bus := NewBus()
	rec := newRecorder(bus)
	m := NewManager(Config{URL: "ws://127.0.0.1:1"}, bus, nil, nil)
	defer m.Close()

	m.mu.Lock()
	m.gen = 2
	m.mu.Unlock()
	env := events.Envelope{Type: events.UserJoinedProject, Timestamp: 1}

	current, handled := m.deliver(1, env)
	assert.False(t, current)
	assert.False(t, handled)
	select {
	case got := <-rec.ch:
		t.Fatalf("stale frame delivered: %s", got.Type)
	default:
	}

	current, handled = m.deliver(2, env)
	assert.True(t, current)
	assert.True(t, handled)
	assert.Equal(t, events.UserJoinedProject, rec.next(t).Type)
}
