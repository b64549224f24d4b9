// Package realtime owns the duplex channel to the collaboration server.
//
// A Manager holds at most one live websocket. Inbound frames are decoded
// into events.Envelope values and dispatched on the Bus from a single read
// goroutine, so handlers see them in arrival order. Connection lifecycle
// changes are dispatched on the same Bus as connect, disconnect,
// reconnect_attempt and reconnect_failed events.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Send buffer size
	sendBufferSize = 256
)

// Config controls dialing and reconnecting
type Config struct {
	URL                  string
	HandshakeTimeout     time.Duration
	MaxReconnectAttempts int
	ReconnectInitial     time.Duration
	ReconnectMax         time.Duration
}

// Status is a point-in-time view of the connection flags
type Status struct {
	Connected    bool      `json:"isConnected"`
	Reconnecting bool      `json:"reconnecting"`
	Attempts     int       `json:"reconnectAttempts"`
	ConnectedAt  time.Time `json:"connectedAt,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

// Manager owns the lifecycle of the real-time channel
type Manager struct {
	cfg     Config
	bus     *Bus
	dialer  *websocket.Dialer
	metrics *observability.Collector
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// dispatchMu orders frame delivery against lifecycle events, so no
	// frame of a torn-down channel is delivered after its disconnect.
	dispatchMu sync.Mutex

	mu           sync.Mutex
	gen          uint64
	conn         *websocket.Conn
	send         chan []byte
	stop         context.CancelFunc
	token        string
	connected    bool
	reconnecting bool
	attempts     int
	connectedAt  time.Time
	lastError    string
}

// NewManager creates a disconnected manager
func NewManager(cfg Config, bus *Bus, metrics *observability.Collector, logger *zap.Logger) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = 500 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 10 * time.Second
	}
	if bus == nil {
		bus = NewBus()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		metrics: metrics,
		logger:  logger.With(zap.String("component", "realtime")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Bus returns the event bus handlers register on
func (m *Manager) Bus() *Bus {
	return m.bus
}

// On registers a handler for an inbound or lifecycle event
func (m *Manager) On(eventType string, h events.Handler) {
	m.bus.Register(eventType, h)
}

// Connect dials the server with token, tearing down any live channel
// first. The token is kept and re-supplied on every reconnect. When the
// first dial fails the error is returned and, if reconnecting is enabled,
// retries continue in the background.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	wasLive := m.connected
	m.gen++
	gen := m.gen
	m.teardownLocked()
	m.token = token
	m.reconnecting = false
	m.attempts = 0
	m.mu.Unlock()

	if wasLive {
		m.dispatch(events.Disconnect, events.DisconnectPayload{Reason: events.ReasonReplaced})
	}

	conn, err := m.dial(ctx, token)
	if err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()
		m.dispatch(events.Disconnect, events.DisconnectPayload{Reason: err.Error()})
		if m.cfg.MaxReconnectAttempts > 0 {
			go m.reconnect(gen, token)
		}
		return pkgerrors.NewTransportError("failed to connect to collaboration server", err)
	}
	if !m.attach(gen, conn) {
		conn.Close()
		return pkgerrors.NewTransportError("connection superseded", nil)
	}
	return nil
}

// Disconnect closes the channel and does not reconnect
func (m *Manager) Disconnect() {
	m.mu.Lock()
	active := m.connected || m.reconnecting
	m.gen++
	m.teardownLocked()
	m.reconnecting = false
	m.mu.Unlock()

	m.metrics.SetConnected(false)
	if active {
		m.dispatch(events.Disconnect, events.DisconnectPayload{Reason: events.ReasonClientDisconnect})
	}
}

// Close disconnects and stops any pending reconnect for good
func (m *Manager) Close() {
	m.Disconnect()
	m.cancel()
}

// IsConnected reports whether the channel is open
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Status returns the current connection flags
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Connected:    m.connected,
		Reconnecting: m.reconnecting,
		Attempts:     m.attempts,
		ConnectedAt:  m.connectedAt,
		LastError:    m.lastError,
	}
}

// Emit sends one event. It fails with a transport error while the channel
// is down; nothing is queued for later.
func (m *Manager) Emit(eventType string, payload interface{}) error {
	env, err := events.NewEnvelope(eventType, payload, time.Now())
	if err != nil {
		return pkgerrors.NewValidationError("cannot encode " + eventType + ": " + err.Error())
	}
	data, err := json.Marshal(env)
	if err != nil {
		return pkgerrors.NewValidationError("cannot encode " + eventType + ": " + err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return pkgerrors.NewTransportError("real-time channel is not connected", nil)
	}
	select {
	case m.send <- data:
		m.metrics.RecordOutbound(eventType)
		return nil
	default:
		return pkgerrors.NewTransportError("send buffer is full", nil)
	}
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	target, err := url.Parse(m.cfg.URL)
	if err != nil {
		return nil, err
	}
	if token != "" {
		q := target.Query()
		q.Set("token", token)
		target.RawQuery = q.Encode()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := m.dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// attach makes conn the live channel of generation gen and starts its
// pumps. It returns false if a newer Connect or Disconnect won the race.
func (m *Manager) attach(gen uint64, conn *websocket.Conn) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	pumpCtx, stop := context.WithCancel(m.ctx)
	m.conn = conn
	m.send = make(chan []byte, sendBufferSize)
	m.stop = stop
	m.connected = true
	m.reconnecting = false
	m.attempts = 0
	m.connectedAt = time.Now()
	m.lastError = ""
	send := m.send
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	m.logger.Info("Connected to collaboration server")
	m.dispatch(events.Connect, nil)

	go m.writePump(pumpCtx, gen, conn, send)
	go m.readPump(gen, conn)
	return true
}

// teardownLocked closes the live channel without raising events
func (m *Manager) teardownLocked() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	if m.conn != nil {
		m.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		m.conn.Close()
		m.conn = nil
	}
	m.send = nil
	m.connected = false
}

// drop handles a transport failure on generation gen
func (m *Manager) drop(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || !m.connected {
		m.mu.Unlock()
		return
	}
	m.gen++
	next := m.gen
	m.teardownLocked()
	m.lastError = err.Error()
	token := m.token
	m.mu.Unlock()

	m.metrics.SetConnected(false)
	m.logger.Warn("Real-time channel lost", zap.Error(err))
	m.dispatch(events.Disconnect, events.DisconnectPayload{Reason: err.Error()})

	if m.cfg.MaxReconnectAttempts > 0 {
		go m.reconnect(next, token)
	}
}

// reconnect retries with bounded exponential backoff until it succeeds,
// runs out of attempts, or a newer Connect/Disconnect takes over
func (m *Manager) reconnect(gen uint64, token string) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.ReconnectInitial
	b.MaxInterval = m.cfg.ReconnectMax
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(b.NextBackOff()):
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.reconnecting = true
		m.attempts = attempt
		m.mu.Unlock()

		m.metrics.RecordReconnectAttempt()
		m.logger.Info("Reconnecting", zap.Int("attempt", attempt))
		m.dispatch(events.ReconnectAttempt, events.ReconnectPayload{Attempt: attempt})

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.HandshakeTimeout)
		conn, err := m.dial(ctx, token)
		cancel()
		if err == nil {
			if !m.attach(gen, conn) {
				conn.Close()
			}
			return
		}
		lastErr = err
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.reconnecting = false
	m.mu.Unlock()

	payload := events.ReconnectPayload{Attempt: m.cfg.MaxReconnectAttempts}
	if lastErr != nil {
		payload.Error = lastErr.Error()
	}
	m.logger.Error("Giving up on reconnecting", zap.Int("attempts", m.cfg.MaxReconnectAttempts), zap.Error(lastErr))
	m.dispatch(events.ReconnectFailed, payload)
}

// readPump decodes frames from the connection and dispatches them in order
func (m *Manager) readPump(gen uint64, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("WebSocket read error", zap.Error(err))
			}
			m.drop(gen, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			m.logger.Warn("Binary messages not supported")
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			m.logger.Warn("Dropping malformed frame", zap.Int("size", len(message)), zap.Error(err))
			continue
		}
		if events.IsLifecycle(env.Type) {
			m.logger.Warn("Dropping server frame with reserved type", zap.String("type", env.Type))
			continue
		}
		if env.Timestamp == 0 {
			env.Timestamp = time.Now().UnixMilli()
		}
		current, handled := m.deliver(gen, env)
		if !current {
			return
		}
		if !handled {
			m.logger.Debug("Unhandled event", zap.String("type", env.Type))
		}
	}
}

// deliver dispatches a frame read on generation gen unless that channel
// has been superseded in the meantime
func (m *Manager) deliver(gen uint64, env events.Envelope) (current, handled bool) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	current = gen == m.gen
	m.mu.Unlock()
	if !current {
		return false, false
	}
	m.metrics.RecordInbound(env.Type)
	return true, m.bus.Dispatch(env)
}

// writePump drains the send buffer and keeps the connection alive with pings
func (m *Manager) writePump(ctx context.Context, gen uint64, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				m.logger.Error("Failed to write message", zap.Error(err))
				m.drop(gen, err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.logger.Error("Failed to send ping", zap.Error(err))
				m.drop(gen, err)
				return
			}
		}
	}
}

func (m *Manager) dispatch(eventType string, payload interface{}) {
	env, err := events.NewEnvelope(eventType, payload, time.Now())
	if err != nil {
		m.logger.Error("Failed to encode lifecycle event", zap.String("type", eventType), zap.Error(err))
		return
	}
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	m.metrics.RecordInbound(eventType)
	m.bus.Dispatch(env)
}
