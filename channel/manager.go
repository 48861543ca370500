// Package channel owns the single physical push-channel connection: dial,
// handshake, heartbeat, disconnect detection, and bounded-backoff reconnect.
package channel

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

var (
	// ErrAuthRejected means the server refused the bearer credential at
	// handshake time. Terminal: obtain a fresh token and call Connect again.
	ErrAuthRejected = errors.New("handshake rejected: credential not accepted")
	// ErrNotConnected is returned when sending a frame without an
	// established connection.
	ErrNotConnected = errors.New("not connected")
)

const (
	// DefaultBackoffBase is the first reconnect delay; each further attempt
	// doubles it.
	DefaultBackoffBase = 1000 * time.Millisecond
	// DefaultMaxAttempts bounds automatic reconnects before giving up.
	DefaultMaxAttempts = 5
	// handshake must complete within this window or the dial counts as a
	// transport failure.
	defaultHandshakeTimeout = 10 * time.Second

	pingCacheTTL = 60 * time.Second
)

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	URL              string
	BackoffBase      time.Duration
	MaxAttempts      int
	PingInterval     time.Duration // 0 disables the automatic heartbeat loop
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

type stateSub struct {
	id string
	fn func(types.ConnectionState)
}

// Manager is the single owner of the physical connection. It exposes an
// explicit state machine (Disconnected, Connecting, Connected, Reconnecting)
// with one reconnect timer, cancelled deterministically on Disconnect.
type Manager struct {
	opts Options
	reg  *Registry

	mu         sync.Mutex
	state      types.ConnectionState
	conn       *websocket.Conn
	token      string
	attempt    int
	retryTimer *time.Timer
	gen        uint64 // bumped on explicit Connect/Disconnect; stale goroutines check it
	stateSubs  []stateSub
	onFrame    func(types.ServerFrame)

	writeMu sync.Mutex

	// Outstanding ping ids awaiting a pong, for RTT measurement. Entries
	// expire on their own when the server never answers.
	pings *ttlworker.Cache[string, time.Time]
}

// NewManager creates a manager bound to the given registry. The registry's
// desired rooms are replayed on every transition into Connected.
func NewManager(opts Options, reg *Registry) *Manager {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if reg == nil {
		reg = NewRegistry()
	}
	m := &Manager{
		opts:  opts,
		reg:   reg,
		state: types.StateDisconnected,
		pings: ttlworker.NewCache[string, time.Time](pingCacheTTL),
	}
	reg.Bind(m)
	return m
}

// Registry returns the room registry bound to this manager.
func (m *Manager) Registry() *Registry { return m.reg }

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers a callback invoked on every state transition, in
// registration order. The returned func removes the callback.
func (m *Manager) OnStateChange(cb func(types.ConnectionState)) func() {
	id := uuid.NewString()
	m.mu.Lock()
	m.stateSubs = append(m.stateSubs, stateSub{id: id, fn: cb})
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.stateSubs {
			if sub.id == id {
				m.stateSubs = append(m.stateSubs[:i], m.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// OnFrame sets the handler for inbound server frames that carry application
// payloads (notifications, room acks). Pongs are consumed internally.
func (m *Manager) OnFrame(fn func(types.ServerFrame)) {
	m.mu.Lock()
	m.onFrame = fn
	m.mu.Unlock()
}

// Connect establishes the connection, presenting authToken at handshake time.
// Idempotent: a no-op when already Connected or Connecting. It suspends until
// the handshake completes or fails. A pending reconnect is superseded by the
// fresh token.
func (m *Manager) Connect(authToken string) error {
	m.mu.Lock()
	if m.state == types.StateConnected || m.state == types.StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked()
	m.gen++
	gen := m.gen
	m.token = authToken
	m.attempt = 0
	fire := m.setStateLocked(types.StateConnecting)
	m.mu.Unlock()
	fire()

	return m.establish(gen)
}

// Disconnect tears the connection down explicitly: the pending reconnect
// timer is cancelled and no automatic reconnection follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryLocked()
	conn := m.conn
	m.conn = nil
	m.attempt = 0
	fire := m.setStateLocked(types.StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	fire()
}

// Ping sends a liveness probe when Connected; no-op otherwise. The id is
// remembered so the matching pong yields an RTT measurement.
func (m *Manager) Ping() {
	if m.State() != types.StateConnected {
		return
	}
	id := uuid.NewString()
	m.pings.Set(id, time.Now())
	if err := m.SendFrame(types.ClientFrame{Type: types.FramePing, ID: id}); err != nil {
		m.pings.Delete(id)
	}
}

// SendFrame marshals f and writes it to the connection. Returns
// ErrNotConnected when there is none.
func (m *Manager) SendFrame(f types.ClientFrame) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()
	if state != types.StateConnected || conn == nil {
		return ErrNotConnected
	}
	payload, err := sonic.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %v", f.Type, err)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// establish dials and performs the handshake for generation gen. Transport
// failures feed the reconnect machinery; credential rejection is terminal.
func (m *Manager) establish(gen uint64) error {
	header := http.Header{}
	if token := m.currentToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := m.opts.Dialer.Dial(m.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.failTerminal(gen)
			return ErrAuthRejected
		}
		return m.connectionLost(gen, fmt.Errorf("dial %s: %v", m.opts.URL, err))
	}

	// The server either proceeds to a connected frame or closes immediately.
	_ = conn.SetReadDeadline(time.Now().Add(m.opts.HandshakeTimeout))
	var hello types.ServerFrame
	if err := readFrame(conn, &hello); err != nil {
		_ = conn.Close()
		return m.connectionLost(gen, fmt.Errorf("handshake read: %v", err))
	}
	if hello.Type != types.FrameConnected {
		_ = conn.Close()
		return m.connectionLost(gen, fmt.Errorf("handshake: unexpected %q frame", hello.Type))
	}
	_ = conn.SetReadDeadline(time.Time{})

	m.mu.Lock()
	if m.gen != gen {
		// Disconnected (or reconnected) while we were dialing.
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.attempt = 0
	fire := m.setStateLocked(types.StateConnected)
	m.mu.Unlock()

	tool.DefaultLogger.Infof("[Channel] Connected to %s (%s)", m.opts.URL, hello.ServerInfo)
	m.reg.Replay()
	fire()

	go m.readLoop(conn, gen)
	if m.opts.PingInterval > 0 {
		go m.pingLoop(conn, gen)
	}
	return nil
}

func (m *Manager) currentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// connectionLost schedules the next reconnect attempt, or gives up once the
// retry limit is reached. Returns cause so synchronous callers see why the
// dial failed.
func (m *Manager) connectionLost(gen uint64, cause error) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return cause
	}
	m.conn = nil
	m.attempt++
	if m.attempt > m.opts.MaxAttempts {
		m.attempt = 0
		fire := m.setStateLocked(types.StateDisconnected)
		m.mu.Unlock()
		tool.DefaultLogger.Errorf("[Channel] Giving up after %d reconnect attempts: %v", m.opts.MaxAttempts, cause)
		fire()
		return cause
	}
	delay := m.opts.BackoffBase << (m.attempt - 1)
	fire := m.setStateLocked(types.StateReconnecting)
	m.retryTimer = time.AfterFunc(delay, func() { m.retry(gen) })
	attempt := m.attempt
	m.mu.Unlock()

	tool.DefaultLogger.Warnf("[Channel] Connection lost (%v), attempt %d/%d in %s",
		cause, attempt, m.opts.MaxAttempts, delay)
	fire()
	return cause
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	stale := m.gen != gen || m.state != types.StateReconnecting
	m.mu.Unlock()
	if stale {
		return
	}
	_ = m.establish(gen)
}

// failTerminal transitions straight to Disconnected without scheduling a
// retry. Used for credential rejection: retrying with a stale token would
// only waste reconnect attempts.
func (m *Manager) failTerminal(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.attempt = 0
	fire := m.setStateLocked(types.StateDisconnected)
	m.mu.Unlock()
	tool.DefaultLogger.Errorf("[Channel] Credential rejected by server, not retrying")
	fire()
}

func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			unexpected := m.gen == gen && m.conn == conn
			m.mu.Unlock()
			if unexpected {
				_ = conn.Close()
				_ = m.connectionLost(gen, err)
			}
			return
		}
		var f types.ServerFrame
		if err := sonic.Unmarshal(data, &f); err != nil {
			tool.DefaultLogger.Debugf("[Channel] Dropping unreadable frame: %v", err)
			continue
		}
		m.handleFrame(f)
	}
}

func (m *Manager) handleFrame(f types.ServerFrame) {
	switch f.Type {
	case types.FramePong:
		if sent := m.pings.Get(f.ID); !sent.IsZero() {
			m.pings.Delete(f.ID)
			tool.DefaultLogger.Debugf("[Channel] Pong %s, rtt %s", f.ID, time.Since(sent).Round(time.Millisecond))
		}
	case types.FrameRoomJoined:
		tool.DefaultLogger.Debugf("[Channel] Joined room %q", f.Room)
	default:
		m.mu.Lock()
		fn := m.onFrame
		m.mu.Unlock()
		if fn != nil {
			fn(f)
		}
	}
}

// pingLoop heartbeats one specific connection. It is bound to conn, not just
// the generation: a reconnect inside the same generation replaces m.conn and
// starts a fresh loop, and this one must exit on its next tick instead of
// living on as a duplicate heartbeat.
func (m *Manager) pingLoop(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		live := m.gen == gen && m.conn == conn && m.state == types.StateConnected
		m.mu.Unlock()
		if !live {
			return
		}
		m.Ping()
	}
}

// setStateLocked records the transition and returns a closure that notifies
// subscribers. Call it with m.mu held, invoke the closure after unlocking so
// callbacks may call back into the manager.
func (m *Manager) setStateLocked(next types.ConnectionState) func() {
	if m.state == next {
		return func() {}
	}
	m.state = next
	subs := append([]stateSub{}, m.stateSubs...)
	return func() {
		for _, sub := range subs {
			sub.fn(next)
		}
	}
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func readFrame(conn *websocket.Conn, f *types.ServerFrame) error {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, f)
}
