package conn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zz9tf/publications-view/internal/bus"
	"github.com/zz9tf/publications-view/internal/wire"
)

const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0

	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultPingInterval = 30 * time.Second
)

// ErrNotConnected means Send was called without a live connection. Nothing
// is queued; the caller retries once the manager reports Connected again.
var ErrNotConnected = errors.New("not connected")

// Options configure a Manager. Zero durations take the package defaults;
// a Multiplier below 1 falls back to DefaultMultiplier (exactly 1 gives a
// flat reconnect interval).
type Options struct {
	URL   string
	Token string // optional bearer credential attached on the dial handshake
	Bus   *bus.Bus

	Dialer *websocket.Dialer

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration
}

func (o *Options) fillDefaults() {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = DefaultMultiplier
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
}

// Manager owns the single persistent connection to the worker. Connect and
// Disconnect flip the caller's intent; everything between (dialing, the
// handshake, keepalives, reconnection) happens internally and surfaces only
// as state transitions. Inbound envelopes go to the bus, except the
// handshake confirmation, which sets the session identity and stops there.
type Manager struct {
	opts Options

	mu        sync.Mutex
	writeMu   sync.Mutex // serialises all conn writes (sends, pings, close)
	state     State
	desired   bool
	sessionID string
	conn      *websocket.Conn
	timer     *time.Timer // pending reconnect, at most one
	nextDelay time.Duration
	hook      func(State)
	pingStop  context.CancelFunc
}

// NewManager creates a manager for the given worker URL. Bus must be
// non-nil; the manager publishes every non-handshake inbound event to it.
func NewManager(opts Options) *Manager {
	opts.fillDefaults()
	return &Manager{opts: opts, nextDelay: opts.InitialDelay}
}

// SetStateHook registers fn to observe every state transition. The hook
// runs on the transitioning goroutine and must return promptly.
func (m *Manager) SetStateHook(fn func(State)) {
	m.mu.Lock()
	m.hook = fn
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the identity assigned by the worker handshake, if one
// is live. It is never persisted and clears on any disconnect.
func (m *Manager) SessionID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.sessionID != ""
}

// Connect makes the manager want a live connection and dials in the
// background. It is a no-op while an attempt or session is already in
// flight, cancels any pending reconnect timer, and never returns an error;
// dial failures feed the reconnect schedule instead.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.desired = true
	if m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.nextDelay = m.opts.InitialDelay
	m.state = Connecting
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(Connecting)
	}
	go m.dial()
}

// Disconnect is the caller-initiated teardown. It clears the desired flag
// so no reconnect happens until the next Connect, cancels any pending
// timer, sends a normal-closure frame so the worker can tell this apart
// from a transport drop, closes the socket, and forgets the session. A
// Connect that lands while the socket is still closing records the wish;
// the teardown honours it by dialing again once the socket is down.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.desired = false
	m.stopTimerLocked()
	c := m.conn
	m.conn = nil
	m.sessionID = ""
	if m.pingStop != nil {
		m.pingStop()
		m.pingStop = nil
	}
	if c == nil {
		changed := m.state != Disconnected
		m.state = Disconnected
		hook := m.hook
		m.mu.Unlock()
		if changed && hook != nil {
			hook(Disconnected)
		}
		return
	}
	m.state = Closing
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(Closing)
	}

	m.writeMu.Lock()
	deadline := time.Now().Add(m.opts.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	if err := c.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Printf("conn: close frame not delivered: %v", err)
	}
	m.writeMu.Unlock()
	c.Close()

	m.mu.Lock()
	if m.desired {
		// Connect ran while the socket was closing. No dial or timer can be
		// in flight during that window, so resume from here.
		m.nextDelay = m.opts.InitialDelay
		m.state = Connecting
		hook = m.hook
		m.mu.Unlock()
		if hook != nil {
			hook(Connecting)
		}
		go m.dial()
		return
	}
	m.state = Disconnected
	hook = m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(Disconnected)
	}
}

// Send serialises payload under the given event and writes it to the live
// connection. It fails synchronously with ErrNotConnected when no
// connection is ready; nothing is ever queued for later. Delivery is not
// acknowledged at this layer.
func (m *Manager) Send(event wire.Event, payload any) error {
	m.mu.Lock()
	c := m.conn
	ready := m.state == Connected
	m.mu.Unlock()
	if !ready || c == nil {
		return ErrNotConnected
	}

	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	c.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
	if err := c.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (m *Manager) dial() {
	var header http.Header
	if m.opts.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + m.opts.Token}}
	}
	c, resp, err := m.opts.Dialer.Dial(m.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.mu.Lock()
		if !m.desired {
			m.state = Disconnected
			m.mu.Unlock()
			return
		}
		m.state = Disconnected
		delay := m.scheduleReconnectLocked()
		hook := m.hook
		m.mu.Unlock()
		log.Printf("conn: dial %s: %v (retry in %v)", m.opts.URL, err, delay)
		if hook != nil {
			hook(Disconnected)
		}
		return
	}

	m.mu.Lock()
	if !m.desired {
		m.mu.Unlock()
		c.Close()
		return
	}
	if m.pingStop != nil {
		m.pingStop()
	}
	pingCtx, cancel := context.WithCancel(context.Background())
	m.pingStop = cancel
	m.conn = c
	m.nextDelay = m.opts.InitialDelay
	m.state = Connected
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(Connected)
	}

	go m.pingLoop(pingCtx, c)
	go m.readLoop(c)
}

// readLoop drains one physical connection. Malformed frames are logged and
// dropped; the handshake confirmation is consumed here; everything else is
// published to the bus in arrival order.
func (m *Manager) readLoop(c *websocket.Conn) {
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))
		return nil
	})
	c.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			m.handleDrop(c, err)
			return
		}

		env, err := wire.ParseEnvelope(data)
		if err != nil {
			log.Printf("conn: dropping frame: %v", err)
			continue
		}
		if env.Event == wire.EventConnected {
			var p wire.ConnectedPayload
			if err := env.Decode(&p); err != nil || p.ID == "" {
				log.Printf("conn: bad handshake payload: %v", err)
				continue
			}
			m.mu.Lock()
			m.sessionID = p.ID
			m.mu.Unlock()
			log.Printf("conn: session %s established", p.ID)
			continue
		}
		m.opts.Bus.Publish(env.Event, env.Data)
	}
}

// handleDrop runs when a read fails. Only the goroutine owning the current
// connection schedules a reconnect; stale loops from replaced connections
// just exit.
func (m *Manager) handleDrop(c *websocket.Conn, err error) {
	c.Close()
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.sessionID = ""
	if m.pingStop != nil {
		m.pingStop()
		m.pingStop = nil
	}
	if !m.desired {
		m.mu.Unlock()
		return
	}
	m.state = Disconnected
	delay := m.scheduleReconnectLocked()
	hook := m.hook
	m.mu.Unlock()
	log.Printf("conn: connection lost: %v (retry in %v)", err, delay)
	if hook != nil {
		hook(Disconnected)
	}
}

// scheduleReconnectLocked arms the reconnect timer and advances the backoff.
// At most one timer is ever outstanding. Call with mu held; returns the
// delay chosen for logging.
func (m *Manager) scheduleReconnectLocked() time.Duration {
	if m.timer != nil {
		return m.nextDelay
	}
	delay := m.nextDelay
	next := time.Duration(float64(m.nextDelay) * m.opts.Multiplier)
	if next > m.opts.MaxDelay {
		next = m.opts.MaxDelay
	}
	m.nextDelay = next
	m.timer = time.AfterFunc(delay, m.redial)
	return delay
}

func (m *Manager) redial() {
	m.mu.Lock()
	m.timer = nil
	if !m.desired || m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	m.state = Connecting
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(Connecting)
	}
	m.dial()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection has been replaced.
func (m *Manager) pingLoop(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			current := m.conn
			m.mu.Unlock()
			if current != c {
				return
			}
			m.writeMu.Lock()
			c.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			err := c.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
