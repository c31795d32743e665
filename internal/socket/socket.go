package socket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"

	"github.com/gorilla/websocket"
)

// Local pseudo-events dispatched alongside server-named messages.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Disconnect reasons mirrored from the channel protocol. A locally
// initiated disconnect must be distinguishable from a transport drop.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportError   = "transport error"
)

type Handler func(data json.RawMessage)

type disconnectData struct {
	Reason string `json:"reason"`
}

type connectErrorData struct {
	Error string `json:"error"`
}

// Socket is the single persistent bidirectional channel to the server.
// It is created once per process and reused across reconnects so that
// reconnection bookkeeping is never lost. Named JSON messages go out via
// Emit and come in via registered handlers; handlers for one connection
// survive reconnects.
type Socket struct {
	url string

	initialDelay time.Duration
	maxDelay     time.Duration

	mu              sync.Mutex
	conn            *websocket.Conn
	connected       bool
	running         bool
	shouldReconnect bool
	handlers        map[string][]Handler
	onceHandlers    map[string][]Handler

	// Будит цикл из паузы переподключения
	wakeCh chan struct{}

	writeMu sync.Mutex
}

func New(url string, initialDelay, maxDelay time.Duration) *Socket {
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Socket{
		url:          url,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		handlers:     make(map[string][]Handler),
		onceHandlers: make(map[string][]Handler),
		wakeCh:       make(chan struct{}, 1),
	}
}

// On registers a persistent handler for a named event.
func (s *Socket) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// Once registers a handler that fires at most once.
func (s *Socket) Once(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onceHandlers[event] = append(s.onceHandlers[event], h)
}

// Off removes every handler for the event.
func (s *Socket) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
	delete(s.onceHandlers, event)
}

func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect triggers a physical connect unless one is already established
// or in progress. The result is reported through the connect /
// connect_error pseudo-events, never through a return value.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.running {
		// Цикл ещё жив: либо ждёт переподключения, либо сворачивается
		// после Disconnect. Снова взводим флаг и будим его из паузы,
		// иначе Connect в этом окне молча пропадает.
		s.shouldReconnect = true
		s.mu.Unlock()
		select {
		case s.wakeCh <- struct{}{}:
		default:
		}
		return
	}
	s.running = true
	s.shouldReconnect = true
	s.mu.Unlock()

	go s.run()
}

// Disconnect closes the channel and suppresses automatic reconnection.
// Always succeeds.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.shouldReconnect = false
	conn := s.conn
	wasConnected := s.connected
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasConnected {
		s.dispatch(EventDisconnect, mustMarshal(disconnectData{Reason: ReasonClientDisconnect}))
	}
}

// Emit sends a named message. Fire-and-forget: an error only means the
// message never left the device.
func (s *Socket) Emit(event string, data interface{}) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		return model.ErrNotConnected
	}

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		raw = b
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteJSON(model.Envelope{Event: event, Data: raw}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// run owns the dial/reconnect loop. The first dial failure is terminal
// for this Connect call; drops after an established connection are
// retried forever with capped exponential delay, until Disconnect.
func (s *Socket) run() {
	firstAttempt := true
	attempt := 0

	for {
		// Решение о выходе и сброс running атомарны: Connect, успевший
		// взвести shouldReconnect до этой проверки, продолжает цикл
		s.mu.Lock()
		if !s.shouldReconnect {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			if firstAttempt {
				logger.Error("socket_connect_failed", "Initial connect failed", "", "", err.Error())
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				s.dispatch(EventConnectError, mustMarshal(connectErrorData{Error: err.Error()}))
				return
			}
			attempt++
			delay := s.reconnectAfter(attempt)
			logger.Warn("socket_reconnect_failed",
				fmt.Sprintf("Reconnect attempt %d failed, retrying in %s", attempt, delay), "", "", err.Error())
			s.pause(delay)
			continue
		}

		firstAttempt = false
		attempt = 0

		s.mu.Lock()
		s.conn = conn
		s.connected = true
		s.mu.Unlock()

		logger.Info("socket_connected", "Channel established", "", "")
		s.dispatch(EventConnect, nil)

		s.readLoop(conn)

		s.mu.Lock()
		locallyClosed := !s.shouldReconnect
		s.conn = nil
		s.connected = false
		s.mu.Unlock()
		conn.Close()

		if locallyClosed {
			// Disconnect() already dispatched the client-side reason.
			// Connect() во время сворачивания снова взводит
			// shouldReconnect, и верх цикла начнёт новую сессию.
			firstAttempt = true
			attempt = 0
			continue
		}

		logger.Warn("socket_dropped", "Channel dropped, scheduling reconnect", "", "", "")
		s.dispatch(EventDisconnect, mustMarshal(disconnectData{Reason: ReasonTransportError}))
		attempt = 1
		s.pause(s.reconnectAfter(attempt))
	}
}

// pause sleeps for d, returning early when Connect wakes the loop.
func (s *Socket) pause(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.wakeCh:
	}
}

// readLoop delivers inbound messages in arrival order. Returns when the
// connection dies.
func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event == "" {
			continue
		}
		s.dispatch(env.Event, env.Data)
	}
}

func (s *Socket) dispatch(event string, data json.RawMessage) {
	s.mu.Lock()
	once := s.onceHandlers[event]
	delete(s.onceHandlers, event)
	persistent := make([]Handler, len(s.handlers[event]))
	copy(persistent, s.handlers[event])
	s.mu.Unlock()

	for _, h := range once {
		h(data)
	}
	for _, h := range persistent {
		h(data)
	}
}

// reconnectAfter: exponential delay, unbounded attempts, bounded wait.
func (s *Socket) reconnectAfter(attempt int) time.Duration {
	delay := s.initialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.maxDelay {
			return s.maxDelay
		}
	}
	if delay > s.maxDelay {
		return s.maxDelay
	}
	return delay
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
