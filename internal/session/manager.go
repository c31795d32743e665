package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ride-hail-client/internal/common/auth"
	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
	"ride-hail-client/internal/common/netprobe"
	"ride-hail-client/internal/socket"
)

// Manager owns the per-role connection state machine: the handshake, the
// heartbeat lifecycle and, for drivers, the background location
// publisher. It is the single writer of ConnectionState; the UI reads it
// by polling State() or via Subscribe.
type Manager struct {
	role  model.Role
	sock  *socket.Socket
	probe netprobe.Probe
	creds CredentialSource
	hb    *socket.Heartbeat

	publisher *LocationPublisher // nil for passengers

	mu               sync.Mutex
	state            model.ConnectionState
	lastErr          error
	shouldStayOnline bool
	identity         *model.Identity
	listenersBound   bool
	authTimer        *time.Timer
	subs             []chan model.ConnectionState
}

// How long to wait for the server's user:connected ack after sending
// the handshake.
const handshakeTimeout = 10 * time.Second

func NewManager(role model.Role, sock *socket.Socket, probe netprobe.Probe, creds CredentialSource, heartbeatInterval time.Duration) *Manager {
	return &Manager{
		role:  role,
		sock:  sock,
		probe: probe,
		creds: creds,
		hb:    socket.NewHeartbeat(sock, heartbeatInterval),
		state: model.StateOffline,
	}
}

// AttachLocationPublisher wires the driver's background location task.
// It starts on every authenticated handshake and stops on disconnect.
func (m *Manager) AttachLocationPublisher(p *LocationPublisher) {
	m.publisher = p
}

// Connect is idempotent: a no-op while already connected and
// authenticated. Precondition failures set state ERROR and are returned;
// everything after the socket hand-off surfaces via state transitions.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == model.StateConnected {
		m.mu.Unlock()
		logger.Debug("connect_noop", "Already connected and authenticated", "", "")
		return nil
	}
	m.mu.Unlock()

	identity, err := m.resolveIdentity()
	if err != nil {
		m.setState(model.StateError, err)
		logger.Error("connect_identity_missing", "Cannot connect without identity", "", "", err.Error())
		return err
	}

	if !m.probe.IsOnline() {
		m.setState(model.StateError, model.ErrNetworkUnavailable)
		logger.Warn("connect_network_unavailable", "Device is offline", "", "", "")
		return model.ErrNetworkUnavailable
	}

	m.mu.Lock()
	m.identity = identity
	m.shouldStayOnline = true
	m.mu.Unlock()
	m.setState(model.StateConnecting, nil)

	m.bindListeners()

	// Уже есть физическое соединение — сразу повторяем handshake
	if m.sock.IsConnected() {
		m.sendAuth()
		return nil
	}

	m.sock.Connect()
	return nil
}

// Disconnect always succeeds: heartbeat and location publishing stop,
// the channel closes, state becomes OFFLINE.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.shouldStayOnline = false
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	m.mu.Unlock()

	m.hb.Stop()
	if m.publisher != nil {
		m.publisher.Stop()
	}
	m.sock.Disconnect()
	m.setState(model.StateOffline, nil)
	logger.Info("disconnected", "Session closed by user", "", "")
}

func (m *Manager) resolveIdentity() (*model.Identity, error) {
	info, err := m.creds.GetUserInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	phone := auth.DigitsOnly(info.Phone)
	if phone == "" && info.Token != "" {
		// Телефон может жить только в токене
		if claims, err := auth.ParseToken(info.Token); err == nil {
			phone = auth.DigitsOnly(claims.Phone)
		}
	}
	if phone == "" {
		return nil, model.ErrIdentityMissing
	}

	deviceID, err := m.creds.GetOrCreateDeviceID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device id: %w", err)
	}

	return &model.Identity{Role: m.role, Phone: phone, DeviceID: deviceID}, nil
}

// bindListeners registers the lifecycle handlers exactly once. They stay
// registered across reconnects, which is what re-authenticates the
// session when the channel comes back.
func (m *Manager) bindListeners() {
	m.mu.Lock()
	if m.listenersBound {
		m.mu.Unlock()
		return
	}
	m.listenersBound = true
	m.mu.Unlock()

	m.sock.On(socket.EventConnect, func(json.RawMessage) {
		m.sendAuth()
	})

	m.sock.On(model.EventUserConnected, func(json.RawMessage) {
		m.onAuthenticated()
	})

	m.sock.On(socket.EventDisconnect, func(data json.RawMessage) {
		var d struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(data, &d)
		m.onDisconnect(d.Reason)
	})

	m.sock.On(socket.EventConnectError, func(data json.RawMessage) {
		var d struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &d)
		m.onConnectError(d.Error)
	})
}

func (m *Manager) sendAuth() {
	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()
	if identity == nil {
		return
	}

	payload := model.ConnectPayload{
		Phone:    identity.Phone,
		UserType: identity.Role,
	}
	// Геолокация best effort: handshake уходит и без неё
	if m.publisher != nil {
		if loc, err := m.publisher.SampleOnce(); err == nil {
			payload.Location = &loc
		}
	}

	if err := m.sock.Emit(model.EventUserConnect, payload); err != nil {
		logger.Warn("handshake_send_failed", "Failed to send user:connect", "", "", err.Error())
		return
	}
	logger.Info("handshake_sent", "Authentication message sent", "", "")

	m.mu.Lock()
	if m.authTimer != nil {
		m.authTimer.Stop()
	}
	m.authTimer = time.AfterFunc(handshakeTimeout, m.onHandshakeTimeout)
	m.mu.Unlock()
}

func (m *Manager) onHandshakeTimeout() {
	if m.State() != model.StateConnecting && m.State() != model.StateReconnecting {
		return
	}
	m.hb.Stop()
	if m.publisher != nil {
		m.publisher.Stop()
	}
	m.setState(model.StateError, model.ErrHandshakeTimeout)
	logger.Error("handshake_timeout", "No server ack for user:connect", "", "", model.ErrHandshakeTimeout.Error())
}

func (m *Manager) onAuthenticated() {
	m.mu.Lock()
	if !m.shouldStayOnline {
		// Запоздалый ack после локального Disconnect
		m.mu.Unlock()
		logger.Debug("stale_ack_ignored", "Server ack after local disconnect", "", "")
		return
	}
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	m.mu.Unlock()

	if !m.sock.IsConnected() {
		return
	}

	m.setState(model.StateConnected, nil)
	m.hb.Start()
	if m.publisher != nil {
		m.publisher.Start()
	}
	logger.Info("authenticated", "Server acknowledged the session", "", "")
}

func (m *Manager) onDisconnect(reason string) {
	m.hb.Stop()
	if m.publisher != nil {
		m.publisher.Stop()
	}

	m.mu.Lock()
	stay := m.shouldStayOnline
	m.mu.Unlock()

	if reason == socket.ReasonClientDisconnect || !stay {
		m.setState(model.StateOffline, nil)
		logger.Info("session_offline", "Disconnected: "+reason, "", "")
		return
	}

	// Неожиданный обрыв: канал сам переподключится, мы переавторизуемся
	m.setState(model.StateReconnecting, nil)
	logger.Warn("session_reconnecting", "Unexpected drop: "+reason, "", "", "")
}

func (m *Manager) onConnectError(errMsg string) {
	m.hb.Stop()
	if m.publisher != nil {
		m.publisher.Stop()
	}
	m.setState(model.StateError, fmt.Errorf("%w: %s", model.ErrConnectFailed, errMsg))
	logger.Error("connect_error", "Connection attempt failed", "", "", errMsg)
}

func (m *Manager) setState(state model.ConnectionState, err error) {
	m.mu.Lock()
	m.state = state
	m.lastErr = err
	subs := make([]chan model.ConnectionState, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- state:
		default:
		}
	}
}

// State is the polling read used by the UI loop.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError explains the most recent ERROR state, nil otherwise.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Subscribe returns a channel that receives every state transition.
// Slow readers miss intermediate states, never the mutex.
func (m *Manager) Subscribe() <-chan model.ConnectionState {
	ch := make(chan model.ConnectionState, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) Identity() *model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

func (m *Manager) Role() model.Role {
	return m.role
}

// WaitConnected blocks until the session is authenticated or the timeout
// elapses. Used by the restore flow before rejoining a ride room.
func (m *Manager) WaitConnected(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.State() == model.StateConnected {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// JoinRoom re-enters the ride's server-side broadcast group.
func (m *Manager) JoinRoom(rideID string) error {
	return m.sock.Emit(model.EventJoinRoom, model.JoinRoomPayload{RideID: rideID})
}

// DriverArrived tells the server the driver reached the pickup point.
func (m *Manager) DriverArrived(rideID string) error {
	identity := m.Identity()
	if m.role != model.RoleDriver || identity == nil {
		return fmt.Errorf("driver_arrived requires a driver session")
	}
	logger.Info("driver_arrived", "Reporting arrival", "", rideID)
	return m.sock.Emit(model.EventDriverArrived, model.DriverArrivedPayload{
		RideID:      rideID,
		DriverPhone: identity.Phone,
	})
}

// StartTrip tells the server the passenger is on board.
func (m *Manager) StartTrip(rideID string) error {
	if m.role != model.RoleDriver {
		return fmt.Errorf("start_trip requires a driver session")
	}
	logger.Info("start_trip", "Starting trip", "", rideID)
	return m.sock.Emit(model.EventStartTrip, model.StartTripPayload{RideID: rideID})
}
