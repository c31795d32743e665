package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ride-hail-client/internal/common/model"
	"ride-hail-client/internal/socket"
	"ride-hail-client/internal/storage"

	"github.com/gorilla/websocket"
)

// authServer acks every user:connect with user:connected and counts the
// handshakes it saw.
type authServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conn       *websocket.Conn
	handshakes int
	pings      int
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	as := &authServer{}
	as.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := as.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		as.mu.Lock()
		as.conn = conn
		as.mu.Unlock()
		for {
			var env model.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			switch env.Event {
			case model.EventUserConnect:
				as.mu.Lock()
				as.handshakes++
				as.mu.Unlock()
				conn.WriteJSON(model.Envelope{Event: model.EventUserConnected})
			case model.EventUserPing:
				as.mu.Lock()
				as.pings++
				as.mu.Unlock()
			}
		}
	}))
	t.Cleanup(as.srv.Close)
	return as
}

func (as *authServer) url() string {
	return "ws" + strings.TrimPrefix(as.srv.URL, "http")
}

func (as *authServer) handshakeCount() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.handshakes
}

func (as *authServer) pingCount() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.pings
}

func (as *authServer) drop() {
	as.mu.Lock()
	conn := as.conn
	as.conn = nil
	as.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

type fakeCreds struct {
	info storage.UserInfo
	err  error
}

func (f *fakeCreds) GetUserInfo() (*storage.UserInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := f.info
	return &info, nil
}

func (f *fakeCreds) GetOrCreateDeviceID() (string, error) {
	return "dev_test", nil
}

type fakeProbe struct{ online bool }

func (f *fakeProbe) IsOnline() bool { return f.online }

func newTestManager(t *testing.T, url string, role model.Role) (*Manager, *fakeCreds, *fakeProbe) {
	t.Helper()
	creds := &fakeCreds{info: storage.UserInfo{Phone: "+7 (701) 555-44-33", Role: string(role)}}
	probe := &fakeProbe{online: true}
	sock := socket.New(url, 10*time.Millisecond, 100*time.Millisecond)
	mgr := NewManager(role, sock, probe, creds, 20*time.Millisecond)
	t.Cleanup(mgr.Disconnect)
	return mgr, creds, probe
}

func waitState(t *testing.T, mgr *Manager, want model.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state never became %s (currently %s)", want, mgr.State())
}

func TestConnectHandshakeAndHeartbeat(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	if n := as.handshakeCount(); n != 1 {
		t.Errorf("got %d handshakes, want 1", n)
	}

	identity := mgr.Identity()
	if identity == nil || identity.Phone != "77015554433" {
		t.Errorf("identity not normalized to digits: %+v", identity)
	}

	// Heartbeat живёт только в состоянии connected
	deadline := time.Now().Add(2 * time.Second)
	for as.pingCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if as.pingCount() < 2 {
		t.Error("heartbeat never emitted while connected")
	}
}

func TestConnectIdempotentWhileConnected(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	for i := 0; i < 5; i++ {
		if err := mgr.Connect(); err != nil {
			t.Fatalf("repeat connect %d failed: %v", i, err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	if n := as.handshakeCount(); n != 1 {
		t.Errorf("duplicate handshakes: got %d, want 1", n)
	}
}

func TestConnectIdentityMissing(t *testing.T) {
	as := newAuthServer(t)
	mgr, creds, _ := newTestManager(t, as.url(), model.RolePassenger)
	creds.info = storage.UserInfo{}

	err := mgr.Connect()
	if err != model.ErrIdentityMissing {
		t.Errorf("got %v, want ErrIdentityMissing", err)
	}
	if mgr.State() != model.StateError {
		t.Errorf("state is %s, want ERROR", mgr.State())
	}
	if as.handshakeCount() != 0 {
		t.Error("handshake attempted without identity")
	}
}

func TestConnectNetworkUnavailable(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, probe := newTestManager(t, as.url(), model.RolePassenger)
	probe.online = false

	err := mgr.Connect()
	if err != model.ErrNetworkUnavailable {
		t.Errorf("got %v, want ErrNetworkUnavailable", err)
	}
	if mgr.State() != model.StateError {
		t.Errorf("state is %s, want ERROR", mgr.State())
	}
}

func TestDisconnectGoesOfflineNotReconnecting(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	mgr.Disconnect()
	waitState(t, mgr, model.StateOffline)

	// Локальное отключение не должно перейти в RECONNECTING
	time.Sleep(200 * time.Millisecond)
	if got := mgr.State(); got != model.StateOffline {
		t.Errorf("state drifted to %s after local disconnect", got)
	}

	// И heartbeat больше не шлёт ping
	before := as.pingCount()
	time.Sleep(100 * time.Millisecond)
	if as.pingCount() != before {
		t.Error("heartbeat kept emitting after disconnect")
	}
}

func TestUnexpectedDropReauthenticates(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	as.drop()
	waitState(t, mgr, model.StateReconnecting)
	waitState(t, mgr, model.StateConnected)

	if n := as.handshakeCount(); n != 2 {
		t.Errorf("got %d handshakes after reconnect, want 2", n)
	}
}

func TestLateAckAfterDisconnectIgnored(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	mgr.Disconnect()
	waitState(t, mgr, model.StateOffline)

	// user:connected, добравшийся до обработчика уже после Disconnect,
	// не должен вернуть сессию в CONNECTED и перезапустить heartbeat
	mgr.onAuthenticated()

	if got := mgr.State(); got != model.StateOffline {
		t.Errorf("stale ack moved state to %s", got)
	}
	if mgr.hb.Running() {
		t.Error("stale ack restarted the heartbeat")
	}
}

func TestConnectErrorStateNoInternalRetry(t *testing.T) {
	mgr, _, _ := newTestManager(t, "ws://127.0.0.1:1/ws", model.RolePassenger)
	// Probe отвечает online, но до сервера не достучаться
	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect returned sync error: %v", err)
	}
	waitState(t, mgr, model.StateError)
	if mgr.LastError() == nil {
		t.Error("no LastError recorded for connect failure")
	}
}

func TestDriverPublisherLifecycle(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RoleDriver)

	pub := NewLocationPublisher(nil, NewSimSampler(51.1, 71.4), time.Hour)
	mgr.AttachLocationPublisher(pub)

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitState(t, mgr, model.StateConnected)

	if !pub.Running() {
		t.Error("publisher not started on authenticated handshake")
	}

	mgr.Disconnect()
	waitState(t, mgr, model.StateOffline)
	if pub.Running() {
		t.Error("publisher still running after disconnect")
	}
}

func TestWaitConnected(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	if mgr.WaitConnected(100 * time.Millisecond) {
		t.Error("WaitConnected true while offline")
	}

	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !mgr.WaitConnected(3 * time.Second) {
		t.Error("WaitConnected false after connect")
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	as := newAuthServer(t)
	mgr, _, _ := newTestManager(t, as.url(), model.RolePassenger)

	ch := mgr.Subscribe()
	if err := mgr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	sawConnected := false
	deadline := time.After(3 * time.Second)
	for !sawConnected {
		select {
		case state := <-ch:
			if state == model.StateConnected {
				sawConnected = true
			}
		case <-deadline:
			t.Fatal("never observed CONNECTED on subscription")
		}
	}
}
