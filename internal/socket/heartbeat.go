package socket

import (
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
)

// Heartbeat emits user:ping at a fixed interval while started. It runs
// iff the session is connected; the manager stops it on every transition
// away from connected.
type Heartbeat struct {
	sock     *Socket
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewHeartbeat(sock *Socket, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Heartbeat{sock: sock, interval: interval}
}

// Start is a no-op if the heartbeat is already running.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return
	}
	stop := make(chan struct{})
	h.stop = stop

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := h.sock.Emit(model.EventUserPing, struct{}{}); err != nil {
					logger.Debug("heartbeat_skip", "Ping skipped: "+err.Error(), "", "")
				}
			}
		}
	}()
}

// Stop is a no-op if the heartbeat is not running.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stop = nil
}

func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}
