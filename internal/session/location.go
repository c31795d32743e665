package session

import (
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
	"ride-hail-client/internal/socket"
)

// LocationPublisher is the driver's background task: it samples the
// device position on an interval and emits driver:location_update. It
// never touches negotiation state; its only output is the channel.
type LocationPublisher struct {
	sock     *socket.Socket
	sampler  Sampler
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewLocationPublisher(sock *socket.Socket, sampler Sampler, interval time.Duration) *LocationPublisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LocationPublisher{sock: sock, sampler: sampler, interval: interval}
}

// Start is idempotent: a second call while running is a no-op.
func (p *LocationPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.publish()
			}
		}
	}()
	logger.Info("location_publisher_started", "Background location task started", "", "")
}

func (p *LocationPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
	logger.Info("location_publisher_stopped", "Background location task stopped", "", "")
}

func (p *LocationPublisher) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// SampleOnce exposes a single best-effort fix, used for the handshake
// payload.
func (p *LocationPublisher) SampleOnce() (model.Location, error) {
	loc, err := p.sampler.Sample()
	if err != nil {
		return model.Location{}, err
	}
	if loc.Timestamp == 0 {
		loc.Timestamp = time.Now().UnixMilli()
	}
	return loc, nil
}

func (p *LocationPublisher) publish() {
	loc, err := p.SampleOnce()
	if err != nil {
		logger.Debug("location_sample_failed", err.Error(), "", "")
		return
	}
	if err := p.sock.Emit(model.EventLocationUpdate, loc); err != nil {
		logger.Debug("location_publish_skipped", err.Error(), "", "")
	}
}
