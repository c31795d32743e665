package negotiation

import (
	"fmt"
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
)

// RequestBook is the driver side of the negotiation: the live set of
// dispatched ride requests, each with its own countdown. A driver may
// hold several pending requests at once; exactly one offer submission is
// allowed per request.
type RequestBook struct {
	emitter       Emitter
	defaultExpiry time.Duration

	OnExpired func(req model.RideRequest)
	OnMatched func(p model.MatchedPayload)
	OnNotice  func(message string)

	mu       sync.Mutex
	driverID string
	requests map[string]*requestEntry
	order    []string // ride ids, newest first
	nextSeq  uint64
}

type requestEntry struct {
	req   model.RideRequest
	timer *time.Timer
	seq   uint64
}

func NewRequestBook(emitter Emitter, defaultExpiry time.Duration) *RequestBook {
	if defaultExpiry <= 0 {
		defaultExpiry = 30 * time.Second
	}
	return &RequestBook{
		emitter:       emitter,
		defaultExpiry: defaultExpiry,
		requests:      make(map[string]*requestEntry),
	}
}

// SetDriverID is called once identity is resolved; the id rides along on
// every respond_to_ride message.
func (b *RequestBook) SetDriverID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.driverID = id
}

// HandleNewRequest upserts the request for the ride and arms its
// countdown. A re-dispatch for the same ride replaces the older entry.
func (b *RequestBook) HandleNewRequest(p model.NewRequestPayload) {
	expiresIn := b.defaultExpiry
	if p.ExpiresInMs > 0 {
		expiresIn = time.Duration(p.ExpiresInMs) * time.Millisecond
	}

	now := time.Now()
	req := model.RideRequest{
		RideID:         p.RideID,
		PassengerPhone: p.Passenger.Phone,
		PassengerName:  p.Passenger.Name,
		PickupAddress:  p.Pickup.Address,
		PickupLocation: p.Pickup.Normalize(),
		DestAddress:    p.Destination.Address,
		DestLocation:   p.Destination.Normalize(),
		OfferAmount:    Round2(p.OfferAmount),
		CreatedAt:      now,
		ExpiresAt:      now.Add(expiresIn),
		Status:         model.RequestIdle,
	}

	b.mu.Lock()
	if old, ok := b.requests[p.RideID]; ok {
		old.timer.Stop()
		b.removeFromOrder(p.RideID)
	}

	b.nextSeq++
	seq := b.nextSeq
	entry := &requestEntry{req: req, seq: seq}
	entry.timer = time.AfterFunc(expiresIn, func() {
		b.expire(p.RideID, seq)
	})
	b.requests[p.RideID] = entry
	b.order = append([]string{p.RideID}, b.order...)
	b.mu.Unlock()

	logger.Info("request_received",
		fmt.Sprintf("New ride request, suggested fare %.2f", req.OfferAmount), "", p.RideID)
}

func (b *RequestBook) expire(rideID string, seq uint64) {
	b.mu.Lock()
	entry, ok := b.requests[rideID]
	if !ok || entry.seq != seq || entry.req.Status != model.RequestIdle {
		b.mu.Unlock()
		return
	}
	delete(b.requests, rideID)
	b.removeFromOrder(rideID)
	req := entry.req
	cb := b.OnExpired
	b.mu.Unlock()

	logger.Info("request_expired", "Ride request expired locally", "", rideID)
	if cb != nil {
		cb(req)
	}
}

// Select returns the request for a detail view without consuming it.
func (b *RequestBook) Select(rideID string) (model.RideRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.requests[rideID]
	if !ok {
		return model.RideRequest{}, model.ErrRequestNotFound
	}
	return entry.req, nil
}

// SubmitOffer sends the driver's counter-offer. Legal exactly once per
// request. The countdown stops but the request stays visible in its
// pending state until the server confirms match or failure.
func (b *RequestBook) SubmitOffer(rideID string, amount float64) error {
	b.mu.Lock()
	entry, ok := b.requests[rideID]
	if !ok {
		b.mu.Unlock()
		return model.ErrRequestNotFound
	}
	if entry.req.Status != model.RequestIdle {
		b.mu.Unlock()
		return model.ErrAlreadySubmitted
	}
	entry.req.Status = model.RequestSubmitted
	entry.timer.Stop()
	driverID := b.driverID
	b.mu.Unlock()

	logger.Info("offer_submit", fmt.Sprintf("Submitting offer %.2f", amount), "", rideID)
	return b.emitter.Emit(model.EventRespondToRide, model.RespondToRidePayload{
		RideID:       rideID,
		DriverID:     driverID,
		CurrentOffer: Round2(amount),
		ResponseType: "accept",
	})
}

// Decline removes the request and tells the server the driver passed.
func (b *RequestBook) Decline(rideID string) error {
	b.mu.Lock()
	entry, ok := b.requests[rideID]
	if !ok {
		b.mu.Unlock()
		return model.ErrRequestNotFound
	}
	entry.timer.Stop()
	delete(b.requests, rideID)
	b.removeFromOrder(rideID)
	driverID := b.driverID
	b.mu.Unlock()

	logger.Info("request_decline", "Declining ride request", "", rideID)
	return b.emitter.Emit(model.EventRespondToRide, model.RespondToRidePayload{
		RideID:       rideID,
		DriverID:     driverID,
		ResponseType: "decline",
	})
}

// HandleMatched clears the book: the driver is now committed to a ride.
func (b *RequestBook) HandleMatched(p model.MatchedPayload) {
	b.mu.Lock()
	for id, entry := range b.requests {
		entry.timer.Stop()
		delete(b.requests, id)
	}
	b.order = nil
	cb := b.OnMatched
	b.mu.Unlock()

	logger.Info("ride_matched", "Matched with passenger "+p.PassengerPhone, "", p.RideID)
	if cb != nil {
		cb(p)
	}
}

// HandleMatchFailed drops a stale submitted request when the server
// declares the response expired.
func (b *RequestBook) HandleMatchFailed(p model.MatchFailedPayload) {
	b.mu.Lock()
	removed := false
	for id, entry := range b.requests {
		if entry.req.Status == model.RequestSubmitted {
			entry.timer.Stop()
			delete(b.requests, id)
			b.removeFromOrder(id)
			removed = true
		}
	}
	cb := b.OnNotice
	b.mu.Unlock()

	logger.Warn("match_failed", "Match failed: "+p.Reason, "", p.RideID, "")
	if removed && cb != nil {
		cb("match failed: " + p.Reason)
	}
}

// HandleRideCancelled removes that ride's request if present.
func (b *RequestBook) HandleRideCancelled(p model.RideCancelledPayload) {
	b.mu.Lock()
	entry, ok := b.requests[p.RideID]
	if ok {
		entry.timer.Stop()
		delete(b.requests, p.RideID)
		b.removeFromOrder(p.RideID)
	}
	cb := b.OnNotice
	b.mu.Unlock()

	if ok {
		logger.Warn("ride_cancelled",
			fmt.Sprintf("Ride cancelled by %s: %s", p.CancelledBy, p.Reason), "", p.RideID, "")
		if cb != nil {
			cb("ride cancelled: " + p.Reason)
		}
	}
}

// Requests returns a newest-first snapshot.
func (b *RequestBook) Requests() []model.RideRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.RideRequest, 0, len(b.order))
	for _, id := range b.order {
		if entry, ok := b.requests[id]; ok {
			out = append(out, entry.req)
		}
	}
	return out
}

func (b *RequestBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, entry := range b.requests {
		entry.timer.Stop()
		delete(b.requests, id)
	}
	b.order = nil
}

func (b *RequestBook) removeFromOrder(rideID string) {
	for i, id := range b.order {
		if id == rideID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
