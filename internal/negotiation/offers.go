package negotiation

import (
	"fmt"
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
)

// OfferBook is the passenger side of the negotiation: the live set of
// driver offers, each with its own countdown. Keyed by driver phone; a
// newer offer from the same driver silently replaces the older one.
type OfferBook struct {
	emitter       Emitter
	defaultExpiry time.Duration

	// Вызываются без удержания мьютекса
	OnExpired func(offer model.RideOffer)
	OnMatched func(p model.MatchedPayload)
	OnNotice  func(message string)

	mu       sync.Mutex
	offers   map[string]*offerEntry
	order    []string // driver phones, newest first
	nextSeq  uint64
	matched  bool
	rideID   string
	accepted *model.RideOffer // выигравший оффер после ride:matched
}

type offerEntry struct {
	offer model.RideOffer
	timer *time.Timer
	seq   uint64
}

func NewOfferBook(emitter Emitter, defaultExpiry time.Duration) *OfferBook {
	if defaultExpiry <= 0 {
		defaultExpiry = 30 * time.Second
	}
	return &OfferBook{
		emitter:       emitter,
		defaultExpiry: defaultExpiry,
		offers:        make(map[string]*offerEntry),
	}
}

// HandleDriverResponse upserts the offer for the responding driver and
// arms its countdown. Last write wins for the same driver.
func (b *OfferBook) HandleDriverResponse(p model.DriverResponsePayload) {
	b.mu.Lock()

	if b.matched {
		b.mu.Unlock()
		logger.Debug("offer_after_match_ignored", "Offer received after match", "", p.RideID)
		return
	}

	expiresIn := b.defaultExpiry
	if p.ExpiresInMs > 0 {
		expiresIn = time.Duration(p.ExpiresInMs) * time.Millisecond
	}

	now := time.Now()
	offer := model.RideOffer{
		RideID:      p.RideID,
		DriverPhone: p.DriverPhone,
		DriverName:  p.DriverName,
		Amount:      Round2(p.Amount),
		ExpiresIn:   expiresIn,
		ExpiresAt:   now.Add(expiresIn),
		ReceivedAt:  now,
		Status:      model.OfferIdle,
	}

	if old, ok := b.offers[p.DriverPhone]; ok {
		old.timer.Stop()
		b.removeFromOrder(p.DriverPhone)
	}

	b.nextSeq++
	seq := b.nextSeq
	entry := &offerEntry{offer: offer, seq: seq}
	entry.timer = time.AfterFunc(expiresIn, func() {
		b.expire(p.DriverPhone, seq)
	})
	b.offers[p.DriverPhone] = entry
	b.order = append([]string{p.DriverPhone}, b.order...)

	b.mu.Unlock()
	logger.Info("offer_received",
		fmt.Sprintf("Offer %.2f from driver %s", offer.Amount, p.DriverPhone), "", p.RideID)
}

// expire fires at most once per offer instance: any terminal transition
// bumps the entry out of the map or stops the timer first.
func (b *OfferBook) expire(driverPhone string, seq uint64) {
	b.mu.Lock()
	entry, ok := b.offers[driverPhone]
	if !ok || entry.seq != seq || entry.offer.Status != model.OfferIdle {
		b.mu.Unlock()
		return
	}
	delete(b.offers, driverPhone)
	b.removeFromOrder(driverPhone)
	offer := entry.offer
	cb := b.OnExpired
	b.mu.Unlock()

	logger.Info("offer_expired", "Offer from "+driverPhone+" expired locally", "", offer.RideID)
	if cb != nil {
		cb(offer)
	}
}

// Accept transitions an idle offer to SUBMITTING and tells the server.
// The countdown stops; the authoritative outcome arrives as ride:matched
// or ride:match_failed.
func (b *OfferBook) Accept(driverPhone string) error {
	b.mu.Lock()
	entry, ok := b.offers[driverPhone]
	if !ok {
		b.mu.Unlock()
		return model.ErrOfferNotFound
	}
	if entry.offer.Status != model.OfferIdle {
		b.mu.Unlock()
		return model.ErrOfferNotIdle
	}
	entry.offer.Status = model.OfferSubmitting
	entry.timer.Stop()
	rideID := entry.offer.RideID
	b.mu.Unlock()

	logger.Info("offer_accept", "Selecting driver "+driverPhone, "", rideID)
	return b.emitter.Emit(model.EventSelectDriver, model.SelectDriverPayload{
		RideID:      rideID,
		DriverPhone: driverPhone,
	})
}

// Decline removes the offer immediately, without waiting for expiry and
// without an expiry notification.
func (b *OfferBook) Decline(driverPhone string) error {
	b.mu.Lock()
	entry, ok := b.offers[driverPhone]
	if !ok {
		b.mu.Unlock()
		return model.ErrOfferNotFound
	}
	entry.timer.Stop()
	delete(b.offers, driverPhone)
	b.removeFromOrder(driverPhone)
	rideID := entry.offer.RideID
	b.mu.Unlock()

	logger.Info("offer_decline", "Declining driver "+driverPhone, "", rideID)
	return b.emitter.Emit(model.EventDeclineDriver, model.DeclineDriverPayload{
		RideID:      rideID,
		DriverPhone: driverPhone,
	})
}

// HandleMatched is terminal: every pending offer is dropped and no
// further offer messages for this ride are processed. The winning offer
// is retained as ACCEPTED for the ride screen.
func (b *OfferBook) HandleMatched(p model.MatchedPayload) {
	b.mu.Lock()
	if entry, ok := b.offers[p.DriverPhone]; ok {
		entry.offer.Status = model.OfferAccepted
		won := entry.offer
		b.accepted = &won
	}
	for phone, entry := range b.offers {
		entry.timer.Stop()
		delete(b.offers, phone)
	}
	b.order = nil
	b.matched = true
	b.rideID = p.RideID
	cb := b.OnMatched
	b.mu.Unlock()

	logger.Info("ride_matched", "Matched with driver "+p.DriverPhone, "", p.RideID)
	if cb != nil {
		cb(p)
	}
}

// HandleMatchFailed clears optimistic SUBMITTING state when the server
// declares the selection stale.
func (b *OfferBook) HandleMatchFailed(p model.MatchFailedPayload) {
	b.mu.Lock()
	removed := false
	for phone, entry := range b.offers {
		if entry.offer.Status == model.OfferSubmitting {
			entry.timer.Stop()
			delete(b.offers, phone)
			b.removeFromOrder(phone)
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

// HandleDriverUnavailable silently drops that driver's offer.
func (b *OfferBook) HandleDriverUnavailable(p model.DriverUnavailablePayload) {
	b.mu.Lock()
	entry, ok := b.offers[p.DriverPhone]
	if ok {
		entry.timer.Stop()
		delete(b.offers, p.DriverPhone)
		b.removeFromOrder(p.DriverPhone)
	}
	b.mu.Unlock()

	if ok {
		logger.Debug("driver_unavailable", "Dropped offer from "+p.DriverPhone, "", "")
	}
}

// HandleRideCancelled clears everything and surfaces one notification.
func (b *OfferBook) HandleRideCancelled(p model.RideCancelledPayload) {
	b.mu.Lock()
	for phone, entry := range b.offers {
		entry.timer.Stop()
		delete(b.offers, phone)
	}
	b.order = nil
	cb := b.OnNotice
	b.mu.Unlock()

	logger.Warn("ride_cancelled",
		fmt.Sprintf("Ride cancelled by %s: %s", p.CancelledBy, p.Reason), "", p.RideID, "")
	if cb != nil {
		cb("ride cancelled: " + p.Reason)
	}
}

// Offers returns a newest-first snapshot.
func (b *OfferBook) Offers() []model.RideOffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.RideOffer, 0, len(b.order))
	for _, phone := range b.order {
		if entry, ok := b.offers[phone]; ok {
			out = append(out, entry.offer)
		}
	}
	return out
}

func (b *OfferBook) Matched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matched
}

// Accepted returns the winning offer after a match, nil before one.
func (b *OfferBook) Accepted() *model.RideOffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accepted == nil {
		return nil
	}
	offer := *b.accepted
	return &offer
}

// Reset prepares the book for the next ride (e.g. after cancellation or
// trip completion).
func (b *OfferBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for phone, entry := range b.offers {
		entry.timer.Stop()
		delete(b.offers, phone)
	}
	b.order = nil
	b.matched = false
	b.rideID = ""
	b.accepted = nil
}

func (b *OfferBook) removeFromOrder(driverPhone string) {
	for i, phone := range b.order {
		if phone == driverPhone {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
