package negotiation

import (
	"sync/atomic"
	"testing"
	"time"

	"ride-hail-client/internal/common/model"
)

func newRequest(rideID string, amount float64, expiresMs int64) model.NewRequestPayload {
	return model.NewRequestPayload{
		RideID:      rideID,
		Passenger:   model.PartyInfo{Name: "Aruzhan", Phone: "77015554433"},
		Pickup:      model.RoutePoint{Address: "Abay 10", Lat: 51.1, Lng: 71.4},
		Destination: model.RoutePoint{Address: "Turan 37", Lat: 51.2, Lng: 71.5},
		OfferAmount: amount,
		ExpiresInMs: expiresMs,
	}
}

func TestRequestExpiryRemovesAndFiresOnce(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)

	var expired atomic.Int32
	done := make(chan struct{})
	book.OnExpired = func(model.RideRequest) {
		if expired.Add(1) == 1 {
			close(done)
		}
	}

	book.HandleNewRequest(newRequest("R1", 3.00, 30))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}

	time.Sleep(100 * time.Millisecond)
	if n := expired.Load(); n != 1 {
		t.Errorf("expiry fired %d times, want 1", n)
	}
	if len(book.Requests()) != 0 {
		t.Error("expired request still present")
	}
}

func TestCoordinateVariantsNormalized(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)

	payload := newRequest("R1", 3.00, 0)
	payload.Pickup = model.RoutePoint{Address: "Abay 10", Latitude: 51.1, Longitude: 71.4}
	book.HandleNewRequest(payload)

	req, err := book.Select("R1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if req.PickupLocation.Latitude != 51.1 || req.PickupLocation.Longitude != 71.4 {
		t.Errorf("pickup not normalized: %+v", req.PickupLocation)
	}
}

func TestSelectDoesNotConsume(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)
	book.HandleNewRequest(newRequest("R1", 3.00, 0))

	if _, err := book.Select("R1"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if _, err := book.Select("R1"); err != nil {
		t.Errorf("second select failed: %v", err)
	}
	if len(book.Requests()) != 1 {
		t.Error("select consumed the request")
	}
}

func TestSubmitOfferOnlyOnce(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)
	book.SetDriverID("77017778899")

	var expired atomic.Int32
	book.OnExpired = func(model.RideRequest) { expired.Add(1) }

	book.HandleNewRequest(newRequest("R1", 3.00, 40))

	if err := book.SubmitOffer("R1", 3.5); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := book.SubmitOffer("R1", 4.0); err != model.ErrAlreadySubmitted {
		t.Errorf("second submit: got %v, want ErrAlreadySubmitted", err)
	}

	// Остаётся видимым в состоянии pending, таймер остановлен
	reqs := book.Requests()
	if len(reqs) != 1 || reqs[0].Status != model.RequestSubmitted {
		t.Fatalf("expected one SUBMITTED request, got %+v", reqs)
	}
	time.Sleep(120 * time.Millisecond)
	if n := expired.Load(); n != 0 {
		t.Errorf("expiry fired %d times after submit", n)
	}

	sent := emitter.messages()
	if len(sent) != 1 || sent[0].event != model.EventRespondToRide {
		t.Fatalf("expected one %s message, got %+v", model.EventRespondToRide, sent)
	}
	payload, ok := sent[0].data.(model.RespondToRidePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", sent[0].data)
	}
	if payload.DriverID != "77017778899" || payload.CurrentOffer != 3.5 || payload.ResponseType != "accept" {
		t.Errorf("bad respond payload: %+v", payload)
	}
}

func TestMultiplePendingRequestsIndependentExpiry(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)

	var expired atomic.Int32
	book.OnExpired = func(model.RideRequest) { expired.Add(1) }

	book.HandleNewRequest(newRequest("R1", 3.00, 30))
	book.HandleNewRequest(newRequest("R2", 4.00, 500))

	time.Sleep(150 * time.Millisecond)

	reqs := book.Requests()
	if len(reqs) != 1 || reqs[0].RideID != "R2" {
		t.Fatalf("expected only R2 to survive, got %+v", reqs)
	}
	if n := expired.Load(); n != 1 {
		t.Errorf("got %d expiries, want 1", n)
	}
}

func TestRequestUpsertLastWriteWins(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)

	book.HandleNewRequest(newRequest("R1", 3.00, 0))
	book.HandleNewRequest(newRequest("R1", 4.50, 0))

	reqs := book.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].OfferAmount != 4.50 {
		t.Errorf("expected latest amount 4.50, got %.2f", reqs[0].OfferAmount)
	}
}

func TestDeclineRemovesRequest(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)
	book.SetDriverID("77017778899")
	book.HandleNewRequest(newRequest("R1", 3.00, 0))

	if err := book.Decline("R1"); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if len(book.Requests()) != 0 {
		t.Error("declined request still present")
	}

	sent := emitter.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	payload := sent[0].data.(model.RespondToRidePayload)
	if payload.ResponseType != "decline" {
		t.Errorf("got responseType %q, want decline", payload.ResponseType)
	}
}

func TestMatchedClearsRequests(t *testing.T) {
	emitter := &fakeEmitter{}
	book := NewRequestBook(emitter, time.Minute)

	book.HandleNewRequest(newRequest("R1", 3.00, 0))
	book.HandleNewRequest(newRequest("R2", 4.00, 0))

	book.HandleMatched(model.MatchedPayload{RideID: "R1", PassengerPhone: "77015554433"})

	if len(book.Requests()) != 0 {
		t.Error("requests remain after match")
	}
}
