package model

import "encoding/json"

// Named events on the realtime channel. The server owns this vocabulary;
// renaming anything here breaks the protocol.
const (
	// client -> server
	EventUserConnect    = "user:connect"
	EventUserPing       = "user:ping"
	EventLocationUpdate = "driver:location_update"
	EventRespondToRide  = "driver:respond_to_ride"
	EventSelectDriver   = "passenger:select_driver"
	EventDeclineDriver  = "passenger:decline_driver"
	EventDriverArrived  = "ride:driver_arrived"
	EventStartTrip      = "ride:start_trip"
	EventJoinRoom       = "ride:join_room"

	// server -> client
	EventUserConnected     = "user:connected"
	EventNewRequest        = "ride:new_request"
	EventDriverResponse    = "ride:driver_response"
	EventRideMatched       = "ride:matched"
	EventMatchFailed       = "ride:match_failed"
	EventDriverUnavailable = "driver_unavailable"
	EventRideCancelled     = "ride_cancelled"
)

// Envelope обёртка для именованных сообщений
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ConnectPayload struct {
	Phone    string    `json:"phone"`
	UserType Role      `json:"userType"`
	Location *Location `json:"location,omitempty"`
}

type RespondToRidePayload struct {
	RideID       string  `json:"rideId"`
	DriverID     string  `json:"driverId"`
	CurrentOffer float64 `json:"currentOffer"`
	ResponseType string  `json:"responseType"`
}

type SelectDriverPayload struct {
	RideID      string `json:"rideId"`
	DriverPhone string `json:"driverPhone"`
}

type DeclineDriverPayload struct {
	RideID      string `json:"rideId"`
	DriverPhone string `json:"driverPhone"`
}

type DriverArrivedPayload struct {
	RideID      string `json:"rideId"`
	DriverPhone string `json:"driverPhone"`
}

type StartTripPayload struct {
	RideID string `json:"rideId"`
}

type JoinRoomPayload struct {
	RideID string `json:"rideId"`
}

type PartyInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RoutePoint accepts both coordinate field spellings the server is known
// to emit (lat/lng on dispatch messages, latitude/longitude on resume).
type RoutePoint struct {
	Address   string  `json:"address,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lng       float64 `json:"lng,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Normalize collapses the lat/lng vs latitude/longitude variants into the
// canonical Location shape.
func (p RoutePoint) Normalize() Location {
	lat, lng := p.Latitude, p.Longitude
	if lat == 0 && lng == 0 {
		lat, lng = p.Lat, p.Lng
	}
	return Location{Latitude: lat, Longitude: lng}
}

type NewRequestPayload struct {
	RideID      string     `json:"rideId"`
	Passenger   PartyInfo  `json:"passenger"`
	Pickup      RoutePoint `json:"pickup"`
	Destination RoutePoint `json:"destination"`
	OfferAmount float64    `json:"offerAmount"`
	ExpiresInMs int64      `json:"expiresIn,omitempty"`
}

type DriverResponsePayload struct {
	RideID      string  `json:"rideId"`
	DriverPhone string  `json:"driverPhone"`
	DriverName  string  `json:"driverName,omitempty"`
	Amount      float64 `json:"amount"`
	ExpiresInMs int64   `json:"expiresIn,omitempty"`
}

type MatchedPayload struct {
	RideID           string  `json:"rideId"`
	DriverPhone      string  `json:"driverPhone,omitempty"`
	PassengerPhone   string  `json:"passengerPhone,omitempty"`
	Fare             float64 `json:"fare,omitempty"`
}

type MatchFailedPayload struct {
	RideID string `json:"rideId,omitempty"`
	Reason string `json:"reason"`
}

type DriverUnavailablePayload struct {
	DriverPhone string `json:"driverPhone"`
}

type RideCancelledPayload struct {
	RideID      string `json:"rideId,omitempty"`
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelledBy"`
}
