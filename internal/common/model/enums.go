package model

type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

type ConnectionState string

const (
	StateOffline      ConnectionState = "OFFLINE"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateReconnecting ConnectionState = "RECONNECTING"
	StateError        ConnectionState = "ERROR"
)

type TripState string

const (
	TripMatched       TripState = "matched"
	TripArrived       TripState = "arrived"
	TripOnTrip        TripState = "on_trip"
	TripRatingPending TripState = "rating_pending"
	TripNone          TripState = "none"
)

// Статус оффера на стороне пассажира
type OfferStatus string

const (
	OfferIdle       OfferStatus = "IDLE"
	OfferSubmitting OfferStatus = "SUBMITTING"
	OfferAccepted   OfferStatus = "ACCEPTED"
)

type RequestStatus string

const (
	RequestIdle      RequestStatus = "IDLE"
	RequestSubmitted RequestStatus = "SUBMITTED"
)
