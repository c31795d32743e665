package model

import "time"

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Identity разрешается один раз на попытку подключения
type Identity struct {
	Role     Role
	Phone    string // digits only
	DeviceID string
}

// RideOffer is what a passenger sees after a driver responded to their
// ride request. Keyed by DriverPhone: a newer offer from the same driver
// replaces the previous one.
type RideOffer struct {
	RideID      string
	DriverPhone string
	DriverName  string
	Amount      float64
	ExpiresIn   time.Duration
	ExpiresAt   time.Time
	ReceivedAt  time.Time
	Status      OfferStatus
}

// RideRequest is what a driver sees when a new ride is dispatched nearby.
// Exactly one offer submission is allowed per request.
type RideRequest struct {
	RideID         string
	PassengerPhone string
	PassengerName  string
	PickupAddress  string
	PickupLocation Location
	DestAddress    string
	DestLocation   Location
	OfferAmount    float64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Status         RequestStatus
}

// TripDetails is the rehydrated in-progress ride after a resume.
type TripDetails struct {
	RideID           string
	State            TripState
	CounterpartPhone string
	CounterpartName  string
	Fare             float64
	Pickup           Location
	Destination      Location
	DriverLocation   *Location
}

// RatingPrompt is the minimal post-trip payload when resume finds a
// rating_pending state.
type RatingPrompt struct {
	RideID           string
	CounterpartPhone string
	Fare             float64
}
