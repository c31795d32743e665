package restore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
)

// ResumeClient fetches the authoritative resume snapshot after a
// reconnect: POST /reconnect/resume keyed by phone number.
type ResumeClient struct {
	baseURL string
	http    *http.Client
}

func NewResumeClient(baseURL string, timeout time.Duration) *ResumeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResumeClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type resumeRequest struct {
	Phone string `json:"phone"`
}

type resumeTripDetails struct {
	Driver      *model.PartyInfo `json:"driver,omitempty"`
	Passenger   *model.PartyInfo `json:"passenger,omitempty"`
	Pickup      model.RoutePoint `json:"pickup"`
	Destination model.RoutePoint `json:"destination"`
	Fare        float64          `json:"fare"`
	// Текущая позиция водителя тоже приходит в двух вариантах полей
	DriverLocation *model.RoutePoint `json:"driverLocation,omitempty"`
}

type resumeResponse struct {
	Success     bool               `json:"success"`
	State       string             `json:"state"`
	Role        string             `json:"role"`
	RideID      string             `json:"rideId"`
	TripDetails *resumeTripDetails `json:"tripDetails,omitempty"`
}

// Snapshot is the parsed resume outcome: at most one of Trip / Rating is
// set.
type Snapshot struct {
	State  model.TripState
	Trip   *model.TripDetails
	Rating *model.RatingPrompt
}

func (c *ResumeClient) Fetch(ctx context.Context, phone string, role model.Role) (*Snapshot, error) {
	body, err := json.Marshal(resumeRequest{Phone: phone})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resume request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reconnect/resume", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build resume request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resume request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resume request returned status %d", resp.StatusCode)
	}

	var parsed resumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode resume response: %w", err)
	}

	if !parsed.Success {
		logger.Debug("resume_no_session", "No active trip to resume", "", "")
		return &Snapshot{State: model.TripNone}, nil
	}

	state := model.TripState(parsed.State)
	switch state {
	case model.TripMatched, model.TripArrived, model.TripOnTrip:
		// Активное состояние без tripDetails — битый ответ, не паника
		if parsed.TripDetails == nil {
			return nil, fmt.Errorf("resume response for state %q has no trip details", parsed.State)
		}
		return &Snapshot{State: state, Trip: buildTrip(parsed, role)}, nil
	case model.TripRatingPending:
		return &Snapshot{State: state, Rating: buildRating(parsed, role)}, nil
	default:
		return &Snapshot{State: model.TripNone}, nil
	}
}

// buildTrip rehydrates the role-specific trip shape, normalizing the
// coordinate field variants into the canonical Location.
func buildTrip(parsed resumeResponse, role model.Role) *model.TripDetails {
	trip := &model.TripDetails{
		RideID:      parsed.RideID,
		State:       model.TripState(parsed.State),
		Pickup:      parsed.TripDetails.Pickup.Normalize(),
		Destination: parsed.TripDetails.Destination.Normalize(),
		Fare:        parsed.TripDetails.Fare,
	}

	counterpart := counterpartOf(parsed.TripDetails, role)
	if counterpart != nil {
		trip.CounterpartPhone = counterpart.Phone
		trip.CounterpartName = counterpart.Name
	}

	if parsed.TripDetails.DriverLocation != nil {
		loc := parsed.TripDetails.DriverLocation.Normalize()
		trip.DriverLocation = &loc
	}
	return trip
}

func buildRating(parsed resumeResponse, role model.Role) *model.RatingPrompt {
	rating := &model.RatingPrompt{RideID: parsed.RideID}
	if parsed.TripDetails != nil {
		rating.Fare = parsed.TripDetails.Fare
		if counterpart := counterpartOf(parsed.TripDetails, role); counterpart != nil {
			rating.CounterpartPhone = counterpart.Phone
		}
	}
	return rating
}

func counterpartOf(details *resumeTripDetails, role model.Role) *model.PartyInfo {
	if details == nil {
		return nil
	}
	if role == model.RoleDriver {
		return details.Passenger
	}
	return details.Driver
}
