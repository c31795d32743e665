package session

import (
	"math/rand"
	"sync"
	"time"

	"ride-hail-client/internal/common/model"
)

// SimSampler stands in for the platform geolocation API: a fixed origin
// with a small random walk. Useful for development and tests; real
// builds plug in the device sampler.
type SimSampler struct {
	mu  sync.Mutex
	lat float64
	lng float64
}

func NewSimSampler(lat, lng float64) *SimSampler {
	return &SimSampler{lat: lat, lng: lng}
}

func (s *SimSampler) Sample() (model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lat += (rand.Float64() - 0.5) * 0.0005
	s.lng += (rand.Float64() - 0.5) * 0.0005
	return model.Location{
		Latitude:  s.lat,
		Longitude: s.lng,
		Accuracy:  10,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}
