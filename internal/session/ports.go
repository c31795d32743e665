package session

import (
	"ride-hail-client/internal/common/model"
	"ride-hail-client/internal/storage"
)

// CredentialSource is the device-local credential storage collaborator.
type CredentialSource interface {
	GetUserInfo() (*storage.UserInfo, error)
	GetOrCreateDeviceID() (string, error)
}

// Sampler is the geolocation collaborator. Sample is best effort; a
// failure means "no location available right now".
type Sampler interface {
	Sample() (model.Location, error)
}
