package model

import "errors"

var (
	ErrIdentityMissing    = errors.New("identity missing: no phone number in credential store")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrHandshakeTimeout   = errors.New("handshake timeout")
	ErrConnectFailed      = errors.New("connect error")
	ErrResponseExpired    = errors.New("response expired")
	ErrAlreadySubmitted   = errors.New("offer already submitted for this request")
	ErrOfferNotIdle       = errors.New("offer is not in idle state")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrRequestNotFound    = errors.New("ride request not found")
	ErrNotConnected       = errors.New("socket is not connected")
)
