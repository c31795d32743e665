package netprobe

import (
	"net"
	"net/url"
	"time"
)

// Probe reports whether the device currently has network connectivity.
type Probe interface {
	IsOnline() bool
}

// DialProbe checks connectivity by opening a short-lived TCP connection
// to the server host itself, so "online" means "can reach our backend"
// rather than "has any route".
type DialProbe struct {
	Address string
	Timeout time.Duration
}

func NewDialProbe(address string, timeout time.Duration) *DialProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DialProbe{Address: address, Timeout: timeout}
}

// FromWSURL derives the probe address from the websocket endpoint.
func FromWSURL(wsURL string, timeout time.Duration) *DialProbe {
	addr := ""
	if u, err := url.Parse(wsURL); err == nil {
		host := u.Hostname()
		port := u.Port()
		if port == "" {
			switch u.Scheme {
			case "wss", "https":
				port = "443"
			default:
				port = "80"
			}
		}
		addr = net.JoinHostPort(host, port)
	}
	return NewDialProbe(addr, timeout)
}

func (p *DialProbe) IsOnline() bool {
	if p.Address == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", p.Address, p.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
