package device

import (
	"log"
	"net/http"
	"os"
	"strings"
)

// Service authenticates inbound requests against a device Store. Construct
// one explicitly per process; there is no hidden global state.
type Service struct {
	store  *Store
	logger *log.Logger
}

func NewService(store *Store) *Service {
	return &Service{store: store, logger: log.New(os.Stdout, "[DEVICE-AUTH] ", log.LstdFlags)}
}

// Authenticate looks up a device by id and marks it online. Token
// validation itself is a placeholder pending a real credential scheme --
// any non-empty token is accepted once the device is known.
func (s *Service) Authenticate(deviceID, token string) (*Device, bool) {
	if deviceID == "" || token == "" {
		return nil, false
	}
	d, ok := s.store.Get(deviceID)
	if !ok {
		return nil, false
	}
	s.store.UpdateStatus(deviceID, StatusOnline)
	return d, true
}

// GetTrustLevel returns the trust level for a known device, or TrustPending
// if the device is unknown.
func (s *Service) GetTrustLevel(deviceID string) TrustLevel {
	d, ok := s.store.Get(deviceID)
	if !ok {
		return TrustPending
	}
	return d.TrustLevel
}

// IdentifyRequest derives a device id from the request: the Bearer token's
// device-id prefix (the part before the first colon, or its first 16
// characters if no colon is present) if an Authorization header is present,
// else the remote peer address.
func IdentifyRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if idx := strings.Index(token, ":"); idx > 0 {
			return token[:idx]
		}
		if len(token) > 16 {
			return token[:16]
		}
		return token
	}
	return r.RemoteAddr
}

// IsLocalhost reports whether the request identity resolves to a loopback
// address, exempting it from rate limiting.
func IsLocalhost(remoteAddr string) bool {
	host := remoteAddr
	if idx := strings.LastIndex(remoteAddr, ":"); idx > 0 {
		host = remoteAddr[:idx]
	}
	host = strings.Trim(host, "[]")
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}
