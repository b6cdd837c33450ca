package device

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PairingRequest is an outstanding invitation to pair a new device.
type PairingRequest struct {
	RequestID  string    `json:"request_id"`
	Code       string    `json:"code"`
	QRData     string    `json:"qr_data"`
	ExpiresAt  time.Time `json:"expires_at"`
	DeviceName string    `json:"device_name"`
}

type qrPayload struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Wizard    string `json:"wizard"`
	Expires   string `json:"expires"`
}

const defaultPairingTTL = 5 * time.Minute

// PairingService issues and completes pairing codes against a device Store.
type PairingService struct {
	mu             sync.Mutex
	store          *Store
	wizardAddress  string
	pending        map[string]*PairingRequest // keyed by unformatted code
}

func NewPairingService(store *Store, wizardAddress string) *PairingService {
	return &PairingService{
		store:         store,
		wizardAddress: wizardAddress,
		pending:       map[string]*PairingRequest{},
	}
}

// CreateRequest generates a fresh 8-character pairing code and its QR
// payload. ttl defaults to 5 minutes when zero.
func (p *PairingService) CreateRequest(ttl time.Duration, deviceName string) (*PairingRequest, error) {
	if ttl <= 0 {
		ttl = defaultPairingTTL
	}

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate pairing code: %w", err)
	}
	code := strings.ToUpper(hex.EncodeToString(buf))

	requestID := uuid.NewString()
	expiresAt := time.Now().Add(ttl)

	payload := qrPayload{
		Type:      "udos-pair",
		RequestID: requestID,
		Code:      code,
		Wizard:    p.wizardAddress,
		Expires:   expiresAt.UTC().Format(time.RFC3339),
	}
	qrJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}

	req := &PairingRequest{
		RequestID:  requestID,
		Code:       formatCode(code),
		QRData:     string(qrJSON),
		ExpiresAt:  expiresAt,
		DeviceName: deviceName,
	}

	p.mu.Lock()
	p.pending[code] = req
	p.mu.Unlock()

	return req, nil
}

// CompletePairing validates and consumes a pairing code, creating a new
// Device on success. It returns (nil, false) if the code is unknown,
// already consumed, or expired.
func (p *PairingService) CompletePairing(code, deviceID, deviceName, deviceType string, publicKey []byte) (*Device, bool) {
	normalized := normalizeCode(code)

	p.mu.Lock()
	req, ok := p.pending[normalized]
	if !ok {
		p.mu.Unlock()
		return nil, false
	}
	if time.Now().After(req.ExpiresAt) {
		delete(p.pending, normalized)
		p.mu.Unlock()
		return nil, false
	}
	delete(p.pending, normalized)
	p.mu.Unlock()

	if deviceName == "" {
		deviceName = req.DeviceName
	}
	if deviceType == "" {
		deviceType = "desktop"
	}

	d := &Device{
		ID:          deviceID,
		Name:        deviceName,
		Type:        deviceType,
		TrustLevel:  TrustStandard,
		Status:      StatusOnline,
		Transport:   "meshcore",
		PairedAt:    time.Now(),
		LastSeen:    time.Now(),
		SyncVersion: 0,
		PublicKey:   publicKey,
	}
	p.store.Put(d)
	return d, true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, " ", ""))
}

// formatCode inserts a readable space in the middle of an 8-character code.
func formatCode(code string) string {
	if len(code) != 8 {
		return code
	}
	return code[:4] + " " + code[4:]
}
