package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairingRoundTrip(t *testing.T) {
	store := NewStore("")
	svc := NewPairingService(store, "wizard.local:9000")

	req, err := svc.CreateRequest(5*time.Minute, "My Laptop")
	require.NoError(t, err)
	assert.Len(t, req.Code, 9) // "XXXX XXXX"
	assert.Contains(t, req.QRData, "udos-pair")

	d, ok := svc.CompletePairing(req.Code, "dev-1", "", "desktop", nil)
	require.True(t, ok)
	assert.Equal(t, "My Laptop", d.Name)
	assert.Equal(t, TrustStandard, d.TrustLevel)
	assert.Equal(t, StatusOnline, d.Status)

	_, stored := store.Get("dev-1")
	assert.True(t, stored)

	// Code is single-use.
	_, ok = svc.CompletePairing(req.Code, "dev-2", "", "desktop", nil)
	assert.False(t, ok)
}

func TestPairingExpiry(t *testing.T) {
	store := NewStore("")
	svc := NewPairingService(store, "wizard.local:9000")

	req, err := svc.CreateRequest(1*time.Millisecond, "Old Phone")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, ok := svc.CompletePairing(req.Code, "dev-3", "", "", nil)
	assert.False(t, ok)
}

func TestAuthenticateUnknownDevice(t *testing.T) {
	store := NewStore("")
	svc := NewService(store)

	_, ok := svc.Authenticate("ghost", "some-token")
	assert.False(t, ok)
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, IsLocalhost("127.0.0.1:5000"))
	assert.True(t, IsLocalhost("[::1]:5000"))
	assert.False(t, IsLocalhost("10.0.0.5:5000"))
}
