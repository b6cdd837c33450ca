package wizerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableCodes(t *testing.T) {
	assert.True(t, Timeout("local", "slow").Retryable)
	assert.True(t, BackendDown("cloud", "down").Retryable)
	assert.False(t, NotFound("store", "missing").Retryable)
	assert.False(t, Internal("gateway", "boom").Retryable)
}

func TestError_ImplementsErrorInterface(t *testing.T) {
	var err error = NotFound("store", "device missing")
	assert.Equal(t, "not_found: device missing", err.Error())
}

func TestNormalize_NilPassesThrough(t *testing.T) {
	assert.Nil(t, Normalize(nil, "local"))
}

func TestNormalize_AlreadyTypedPassesThroughUnchanged(t *testing.T) {
	original := Timeout("cloud", "request timed out")
	normalized := Normalize(original, "ignored-backend")
	assert.Same(t, original, normalized)
}

func TestNormalize_LexicalRuleNotFound(t *testing.T) {
	err := errors.New("record not found in database")
	normalized := Normalize(err, "store")
	assert.Equal(t, CodeNotFound, normalized.Code)
	assert.Equal(t, "store", normalized.Backend)
}

func TestNormalize_LexicalRuleTimeout(t *testing.T) {
	err := errors.New("context deadline exceeded while waiting for response")
	normalized := Normalize(err, "local")
	assert.Equal(t, CodeTimeout, normalized.Code)
	assert.True(t, normalized.Retryable)
}

func TestNormalize_LexicalRuleConflict(t *testing.T) {
	err := errors.New("resource already exists")
	normalized := Normalize(err, "store")
	assert.Equal(t, CodeConflict, normalized.Code)
}

func TestNormalize_LexicalRuleAuthRequired(t *testing.T) {
	err := errors.New("permission denied for this operation")
	normalized := Normalize(err, "api")
	assert.Equal(t, CodeAuthRequired, normalized.Code)
}

func TestNormalize_LexicalRuleBackendUnavailable(t *testing.T) {
	err := errors.New("connection refused by remote host")
	normalized := Normalize(err, "cloud")
	assert.Equal(t, CodeBackendUnavailable, normalized.Code)
	assert.True(t, normalized.Retryable)
}

func TestNormalize_UnknownFallsBackToInternal(t *testing.T) {
	err := errors.New("something bizarre happened")
	normalized := Normalize(err, "gateway")
	assert.Equal(t, CodeInternal, normalized.Code)
	assert.False(t, normalized.Retryable)
}

func TestNormalize_FirstMatchingRuleWins(t *testing.T) {
	// "not found" appears before "timeout" in the rule table; a message
	// containing both should resolve to the first rule.
	err := errors.New("not found: request timed out waiting for lock")
	normalized := Normalize(err, "local")
	assert.Equal(t, CodeNotFound, normalized.Code)
}
