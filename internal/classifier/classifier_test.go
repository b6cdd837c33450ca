package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_CodeIntentDefault(t *testing.T) {
	c := New()
	profile := c.Classify("t1", "buy some groceries please", "core", "", "")
	assert.Equal(t, IntentCode, profile.Intent)
	assert.InDelta(t, 0.4, profile.Confidence, 0.01)
}

func TestClassify_TestIntentDetected(t *testing.T) {
	c := New()
	profile := c.Classify("t2", "write a unit test with a mock fixture for this", "core", "", "")
	assert.Equal(t, IntentTest, profile.Intent)
}

func TestClassify_PrivacyExplicitOverride(t *testing.T) {
	c := New()
	profile := c.Classify("t3", "totally ordinary prompt with nothing sensitive", "core", "", "private")
	assert.Equal(t, PrivacyPrivate, profile.Privacy)
	assert.InDelta(t, 0.65, profile.Confidence, 0.01)
}

func TestClassify_PrivacyDetectedFromSecretPattern(t *testing.T) {
	c := New()
	profile := c.Classify("t4", "here is my api_key and password for the service", "core", "", "")
	assert.Equal(t, PrivacyPrivate, profile.Privacy)
}

func TestClassify_PrivacyInternalHint(t *testing.T) {
	c := New()
	profile := c.Classify("t5", "update the wizard core config", "core", "", "")
	assert.Equal(t, PrivacyInternal, profile.Privacy)
	assert.InDelta(t, 0.5, profile.Confidence, 0.01)
}

func TestClassify_SizeBuckets(t *testing.T) {
	c := New()
	small := c.Classify("s", "short prompt", "core", "", "")
	assert.Equal(t, "small", small.Size)

	mediumPrompt := make([]byte, 20000)
	for i := range mediumPrompt {
		mediumPrompt[i] = 'a'
	}
	medium := c.Classify("m", string(mediumPrompt), "core", "", "")
	assert.Equal(t, "medium", medium.Size)

	largePrompt := make([]byte, 40000)
	for i := range largePrompt {
		largePrompt[i] = 'a'
	}
	large := c.Classify("l", string(largePrompt), "core", "", "")
	assert.Equal(t, "large", large.Size)
	assert.True(t, large.HasTag("long_context"))
}

func TestClassify_Tags(t *testing.T) {
	c := New()
	profile := c.Classify("t6", "this is urgent and blocking, need to read the database file over the network, offline no internet available", "core", "", "")
	assert.True(t, profile.HasTag("urgent"))
	assert.True(t, profile.HasTag("tooling_heavy"))
	assert.True(t, profile.HasTag("offline_required"))
}

func TestClassify_DefaultsWorkspaceAndUrgency(t *testing.T) {
	c := New()
	profile := c.Classify("t7", "hello", "", "", "")
	assert.Equal(t, "core", profile.Workspace)
	assert.Equal(t, "normal", profile.Urgency)
}

func TestGetStats_EmptyHistory(t *testing.T) {
	c := New()
	stats := c.GetStats()
	assert.Equal(t, 0, stats.TotalClassified)
	assert.NotNil(t, stats.Intents)
	assert.NotNil(t, stats.PrivacyLevels)
}

func TestGetStats_AccumulatesHistory(t *testing.T) {
	c := New()
	c.Classify("a", "refactor this function", "core", "", "")
	c.Classify("b", "write a test case", "core", "", "")
	stats := c.GetStats()
	assert.Equal(t, 2, stats.TotalClassified)
	assert.Equal(t, 1, stats.Intents[string(IntentCode)])
	assert.Equal(t, 1, stats.Intents[string(IntentTest)])
}
