package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_EmitDeliversToTypeSubscriber(t *testing.T) {
	eb := NewEventBus()
	ch := eb.Subscribe("dispatch.routed")

	eb.Emit("dispatch.routed", "wizard", "HELP", "device-1", map[string]interface{}{"stage": 1})

	select {
	case ev := <-ch:
		assert.Equal(t, "dispatch.routed", ev.Type)
		assert.Equal(t, "wizard", ev.Source)
		assert.Equal(t, "1.0", ev.SpecVersion)
		assert.Equal(t, "device-1", ev.DeviceID)
	case <-time.After(time.Second):
		t.Fatal("expected event not received")
	}
}

func TestEventBus_WildcardSubscriberReceivesAllTypes(t *testing.T) {
	eb := NewEventBus()
	ch := eb.Subscribe()

	eb.Emit("policy.violation", "wizard", "", "", nil)
	eb.Emit("sync.batch_completed", "wizard", "", "", nil)

	received := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			received[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for wildcard event")
		}
	}
	assert.True(t, received["policy.violation"])
	assert.True(t, received["sync.batch_completed"])
}

func TestEventBus_NonMatchingTypeNotDelivered(t *testing.T) {
	eb := NewEventBus()
	ch := eb.Subscribe("dispatch.routed")

	eb.Emit("policy.violation", "wizard", "", "", nil)

	select {
	case <-ch:
		t.Fatal("should not have received a non-matching event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	eb := NewEventBus()
	ch := eb.Subscribe("dispatch.routed")
	eb.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, eb.SubscriberCount())
}

func TestEventBus_SubscriberCount(t *testing.T) {
	eb := NewEventBus()
	eb.Subscribe("a")
	eb.Subscribe("b")
	eb.Subscribe()
	assert.Equal(t, 3, eb.SubscriberCount())
}

func TestCloudEvent_SSEFormat(t *testing.T) {
	ce := NewCloudEvent("test.type", "wizard", "subj", "device-9", map[string]interface{}{"k": "v"})
	out, err := ce.SSEFormat()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "event: test.type")
	assert.Contains(t, s, "id: "+ce.ID)
	assert.Contains(t, s, `"deviceid":"device-9"`)
}

func TestNewCloudEvent_OmitsDeviceIDWhenEmpty(t *testing.T) {
	ce := NewCloudEvent("test.type", "wizard", "subj", "", map[string]interface{}{"k": "v"})
	raw, err := ce.JSON()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "deviceid")
}
