package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/backend/internal/wizerr"
)

type fakeCreds struct{ has bool }

func (f fakeCreds) Get(provider string) (Credentials, bool) {
	if !f.has {
		return Credentials{}, false
	}
	return Credentials{AccessToken: "tok"}, true
}

type fakeCalendarProvider struct {
	authOK bool
	events []CalendarEvent
}

func (p *fakeCalendarProvider) Authenticate(ctx context.Context, creds Credentials) bool { return p.authOK }
func (p *fakeCalendarProvider) FetchEvents(ctx context.Context, start, end int64) ([]CalendarEvent, error) {
	return p.events, nil
}
func (p *fakeCalendarProvider) GetSyncStatus() SyncStatus { return StatusIdle }

type fakeStore struct {
	items []TaskItem
}

func (s *fakeStore) Upsert(item TaskItem) error {
	s.items = append(s.items, item)
	return nil
}

func TestSyncCalendarEndToEnd(t *testing.T) {
	factory := NewFactory()
	provider := &fakeCalendarProvider{
		authOK: true,
		events: []CalendarEvent{{ID: "e1", Title: "Standup", Provider: "google_calendar", StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}},
	}
	factory.RegisterCalendar(ProviderGoogleCalendar, func() CalendarProvider { return provider })

	store := &fakeStore{}
	orch := NewOrchestrator(factory, fakeCreds{has: true}, store, DefaultQueueConfig(), 1)
	defer orch.Shutdown()

	result := orch.SyncCalendar(context.Background(), ProviderGoogleCalendar, "mission-1", 0, 0)
	require.Equal(t, "success", result.Status)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 1, result.TasksCreated)
	require.Len(t, store.items, 1)
	assert.Equal(t, "mission-1", store.items[0].ParentMission)
	assert.False(t, store.items[0].CreatedAt.IsZero())
	assert.False(t, store.items[0].UpdatedAt.IsZero())

	history := orch.History()
	assert.Equal(t, 1, history[ProviderGoogleCalendar].SyncedCount)
}

func TestSyncCalendarMissingCredentials(t *testing.T) {
	factory := NewFactory()
	factory.RegisterCalendar(ProviderGoogleCalendar, func() CalendarProvider {
		return &fakeCalendarProvider{authOK: true}
	})

	orch := NewOrchestrator(factory, fakeCreds{has: false}, &fakeStore{}, DefaultQueueConfig(), 1)
	defer orch.Shutdown()

	result := orch.SyncCalendar(context.Background(), ProviderGoogleCalendar, "mission-1", 0, 0)
	assert.Equal(t, "error", result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, wizerr.CodeAuthRequired, result.Errors[0].Code)
}

func TestSyncCalendarUnregisteredProvider(t *testing.T) {
	orch := NewOrchestrator(NewFactory(), fakeCreds{has: true}, &fakeStore{}, DefaultQueueConfig(), 1)
	defer orch.Shutdown()

	result := orch.SyncCalendar(context.Background(), ProviderOutlookCalendar, "mission-1", 0, 0)
	assert.Equal(t, "error", result.Status)
}

func TestNewOrchestrator_RegistersQueueProcessorsForEveryProvider(t *testing.T) {
	orch := NewOrchestrator(NewFactory(), fakeCreds{has: true}, &fakeStore{}, DefaultQueueConfig(), 1)
	defer orch.Shutdown()

	for _, key := range []ProviderKey{
		ProviderGoogleCalendar, ProviderOutlookCalendar,
		ProviderGmail, ProviderOutlookEmail,
		ProviderJira, ProviderLinear,
		ProviderSlack,
	} {
		results := orch.Queue().ManualProcess([]SyncEvent{{
			ID: "e", Provider: string(key), EventType: EventCreate,
			Payload: map[string]interface{}{}, Timestamp: time.Now(),
		}})
		r, ok := results[string(key)]
		require.True(t, ok, "expected a processor registered for %s", key)
		assert.NotEqual(t, "no processor registered", r.Error)
	}
}

func TestEventQueueDrain_SlackPayloadTransformsAndPersists(t *testing.T) {
	store := &fakeStore{}
	orch := NewOrchestrator(NewFactory(), fakeCreds{has: true}, store, QueueConfig{DebounceSeconds: 0, BatchSize: 10, MaxRetries: 1}, 1)
	defer orch.Shutdown()

	orch.Queue().Enqueue(SyncEvent{
		ID:        "evt-1",
		Provider:  string(ProviderSlack),
		EventType: EventCreate,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"MessageID": "C1-123.456",
			"ChannelID": "C1",
			"UserID":    "U1",
			"Text":      "deploy the thing",
			"Timestamp": time.Now().Format(time.RFC3339),
			"mission_id": "mission-9",
		},
	})

	drain := orch.Queue().ProcessBatch(string(ProviderSlack))
	require.Equal(t, "success", drain.Status)

	require.Len(t, store.items, 1)
	assert.Equal(t, "mission-9", store.items[0].ParentMission)
	assert.Contains(t, store.items[0].Title, "deploy the thing")

	history := orch.History()
	assert.Equal(t, 1, history[ProviderSlack].TasksCreated)
}

func TestEventQueueDrain_BadPayloadCountsAsDecodeError(t *testing.T) {
	store := &fakeStore{}
	orch := NewOrchestrator(NewFactory(), fakeCreds{has: true}, store, QueueConfig{DebounceSeconds: 0, BatchSize: 10, MaxRetries: 1}, 1)
	defer orch.Shutdown()

	orch.Queue().Enqueue(SyncEvent{
		ID:        "evt-bad",
		Provider:  string(ProviderJira),
		EventType: EventCreate,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"CreatedAt": "not-a-time"},
	})

	drain := orch.Queue().ProcessBatch(string(ProviderJira))
	require.Equal(t, "success", drain.Status)
	pr := drain.Providers[string(ProviderJira)]
	require.Len(t, pr.Batches, 1)
	assert.Equal(t, "error", pr.Batches[0].Status)
	assert.Empty(t, store.items)
}
