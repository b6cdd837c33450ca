package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueAndProcessBatch(t *testing.T) {
	q := NewEventQueue(QueueConfig{DebounceSeconds: 0, BatchSize: 2, MaxRetries: 3})

	processed := 0
	q.RegisterProcessor("jira", func(events []SyncEvent) BatchResult {
		processed += len(events)
		return BatchResult{Status: "success", Count: len(events)}
	})

	for i := 0; i < 5; i++ {
		q.Enqueue(SyncEvent{ID: "e", Provider: "jira", EventType: EventCreate, Timestamp: time.Now()})
	}

	result := q.ProcessBatch("jira")
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 5, processed)
	assert.Equal(t, 5, result.Providers["jira"].TotalEvents)
	assert.Len(t, result.Providers["jira"].Batches, 3) // 2+2+1
}

func TestProcessBatchSkipsWithoutProcessor(t *testing.T) {
	q := NewEventQueue(DefaultQueueConfig())
	q.Enqueue(SyncEvent{ID: "e", Provider: "gmail"})

	result := q.ProcessBatch("gmail")
	assert.Empty(t, result.Providers)
}

func TestProcessBatchReentrancyGuard(t *testing.T) {
	q := NewEventQueue(QueueConfig{DebounceSeconds: 0, BatchSize: 50, MaxRetries: 3})
	block := make(chan struct{})
	q.RegisterProcessor("slack", func(events []SyncEvent) BatchResult {
		<-block
		return BatchResult{Status: "success", Count: len(events)}
	})
	q.Enqueue(SyncEvent{ID: "e1", Provider: "slack"})

	done := make(chan DrainResult, 1)
	go func() { done <- q.ProcessBatch("slack") }()
	time.Sleep(20 * time.Millisecond)

	second := q.ProcessBatch("slack")
	assert.Equal(t, "processing", second.Status)
	assert.True(t, second.Skipped)

	close(block)
	<-done
}

func TestClearQueue(t *testing.T) {
	q := NewEventQueue(DefaultQueueConfig())
	q.Enqueue(SyncEvent{ID: "e", Provider: "jira"})
	q.ClearQueue("jira")

	status := q.GetQueueStatus()
	assert.Empty(t, status.PendingEvents)
}

func TestManualProcessBypassesDebounce(t *testing.T) {
	q := NewEventQueue(QueueConfig{DebounceSeconds: 3600, BatchSize: 50, MaxRetries: 3})
	q.RegisterProcessor("linear", func(events []SyncEvent) BatchResult {
		return BatchResult{Status: "success", Count: len(events)}
	})

	results := q.ManualProcess([]SyncEvent{{ID: "e1", Provider: "linear"}})
	assert.Equal(t, "success", results["linear"].Status)
}
