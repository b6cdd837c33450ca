package sync

import (
	"log"
	"os"
	"sync"
	"time"
)

// BatchResult is what a registered processor returns for one sub-batch.
type BatchResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// Processor handles one batch of events for a provider.
type Processor func(events []SyncEvent) BatchResult

// ProviderResult aggregates a provider's batch results for one drain.
type ProviderResult struct {
	Status      string        `json:"status"`
	TotalEvents int           `json:"total_events"`
	Batches     []BatchResult `json:"batches"`
}

// DrainResult is the overall outcome of a ProcessBatch call.
type DrainResult struct {
	Status    string                    `json:"status"`
	Skipped   bool                      `json:"skipped,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
	Providers map[string]ProviderResult `json:"providers,omitempty"`
}

// QueueConfig tunes debounce, batching, and retry behavior.
type QueueConfig struct {
	DebounceSeconds int
	BatchSize       int
	MaxRetries      int
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{DebounceSeconds: 30, BatchSize: 50, MaxRetries: 3}
}

// EventQueue accepts SyncEvents keyed by provider, debounces and batches
// them, and drains each provider through its registered Processor. It owns
// its event queue and sync history exclusively; nothing else mutates them.
type EventQueue struct {
	mu         sync.Mutex
	cfg        QueueConfig
	pending    map[string][]SyncEvent
	lastSync   map[string]time.Time
	processors map[string]Processor
	processing bool
	logger     *log.Logger
}

func NewEventQueue(cfg QueueConfig) *EventQueue {
	if cfg.DebounceSeconds <= 0 {
		cfg.DebounceSeconds = 30
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &EventQueue{
		cfg:        cfg,
		pending:    map[string][]SyncEvent{},
		lastSync:   map[string]time.Time{},
		processors: map[string]Processor{},
		logger:     log.New(os.Stdout, "[SYNC-QUEUE] ", log.LstdFlags),
	}
}

// RegisterProcessor assigns the batch handler for a provider.
func (q *EventQueue) RegisterProcessor(provider string, p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors[provider] = p
}

// Enqueue appends an event to its provider's pending list. Safe under
// concurrent producers.
func (q *EventQueue) Enqueue(event SyncEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[event.Provider] = append(q.pending[event.Provider], event)
}

func (q *EventQueue) shouldProcess(provider string, now time.Time) bool {
	last, ok := q.lastSync[provider]
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(q.cfg.DebounceSeconds)*time.Second
}

// ProcessBatch drains queued events for the given provider, or every
// provider with pending events when provider is empty. A single
// `processing` flag prevents re-entrancy: a call that arrives while a
// drain is already running returns immediately with status "processing".
func (q *EventQueue) ProcessBatch(provider string) DrainResult {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return DrainResult{Status: "processing", Skipped: true, Timestamp: time.Now()}
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	now := time.Now()
	results := map[string]ProviderResult{}

	q.mu.Lock()
	providers := make([]string, 0, len(q.pending))
	if provider != "" {
		providers = append(providers, provider)
	} else {
		for p := range q.pending {
			providers = append(providers, p)
		}
	}
	q.mu.Unlock()

	for _, p := range providers {
		q.mu.Lock()
		events := q.pending[p]
		proc, hasProc := q.processors[p]
		ready := len(events) > 0 && hasProc && q.shouldProcess(p, now)
		q.mu.Unlock()

		if !ready {
			continue
		}

		var batches []BatchResult
		total := 0
		for start := 0; start < len(events); start += q.cfg.BatchSize {
			end := start + q.cfg.BatchSize
			if end > len(events) {
				end = len(events)
			}
			batch := events[start:end]
			result := q.runBatch(proc, batch)
			batches = append(batches, result)
			total += len(batch)
		}

		q.mu.Lock()
		q.lastSync[p] = now
		q.pending[p] = nil
		q.mu.Unlock()

		results[p] = ProviderResult{Status: "completed", TotalEvents: total, Batches: batches}
	}

	return DrainResult{Status: "success", Timestamp: now, Providers: results}
}

func (q *EventQueue) runBatch(proc Processor, batch []SyncEvent) (result BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Printf("processor panicked: %v", r)
			result = BatchResult{Status: "error", Count: len(batch), Error: "processor panic"}
		}
	}()
	return proc(batch)
}

// QueueStatus is the status query response.
type QueueStatus struct {
	Processing      bool                 `json:"processing"`
	Timestamp       time.Time            `json:"timestamp"`
	PendingEvents   map[string]int       `json:"pending_events"`
	LastSync        map[string]time.Time `json:"last_sync"`
	DebounceSeconds int                  `json:"debounce_seconds"`
	BatchSize       int                  `json:"batch_size"`
}

func (q *EventQueue) GetQueueStatus() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := map[string]int{}
	for p, events := range q.pending {
		if len(events) > 0 {
			pending[p] = len(events)
		}
	}
	lastSync := make(map[string]time.Time, len(q.lastSync))
	for p, t := range q.lastSync {
		lastSync[p] = t
	}

	return QueueStatus{
		Processing:      q.processing,
		Timestamp:       time.Now(),
		PendingEvents:   pending,
		LastSync:        lastSync,
		DebounceSeconds: q.cfg.DebounceSeconds,
		BatchSize:       q.cfg.BatchSize,
	}
}

// ClearQueue drops pending events for one provider, or all providers when
// provider is empty.
func (q *EventQueue) ClearQueue(provider string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if provider == "" {
		q.pending = map[string][]SyncEvent{}
		return
	}
	delete(q.pending, provider)
}

// ManualProcess bypasses the queue entirely: it groups events by provider
// and invokes each processor directly, ignoring debounce and the
// processing guard.
func (q *EventQueue) ManualProcess(events []SyncEvent) map[string]BatchResult {
	grouped := map[string][]SyncEvent{}
	for _, e := range events {
		grouped[e.Provider] = append(grouped[e.Provider], e)
	}

	results := map[string]BatchResult{}
	q.mu.Lock()
	procs := make(map[string]Processor, len(grouped))
	for p := range grouped {
		procs[p] = q.processors[p]
	}
	q.mu.Unlock()

	for p, batch := range grouped {
		proc := procs[p]
		if proc == nil {
			results[p] = BatchResult{Status: "error", Error: "no processor registered"}
			continue
		}
		results[p] = q.runBatch(proc, batch)
	}
	return results
}
