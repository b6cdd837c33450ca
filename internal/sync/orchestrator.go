package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ocx/backend/internal/sync/transform"
	"github.com/ocx/backend/internal/wizerr"
)

// drainJob asks the worker pool to drain one provider's queued events.
// The pool idiom (buffered channel + fixed goroutines + bounded retry)
// mirrors the webhook dispatcher's delivery worker pool, repointed here at
// provider-batch draining instead of HTTP delivery.
type drainJob struct {
	provider string
	attempt  int
}

// Orchestrator ties the provider factory, event queue, and transformer
// pipeline together. It owns the event queue and sync history exclusively;
// provider instances are built through the factory on each sync call.
type Orchestrator struct {
	mu      sync.Mutex
	factory *Factory
	creds   CredentialCache
	store   Store
	queue   *EventQueue
	history map[ProviderKey]*ProviderHistory

	jobs    chan drainJob
	wg      sync.WaitGroup
	workers int
	logger  *log.Logger
}

func NewOrchestrator(factory *Factory, creds CredentialCache, store Store, queueCfg QueueConfig, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	o := &Orchestrator{
		factory: factory,
		creds:   creds,
		store:   store,
		queue:   NewEventQueue(queueCfg),
		history: map[ProviderKey]*ProviderHistory{},
		jobs:    make(chan drainJob, 1000),
		workers: workers,
		logger:  log.New(os.Stdout, "[SYNC] ", log.LstdFlags),
	}
	o.registerProcessors()
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	return o
}

// registerProcessors wires one batch Processor per supported provider family
// onto the event queue, so events pushed by PubSubSource (or any other
// Enqueue caller) and drained via RequestDrain/ProcessBatch actually flow
// through the same transform+persist pipeline the pull-based SyncX methods
// use, instead of accumulating in q.pending forever.
func (o *Orchestrator) registerProcessors() {
	o.queue.RegisterProcessor(string(ProviderGoogleCalendar), o.calendarProcessor())
	o.queue.RegisterProcessor(string(ProviderOutlookCalendar), o.calendarProcessor())
	o.queue.RegisterProcessor(string(ProviderGmail), o.emailProcessor())
	o.queue.RegisterProcessor(string(ProviderOutlookEmail), o.emailProcessor())
	o.queue.RegisterProcessor(string(ProviderJira), o.issueProcessor())
	o.queue.RegisterProcessor(string(ProviderLinear), o.issueProcessor())
	o.queue.RegisterProcessor(string(ProviderSlack), o.chatProcessor())
}

// decodePayload round-trips a SyncEvent's generic payload map into a typed,
// provider-agnostic record. Field names in the published payload must match
// the target struct's field names (encoding/json matches case-insensitively
// when no tag is present).
func decodePayload(payload map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// payloadMissionID extracts the optional mission_id carried in a SyncEvent's
// payload; pull-based syncs get this from the request body instead.
func payloadMissionID(payload map[string]interface{}) string {
	if v, ok := payload["mission_id"].(string); ok {
		return v
	}
	return ""
}

// runProcessor is the shared batch-processing loop every per-family
// Processor below uses: decode each event's payload, transform it into a
// TaskItem, persist the batch, and record history under the batch's
// provider key.
func (o *Orchestrator) runProcessor(events []SyncEvent, convert func(SyncEvent) (TaskItem, error)) BatchResult {
	items := make([]TaskItem, 0, len(events))
	decodeErrs := 0
	var key ProviderKey
	for _, e := range events {
		key = ProviderKey(e.Provider)
		item, err := convert(e)
		if err != nil {
			decodeErrs++
			continue
		}
		items = append(items, item)
	}

	created, errs := o.persist(items)
	o.recordHistory(key, len(events), created, len(errs)+decodeErrs)

	status := "success"
	errMsg := ""
	if created == 0 && len(events) > 0 {
		status = "error"
	}
	if decodeErrs > 0 || len(errs) > 0 {
		errMsg = fmt.Sprintf("%d payload decode errors, %d persist errors", decodeErrs, len(errs))
	}
	return BatchResult{Status: status, Count: created, Error: errMsg}
}

func (o *Orchestrator) calendarProcessor() Processor {
	return func(events []SyncEvent) BatchResult {
		return o.runProcessor(events, func(e SyncEvent) (TaskItem, error) {
			var ce CalendarEvent
			if err := decodePayload(e.Payload, &ce); err != nil {
				return TaskItem{}, err
			}
			if ce.Provider == "" {
				ce.Provider = e.Provider
			}
			t := transform.CalendarEventToTaskItem(toTransformCalendarEvent(ce), payloadMissionID(e.Payload))
			return toTaskItem(t), nil
		})
	}
}

func (o *Orchestrator) emailProcessor() Processor {
	return func(events []SyncEvent) BatchResult {
		return o.runProcessor(events, func(e SyncEvent) (TaskItem, error) {
			var m EmailMessage
			if err := decodePayload(e.Payload, &m); err != nil {
				return TaskItem{}, err
			}
			if m.Provider == "" {
				m.Provider = e.Provider
			}
			t := transform.EmailMessageToTaskItem(toTransformEmail(m), payloadMissionID(e.Payload))
			return toTaskItem(t), nil
		})
	}
}

func (o *Orchestrator) issueProcessor() Processor {
	return func(events []SyncEvent) BatchResult {
		return o.runProcessor(events, func(e SyncEvent) (TaskItem, error) {
			var i Issue
			if err := decodePayload(e.Payload, &i); err != nil {
				return TaskItem{}, err
			}
			if i.Provider == "" {
				i.Provider = e.Provider
			}
			t := transform.IssueToTaskItem(toTransformIssue(i), payloadMissionID(e.Payload))
			return toTaskItem(t), nil
		})
	}
}

func (o *Orchestrator) chatProcessor() Processor {
	return func(events []SyncEvent) BatchResult {
		return o.runProcessor(events, func(e SyncEvent) (TaskItem, error) {
			var m ChatMessage
			if err := decodePayload(e.Payload, &m); err != nil {
				return TaskItem{}, err
			}
			if m.Provider == "" {
				m.Provider = e.Provider
			}
			t := transform.ChatMessageToTaskItem(toTransformChat(m), payloadMissionID(e.Payload))
			return toTaskItem(t), nil
		})
	}
}

// Queue exposes the underlying event queue for enqueue/status callers.
func (o *Orchestrator) Queue() *EventQueue { return o.queue }

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()
	for job := range o.jobs {
		result := o.queue.ProcessBatch(job.provider)
		if result.Status == "processing" {
			continue
		}
		pr, ok := result.Providers[job.provider]
		if !ok {
			continue
		}
		failed := false
		for _, b := range pr.Batches {
			if b.Status == "error" {
				failed = true
			}
		}
		if failed && job.attempt < 3 {
			time.Sleep(time.Duration(job.attempt*job.attempt) * time.Second)
			job.attempt++
			select {
			case o.jobs <- job:
			default:
				o.logger.Printf("drain retry queue full, dropping provider %s", job.provider)
			}
		}
	}
}

// RequestDrain enqueues an asynchronous drain for a provider's queued
// events, processed by the worker pool.
func (o *Orchestrator) RequestDrain(provider string) {
	select {
	case o.jobs <- drainJob{provider: provider, attempt: 1}:
	default:
		o.logger.Printf("drain queue full, dropping request for %s", provider)
	}
}

// Shutdown stops accepting new drain jobs and waits for in-flight ones.
func (o *Orchestrator) Shutdown() {
	close(o.jobs)
	o.wg.Wait()
}

func (o *Orchestrator) recordHistory(key ProviderKey, synced, created, errs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.history[key]
	if !ok {
		h = &ProviderHistory{}
		o.history[key] = h
	}
	h.LastSync = time.Now()
	h.SyncedCount += synced
	h.TasksCreated += created
	h.Errors += errs
}

// History returns a snapshot of sync history for every provider synced so far.
func (o *Orchestrator) History() map[ProviderKey]ProviderHistory {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[ProviderKey]ProviderHistory, len(o.history))
	for k, v := range o.history {
		out[k] = *v
	}
	return out
}

func (o *Orchestrator) persist(items []TaskItem) (int, []*wizerr.Error) {
	created := 0
	var errs []*wizerr.Error
	for _, item := range items {
		if err := o.store.Upsert(item); err != nil {
			errs = append(errs, wizerr.Normalize(err, "sync-store"))
			continue
		}
		created++
	}
	return created, errs
}

// SyncCalendar runs the full calendar sync flow: acquire provider,
// authenticate, fetch the given window, transform, and persist.
func (o *Orchestrator) SyncCalendar(ctx context.Context, key ProviderKey, missionID string, start, end int64) Result {
	provider, ok := o.factory.Calendar(key)
	if !ok {
		return o.fail(key, missionID, wizerr.Unsupported(string(key), "no calendar provider registered for "+string(key)))
	}
	creds, ok := o.creds.Get(string(key))
	if !ok {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "no cached credentials for "+string(key)))
	}
	if !provider.Authenticate(ctx, creds) {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "authentication failed for "+string(key)))
	}

	events, err := provider.FetchEvents(ctx, start, end)
	if err != nil {
		o.recordHistory(key, 0, 0, 1)
		return o.fail(key, missionID, wizerr.Normalize(err, string(key)))
	}

	items := make([]TaskItem, 0, len(events))
	for _, e := range events {
		items = append(items, toTaskItem(transform.CalendarEventToTaskItem(toTransformCalendarEvent(e), missionID)))
	}
	created, errs := o.persist(items)
	o.recordHistory(key, len(events), created, len(errs))

	return Result{
		Status: "success", Provider: string(key), MissionID: missionID, Timestamp: time.Now(),
		SyncedCount: len(events), TasksCreated: created, Errors: errs, Tasks: items,
	}
}

// SyncEmail runs the full email sync flow.
func (o *Orchestrator) SyncEmail(ctx context.Context, key ProviderKey, missionID, query string, limit int) Result {
	provider, ok := o.factory.Email(key)
	if !ok {
		return o.fail(key, missionID, wizerr.Unsupported(string(key), "no email provider registered for "+string(key)))
	}
	creds, ok := o.creds.Get(string(key))
	if !ok {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "no cached credentials for "+string(key)))
	}
	if !provider.Authenticate(ctx, creds) {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "authentication failed for "+string(key)))
	}

	messages, err := provider.FetchMessages(ctx, query, limit)
	if err != nil {
		o.recordHistory(key, 0, 0, 1)
		return o.fail(key, missionID, wizerr.Normalize(err, string(key)))
	}

	items := make([]TaskItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, toTaskItem(transform.EmailMessageToTaskItem(toTransformEmail(m), missionID)))
	}
	created, errs := o.persist(items)
	o.recordHistory(key, len(messages), created, len(errs))

	return Result{
		Status: "success", Provider: string(key), MissionID: missionID, Timestamp: time.Now(),
		SyncedCount: len(messages), TasksCreated: created, Errors: errs, Tasks: items,
	}
}

// SyncIssues runs the full issue-tracker sync flow.
func (o *Orchestrator) SyncIssues(ctx context.Context, key ProviderKey, missionID, query string, limit int) Result {
	provider, ok := o.factory.Issue(key)
	if !ok {
		return o.fail(key, missionID, wizerr.Unsupported(string(key), "no issue provider registered for "+string(key)))
	}
	creds, ok := o.creds.Get(string(key))
	if !ok {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "no cached credentials for "+string(key)))
	}
	if !provider.Authenticate(ctx, creds) {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "authentication failed for "+string(key)))
	}

	issues, err := provider.FetchIssues(ctx, query, limit)
	if err != nil {
		o.recordHistory(key, 0, 0, 1)
		return o.fail(key, missionID, wizerr.Normalize(err, string(key)))
	}

	items := make([]TaskItem, 0, len(issues))
	for _, i := range issues {
		items = append(items, toTaskItem(transform.IssueToTaskItem(toTransformIssue(i), missionID)))
	}
	created, errs := o.persist(items)
	o.recordHistory(key, len(issues), created, len(errs))

	return Result{
		Status: "success", Provider: string(key), MissionID: missionID, Timestamp: time.Now(),
		SyncedCount: len(issues), TasksCreated: created, Errors: errs, Tasks: items,
	}
}

// SyncChat runs the full chat-channel sync flow.
func (o *Orchestrator) SyncChat(ctx context.Context, key ProviderKey, missionID, channelID string, limit int) Result {
	provider, ok := o.factory.Chat(key)
	if !ok {
		return o.fail(key, missionID, wizerr.Unsupported(string(key), "no chat provider registered for "+string(key)))
	}
	creds, ok := o.creds.Get(string(key))
	if !ok {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "no cached credentials for "+string(key)))
	}
	if !provider.Authenticate(ctx, creds) {
		return o.fail(key, missionID, wizerr.AuthRequired(string(key), "authentication failed for "+string(key)))
	}

	messages, err := provider.FetchChannelMessages(ctx, channelID, limit)
	if err != nil {
		o.recordHistory(key, 0, 0, 1)
		return o.fail(key, missionID, wizerr.Normalize(err, string(key)))
	}

	items := make([]TaskItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, toTaskItem(transform.ChatMessageToTaskItem(toTransformChat(m), missionID)))
	}
	created, errs := o.persist(items)
	o.recordHistory(key, len(messages), created, len(errs))

	return Result{
		Status: "success", Provider: string(key), MissionID: missionID, Timestamp: time.Now(),
		SyncedCount: len(messages), TasksCreated: created, Errors: errs, Tasks: items,
	}
}

func (o *Orchestrator) fail(key ProviderKey, missionID string, werr *wizerr.Error) Result {
	o.logger.Printf("sync failed for %s: %s", key, werr.Message)
	return Result{
		Status: "error", Provider: string(key), MissionID: missionID, Timestamp: time.Now(),
		Errors: []*wizerr.Error{werr}, Tasks: []TaskItem{},
	}
}

func toTaskItem(t transform.TaskItem) TaskItem {
	return TaskItem{
		ID: t.ID, Type: t.Type, Title: t.Title, Description: t.Description,
		Status: t.Status, DueDate: t.DueDate, AssignedTo: t.AssignedTo,
		ParentMission: t.ParentMission, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
		Tags: t.Tags, Metadata: t.Metadata,
	}
}

func toTransformCalendarEvent(e CalendarEvent) transform.CalendarEvent {
	return transform.CalendarEvent{
		ID: e.ID, Title: e.Title, Description: e.Description,
		StartTime: e.StartTime, EndTime: e.EndTime, Location: e.Location,
		Attendees: e.Attendees, Provider: e.Provider, IsAllDay: e.IsAllDay,
	}
}

func toTransformEmail(m EmailMessage) transform.EmailMessage {
	return transform.EmailMessage{
		MessageID: m.MessageID, Subject: m.Subject, From: m.From, To: m.To,
		Body: m.Body, Timestamp: m.Timestamp, ThreadID: m.ThreadID,
		Labels: m.Labels, Attachments: m.Attachments, Provider: m.Provider, IsUnread: m.IsUnread,
	}
}

func toTransformIssue(i Issue) transform.Issue {
	return transform.Issue{
		ID: i.ID, Key: i.Key, Title: i.Title, Description: i.Description,
		Status: i.Status, Assignee: i.Assignee, CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt,
		DueDate: i.DueDate, URL: i.URL,
		Provider: i.Provider, CustomFields: i.CustomFields,
	}
}

func toTransformChat(m ChatMessage) transform.ChatMessage {
	return transform.ChatMessage{
		MessageID: m.MessageID, ChannelID: m.ChannelID, UserID: m.UserID,
		Text: m.Text, Timestamp: m.Timestamp, ThreadTS: m.ThreadTS,
		Attachments: m.Attachments, Reactions: m.Reactions, Provider: m.Provider,
	}
}
