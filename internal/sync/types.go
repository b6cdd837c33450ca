// Package sync implements the External Sync Orchestrator: a provider
// factory for calendar/email/issue/chat sources, a debounced+batched event
// queue, and the pipeline that turns fetched records into canonical task
// items handed to the store.
package sync

import (
	"time"

	"github.com/ocx/backend/internal/wizerr"
)

// EventType enumerates the kinds of change a SyncEvent can carry.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// SyncEvent is one queued change notification from a provider.
type SyncEvent struct {
	ID         string                 `json:"id"`
	Provider   string                 `json:"provider"`
	EventType  EventType              `json:"event_type"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
	Processed  bool                   `json:"processed"`
	RetryCount int                    `json:"retry_count"`
}

// CalendarEvent is a fetched calendar record, provider-agnostic.
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	Attendees   []string
	Provider    string
	IsAllDay    bool
	Metadata    map[string]interface{}
}

// EmailMessage is a fetched email record, provider-agnostic.
type EmailMessage struct {
	MessageID string
	Subject   string
	From      string
	To        []string
	Body      string
	HTMLBody  string
	Timestamp time.Time
	ThreadID  string
	Labels    []string
	Attachments []string
	Provider  string
	IsUnread  bool
	Metadata  map[string]interface{}
}

// Issue is a fetched issue-tracker record, provider-agnostic.
type Issue struct {
	ID          string
	Key         string
	Title       string
	Description string
	Status      string
	Assignee    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueDate     *time.Time
	URL         string
	Provider    string
	CustomFields map[string]interface{}
	Metadata    map[string]interface{}
}

// ChatMessage is a fetched chat-channel record, provider-agnostic.
type ChatMessage struct {
	MessageID   string
	ChannelID   string
	UserID      string
	Text        string
	Timestamp   time.Time
	ThreadTS    string
	Attachments []string
	Reactions   map[string]int
	Provider    string
	Metadata    map[string]interface{}
}

// TaskItem is the canonical downstream record shape produced by the
// transformer pipeline (§4.7 in the routing design).
type TaskItem struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Status        string                 `json:"status"`
	DueDate       string                 `json:"due_date,omitempty"`
	AssignedTo    string                 `json:"assigned_to,omitempty"`
	ParentMission string                 `json:"parent_mission,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Tags          []string               `json:"tags"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Store is the minimal persistence surface the orchestrator needs. The
// store contract stops here deliberately: callers supply a real
// implementation (file-backed, database-backed, whatever fits).
type Store interface {
	Upsert(item TaskItem) error
}

// SyncStatus describes a single provider's sync health.
type SyncStatus string

const (
	StatusIdle     SyncStatus = "idle"
	StatusSyncing  SyncStatus = "syncing"
	StatusSuccess  SyncStatus = "success"
	StatusError    SyncStatus = "error"
	StatusPaused   SyncStatus = "paused"
)

// ProviderHistory tracks one provider's sync outcomes over time.
type ProviderHistory struct {
	LastSync     time.Time `json:"last_sync"`
	SyncedCount  int       `json:"synced_count"`
	TasksCreated int       `json:"tasks_created"`
	Errors       int       `json:"errors"`
}

// Result is the structured outcome of a single sync flow run.
type Result struct {
	Status       string         `json:"status"`
	Provider     string         `json:"provider"`
	MissionID    string         `json:"mission_id"`
	Timestamp    time.Time      `json:"timestamp"`
	SyncedCount  int            `json:"synced_count"`
	TasksCreated int            `json:"tasks_created"`
	Errors       []*wizerr.Error `json:"errors,omitempty"`
	Tasks        []TaskItem     `json:"tasks"`
}
