// Package transform maps provider-specific records (calendar events, email
// messages, issues, chat messages) into the canonical task-item shape the
// sync orchestrator persists downstream.
package transform

import (
	"fmt"
	"strings"
	"time"
)

// CalendarEvent is the provider-agnostic shape the calendar transformer
// consumes.
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
}

// EmailMessage is the provider-agnostic shape the email transformer consumes.
type EmailMessage struct {
	MessageID   string
	Subject     string
	From        string
	To          []string
	Body        string
	Timestamp   time.Time
	ThreadID    string
	Labels      []string
	Attachments []string
	Provider    string
	IsUnread    bool
}

// Issue is the provider-agnostic shape the issue transformer consumes.
type Issue struct {
	ID           string
	Key          string
	Title        string
	Description  string
	Status       string
	Assignee     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DueDate      *time.Time
	URL          string
	Provider     string
	CustomFields map[string]interface{}
}

// ChatMessage is the provider-agnostic shape the chat transformer consumes.
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
}

// TaskItem is the canonical downstream shape every transformer produces.
type TaskItem struct {
	ID            string
	Type          string
	Title         string
	Description   string
	Status        string
	DueDate       string
	AssignedTo    string
	ParentMission string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Tags          []string
	Metadata      map[string]interface{}
}

// issueStatusMap normalizes free-form provider issue statuses to the
// canonical task-item status vocabulary.
var issueStatusMap = map[string]string{
	"todo": "todo", "to do": "todo", "backlog": "todo", "open": "todo", "new": "todo",
	"in progress": "in-progress", "in_progress": "in-progress", "doing": "in-progress",
	"in development": "in-progress", "developing": "in-progress",
	"done": "done", "completed": "done", "closed": "done", "resolved": "done",
	"blocked": "blocked", "on hold": "blocked", "paused": "blocked",
}

func mapIssueStatus(status string) string {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := issueStatusMap[normalized]; ok {
		return mapped
	}
	return "todo"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CalendarEventToTaskItem transforms a calendar event into a task item.
func CalendarEventToTaskItem(event CalendarEvent, missionID string) TaskItem {
	description := fmt.Sprintf("Calendar event from %s", event.Provider)
	if event.Description != "" {
		description = fmt.Sprintf("%s\n\n%s", description, event.Description)
	}

	attendees := event.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	return TaskItem{
		ID:            fmt.Sprintf("task-%s", event.ID),
		Type:          "task",
		Title:         event.Title,
		Description:   description,
		Status:        "todo",
		DueDate:       event.EndTime.Format(time.RFC3339),
		ParentMission: missionID,
		CreatedAt:     event.StartTime,
		UpdatedAt:     event.EndTime,
		Tags:          []string{"calendar_sync", event.Provider},
		Metadata: map[string]interface{}{
			"external_id":       event.ID,
			"external_provider": event.Provider,
			"location":          event.Location,
			"is_all_day":        event.IsAllDay,
			"attendees":         attendees,
			"start_time":        event.StartTime.Format(time.RFC3339),
			"end_time":          event.EndTime.Format(time.RFC3339),
		},
	}
}

// EmailMessageToTaskItem transforms an email message into a task item.
func EmailMessageToTaskItem(msg EmailMessage, missionID string) TaskItem {
	description := fmt.Sprintf("Email from %s\n\n%s", msg.From, truncate(msg.Body, 1000))
	dueDate := msg.Timestamp.Add(24 * time.Hour)

	tags := append([]string{"email_sync", msg.Provider}, msg.Labels...)

	return TaskItem{
		ID:            fmt.Sprintf("task-%s", msg.MessageID),
		Type:          "task",
		Title:         msg.Subject,
		Description:   description,
		Status:        "todo",
		DueDate:       dueDate.Format(time.RFC3339),
		ParentMission: missionID,
		CreatedAt:     msg.Timestamp,
		UpdatedAt:     msg.Timestamp,
		Tags:          tags,
		Metadata: map[string]interface{}{
			"external_id":       msg.MessageID,
			"external_provider": msg.Provider,
			"from":              msg.From,
			"to":                msg.To,
			"thread_id":         msg.ThreadID,
			"is_unread":         msg.IsUnread,
			"attachments":       msg.Attachments,
			"received_at":       msg.Timestamp.Format(time.RFC3339),
		},
	}
}

// IssueToTaskItem transforms an issue-tracker record into a task item.
func IssueToTaskItem(issue Issue, missionID string) TaskItem {
	description := issue.Description
	if description == "" {
		description = "No description provided"
	}

	var dueDate string
	if issue.DueDate != nil {
		dueDate = issue.DueDate.Format(time.RFC3339)
	}

	keyPrefix := issue.Key
	if idx := strings.Index(issue.Key, "-"); idx > 0 {
		keyPrefix = strings.ToUpper(issue.Key[:idx])
	}

	customFields := issue.CustomFields
	if customFields == nil {
		customFields = map[string]interface{}{}
	}

	return TaskItem{
		ID:            fmt.Sprintf("issue-%s", issue.ID),
		Type:          "issue",
		Title:         fmt.Sprintf("[%s] %s", issue.Key, issue.Title),
		Description:   description,
		Status:        mapIssueStatus(issue.Status),
		DueDate:       dueDate,
		AssignedTo:    issue.Assignee,
		ParentMission: missionID,
		CreatedAt:     issue.CreatedAt,
		UpdatedAt:     issue.UpdatedAt,
		Tags:          []string{issue.Provider, keyPrefix},
		Metadata: map[string]interface{}{
			"external_id":       issue.ID,
			"external_provider": issue.Provider,
			"issue_key":         issue.Key,
			"issue_status":      issue.Status,
			"issue_url":         issue.URL,
			"custom_fields":     customFields,
		},
	}
}

// ChatMessageToTaskItem transforms a chat-channel message into a task item.
func ChatMessageToTaskItem(msg ChatMessage, missionID string) TaskItem {
	firstLine := msg.Text
	if idx := strings.IndexByte(msg.Text, '\n'); idx >= 0 {
		firstLine = msg.Text[:idx]
	}
	title := truncate(firstLine, 80)
	if title == "" {
		title = "Chat message"
	}

	description := fmt.Sprintf("Chat message from <@%s>\n\n%s", msg.UserID, truncate(msg.Text, 500))

	dueDate := time.Date(msg.Timestamp.Year(), msg.Timestamp.Month(), msg.Timestamp.Day(), 17, 0, 0, 0, msg.Timestamp.Location())

	reactionCount := 0
	for _, count := range msg.Reactions {
		reactionCount += count
	}

	attachments := msg.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	return TaskItem{
		ID:            fmt.Sprintf("task-%s", msg.MessageID),
		Type:          "task",
		Title:         title,
		Description:   description,
		Status:        "todo",
		DueDate:       dueDate.Format(time.RFC3339),
		ParentMission: missionID,
		CreatedAt:     msg.Timestamp,
		UpdatedAt:     msg.Timestamp,
		Tags:          []string{"chat_sync", "channel-" + msg.ChannelID},
		Metadata: map[string]interface{}{
			"external_id":       msg.MessageID,
			"external_provider": "chat",
			"channel_id":        msg.ChannelID,
			"user_id":           msg.UserID,
			"thread_ts":         msg.ThreadTS,
			"reaction_count":    reactionCount,
			"attachments":       attachments,
		},
	}
}
