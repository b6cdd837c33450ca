package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarEventToTaskItem(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	item := CalendarEventToTaskItem(CalendarEvent{
		ID: "evt-1", Title: "Standup", Description: "Daily sync", Provider: "google_calendar",
		StartTime: start, EndTime: end, Location: "Zoom",
	}, "mission-1")

	assert.Equal(t, "task-evt-1", item.ID)
	assert.Equal(t, "Calendar event from google_calendar\n\nDaily sync", item.Description)
	assert.Equal(t, "todo", item.Status)
	assert.Contains(t, item.Tags, "calendar_sync")
	assert.Contains(t, item.Tags, "google_calendar")
	assert.Equal(t, "evt-1", item.Metadata["external_id"])
	assert.Equal(t, "mission-1", item.ParentMission)
	assert.Equal(t, start, item.CreatedAt)
	assert.Equal(t, end, item.UpdatedAt)
}

func TestEmailMessageToTaskItem(t *testing.T) {
	ts := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	item := EmailMessageToTaskItem(EmailMessage{
		MessageID: "msg-1", Subject: "Q3 plan", From: "boss@example.com",
		Body: "Please review.", Timestamp: ts, Provider: "gmail", Labels: []string{"important"},
	}, "mission-1")

	assert.Equal(t, "task-msg-1", item.ID)
	assert.Contains(t, item.Description, "Email from boss@example.com")
	assert.Equal(t, ts.Add(24*time.Hour).Format(time.RFC3339), item.DueDate)
	assert.Contains(t, item.Tags, "email_sync")
	assert.Contains(t, item.Tags, "important")
	assert.Equal(t, "mission-1", item.ParentMission)
	assert.Equal(t, ts, item.CreatedAt)
}

func TestIssueToTaskItemStatusMapping(t *testing.T) {
	created := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	updated := created.Add(3 * 24 * time.Hour)
	item := IssueToTaskItem(Issue{
		ID: "10001", Key: "ENG-42", Title: "Fix crash", Status: "In Progress",
		Provider: "jira", Assignee: "alice", CreatedAt: created, UpdatedAt: updated,
	}, "mission-1")

	assert.Equal(t, "issue-10001", item.ID)
	assert.Equal(t, "[ENG-42] Fix crash", item.Title)
	assert.Equal(t, "in-progress", item.Status)
	assert.Equal(t, "alice", item.AssignedTo)
	assert.Contains(t, item.Tags, "ENG")
	assert.Equal(t, "mission-1", item.ParentMission)
	assert.Equal(t, created, item.CreatedAt)
	assert.Equal(t, updated, item.UpdatedAt)
}

func TestIssueToTaskItemUnknownStatusDefaultsTodo(t *testing.T) {
	item := IssueToTaskItem(Issue{ID: "1", Key: "X-1", Title: "t", Status: "weird-status", Provider: "linear"}, "m")
	assert.Equal(t, "todo", item.Status)
}

func TestChatMessageToTaskItem(t *testing.T) {
	ts := time.Date(2026, 7, 31, 14, 30, 0, 0, time.UTC)
	item := ChatMessageToTaskItem(ChatMessage{
		MessageID: "c1", ChannelID: "general", UserID: "u1",
		Text: "Can someone review this PR?\nThanks", Timestamp: ts,
		Reactions: map[string]int{"+1": 2, "eyes": 1},
	}, "mission-1")

	assert.Equal(t, "task-c1", item.ID)
	assert.Equal(t, "Can someone review this PR?", item.Title)
	assert.Contains(t, item.Tags, "chat_sync")
	assert.Contains(t, item.Tags, "channel-general")
	assert.Equal(t, 3, item.Metadata["reaction_count"])
}

func TestChatMessageToTaskItemEmptyTextFallsBackToDefaultTitle(t *testing.T) {
	item := ChatMessageToTaskItem(ChatMessage{MessageID: "c2", ChannelID: "general", Timestamp: time.Now()}, "m")
	assert.Equal(t, "Chat message", item.Title)
}
