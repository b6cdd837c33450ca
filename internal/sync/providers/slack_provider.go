// Package providers supplies concrete provider implementations for the
// provider factory, plus an optional Pub/Sub event source. Only a chat
// provider (SlackChatProvider) is implemented; the package has no
// calendar, email or issue provider.
package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/gorilla/websocket"

	wsync "github.com/ocx/backend/internal/sync"
)

// SlackChatProvider fetches channel messages over Slack's Real Time
// Messaging websocket connection. Authenticate opens the socket;
// FetchChannelMessages drains the provider's in-memory per-channel buffer.
type SlackChatProvider struct {
	mu      stdsync.Mutex
	conn    *websocket.Conn
	status  wsync.SyncStatus
	buffers map[string][]wsync.ChatMessage
}

func NewSlackChatProvider() *SlackChatProvider {
	return &SlackChatProvider{status: wsync.StatusIdle, buffers: map[string][]wsync.ChatMessage{}}
}

func (p *SlackChatProvider) Authenticate(ctx context.Context, creds wsync.Credentials) bool {
	if creds.AccessToken == "" {
		return false
	}

	wsURL := url.URL{Scheme: "wss", Host: "slack.example.com", Path: "/rtm"}
	q := wsURL.Query()
	q.Set("token", creds.AccessToken)
	wsURL.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL.String(), nil)
	if err != nil {
		p.mu.Lock()
		p.status = wsync.StatusError
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	p.conn = conn
	p.status = wsync.StatusSyncing
	p.mu.Unlock()

	go p.readLoop()
	return true
}

func (p *SlackChatProvider) readLoop() {
	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		var msg struct {
			Type      string `json:"type"`
			Channel   string `json:"channel"`
			User      string `json:"user"`
			Text      string `json:"text"`
			ThreadTS  string `json:"thread_ts"`
			Timestamp string `json:"ts"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			p.mu.Lock()
			p.status = wsync.StatusError
			p.mu.Unlock()
			return
		}
		if msg.Type != "message" {
			continue
		}

		ts := parseSlackTimestamp(msg.Timestamp)
		chatMsg := wsync.ChatMessage{
			MessageID: fmt.Sprintf("%s-%s", msg.Channel, msg.Timestamp),
			ChannelID: msg.Channel,
			UserID:    msg.User,
			Text:      msg.Text,
			Timestamp: ts,
			ThreadTS:  msg.ThreadTS,
			Provider:  "slack",
		}

		p.mu.Lock()
		p.buffers[msg.Channel] = append(p.buffers[msg.Channel], chatMsg)
		p.status = wsync.StatusSuccess
		p.mu.Unlock()
	}
}

func parseSlackTimestamp(raw string) time.Time {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(int64(seconds), 0)
}

// FetchChannelMessages drains up to limit buffered messages for channelID.
func (p *SlackChatProvider) FetchChannelMessages(ctx context.Context, channelID string, limit int) ([]wsync.ChatMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buffered := p.buffers[channelID]
	if limit > 0 && len(buffered) > limit {
		buffered = buffered[len(buffered)-limit:]
	}
	p.buffers[channelID] = nil
	return buffered, nil
}

func (p *SlackChatProvider) GetSyncStatus() wsync.SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Close releases the underlying websocket connection.
func (p *SlackChatProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
