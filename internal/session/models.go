package session

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Messages are immutable once
// appended; the stored content is always the complete text.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
	DocURL  string `json:"doc_url,omitempty"`
}

// Session is one persisted conversation. Facts, Strategy and BackendState
// are replaced wholesale on each successful exchange, never merged.
// BackendState is an opaque continuation token echoed back to the reasoning
// service verbatim; the client never inspects it.
type Session struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	IsRenamed    bool              `json:"is_renamed"`
	Timestamp    time.Time         `json:"timestamp"`
	Messages     []Message         `json:"messages"`
	Facts        map[string]string `json:"facts,omitempty"`
	Strategy     json.RawMessage   `json:"strategy,omitempty"`
	BackendState json.RawMessage   `json:"backend_state,omitempty"`
}

// IndexEntry is the lightweight sidebar projection of a Session. The index
// and the blob store must agree on ID, Title and IsRenamed at all times.
type IndexEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	IsRenamed bool      `json:"is_renamed"`
}

// NewIndexEntry builds an entry for a session touched at ts.
func NewIndexEntry(id, title string, isRenamed bool, ts time.Time) IndexEntry {
	if title == "" {
		title = DefaultTitle
	}
	return IndexEntry{
		ID:        id,
		Title:     title,
		Date:      ts.Format("2006-01-02"),
		Timestamp: ts,
		IsRenamed: isRenamed,
	}
}

// DefaultTitle is used for sessions that have no derived title yet.
const DefaultTitle = "New Consultation"
