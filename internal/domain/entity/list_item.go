package entity

import "time"

type ListItemKind string

const (
	ItemConversation ListItemKind = "conversation"
	ItemTicket       ListItemKind = "ticket"
)

// CommunicationListItem is a read-model projection: one row per conversation
// or ticket a user can see. It is derived from the underlying records and is
// never persisted as ground truth.
type CommunicationListItem struct {
	ID             string       `json:"id"`
	Kind           ListItemKind `json:"kind"`
	WorkspaceID    string       `json:"workspace_id"`
	Title          string       `json:"title"`
	Preview        string       `json:"preview,omitempty"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	UnreadCount    int          `json:"unread_count"`
}
