package entity

import "time"

type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Participant is the membership record of one user in a conversation.
// HasLeft is a soft removal: history stays visible to the user, but they
// lose posting rights and stop receiving pushes.
type Participant struct {
	UserID   string    `json:"user_id" firestore:"userId"`
	HasLeft  bool      `json:"has_left" firestore:"hasLeft"`
	JoinedAt time.Time `json:"joined_at" firestore:"joinedAt"`
	LeftAt   time.Time `json:"left_at,omitempty" firestore:"leftAt,omitempty"`
}

type Conversation struct {
	ID            string           `json:"id" firestore:"id"`
	WorkspaceID   string           `json:"workspace_id" firestore:"workspaceId"`
	Kind          ConversationKind `json:"kind" firestore:"kind"`
	Name          string           `json:"name,omitempty" firestore:"name,omitempty"` // required for group, empty for direct
	CreatedBy     string           `json:"created_by" firestore:"createdBy"`
	Participants  []Participant    `json:"participants" firestore:"participants"`
	// ParticipantIDs mirrors Participants for array-contains queries; the
	// repository keeps it in sync on every write.
	ParticipantIDs []string       `json:"-" firestore:"participantIds"`
	LastMessage    string         `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt  time.Time      `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount    map[string]int `json:"unread_count" firestore:"unreadCount"` // userID -> unread
	CreatedAt      time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time      `json:"updated_at" firestore:"updatedAt"`
}

// IsActiveParticipant reports whether userID is a current, non-left member.
func (c *Conversation) IsActiveParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return !p.HasLeft
		}
	}
	return false
}

// IsParticipant reports membership regardless of HasLeft. Former members
// keep read access to history.
func (c *Conversation) IsParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ActiveParticipantIDs returns the ids of all non-left members.
func (c *Conversation) ActiveParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if !p.HasLeft {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
