package entity

import "time"

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type Ticket struct {
	ID            string         `json:"id" firestore:"id"`
	WorkspaceID   string         `json:"workspace_id" firestore:"workspaceId"`
	Subject       string         `json:"subject" firestore:"subject"`
	Priority      TicketPriority `json:"priority" firestore:"priority"`
	Status        TicketStatus   `json:"status" firestore:"status"`
	CreatedBy     string         `json:"created_by" firestore:"createdBy"`
	LastMessage   string         `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"last_message_at" firestore:"lastMessageAt"`

	// AdminUnread counts non-support messages (what the support side has not
	// seen yet); CreatorUnread counts support replies.
	AdminUnread   int `json:"admin_unread" firestore:"adminUnread"`
	CreatorUnread int `json:"creator_unread" firestore:"creatorUnread"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

type TicketMessage struct {
	ID        string    `json:"id" firestore:"id"`
	TicketID  string    `json:"ticket_id" firestore:"ticketId"`
	SenderID  string    `json:"sender_id" firestore:"senderId"`
	Content   string    `json:"content" firestore:"content"`
	IsSupport bool      `json:"is_support" firestore:"isSupport"` // sender had an elevated role
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}
