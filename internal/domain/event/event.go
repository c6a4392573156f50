package event

import "commsync/internal/domain/entity"

// Topic names for the event bus. Each event type maps to exactly one topic
// so the gateway and the sync layer can match exhaustively instead of
// shape-guessing payloads.
const (
	TopicMessageAdded       = "message_added"
	TopicTicketMessageAdded = "ticket_message_added"
	TopicTypingUser         = "typing_user"
	TopicItemAdded          = "communication_item_added"
	TopicItemUpdated        = "communication_item_updated"
	TopicParticipantRemoved = "participant_removed"
)

// Event is a tagged variant keyed by topic. Recipients carries the user ids
// the publisher computed as authorized receivers; the gateway filters on it
// server-side so a removed participant never sees further events.
type Event interface {
	Topic() string
	RecipientIDs() []string
}

type MessageAdded struct {
	ConversationID string                        `json:"conversation_id"`
	Message        *entity.Message               `json:"message"`
	Item           *entity.CommunicationListItem `json:"item"` // derived preview so clients skip a round-trip
	Recipients     []string                      `json:"-"`
}

func (MessageAdded) Topic() string            { return TopicMessageAdded }
func (e MessageAdded) RecipientIDs() []string { return e.Recipients }

type TicketMessageAdded struct {
	TicketID   string                        `json:"ticket_id"`
	Message    *entity.TicketMessage         `json:"message"`
	IsSupport  bool                          `json:"is_support"`
	Item       *entity.CommunicationListItem `json:"item"`
	Recipients []string                      `json:"-"`
}

func (TicketMessageAdded) Topic() string            { return TopicTicketMessageAdded }
func (e TicketMessageAdded) RecipientIDs() []string { return e.Recipients }

type TypingUser struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	Recipients     []string `json:"-"`
}

func (TypingUser) Topic() string            { return TopicTypingUser }
func (e TypingUser) RecipientIDs() []string { return e.Recipients }

type CommunicationItemAdded struct {
	WorkspaceID string                        `json:"workspace_id"`
	Item        *entity.CommunicationListItem `json:"item"`
	Recipients  []string                      `json:"-"`
}

func (CommunicationItemAdded) Topic() string            { return TopicItemAdded }
func (e CommunicationItemAdded) RecipientIDs() []string { return e.Recipients }

// CommunicationItemUpdated refreshes list previews for changes that are not
// message events, e.g. a ticket status or priority edit. Unread counts are
// untouched on the receiving side.
type CommunicationItemUpdated struct {
	WorkspaceID string                        `json:"workspace_id"`
	Item        *entity.CommunicationListItem `json:"item"`
	Recipients  []string                      `json:"-"`
}

func (CommunicationItemUpdated) Topic() string            { return TopicItemUpdated }
func (e CommunicationItemUpdated) RecipientIDs() []string { return e.Recipients }

type ParticipantRemoved struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	Recipients     []string `json:"-"`
}

func (ParticipantRemoved) Topic() string            { return TopicParticipantRemoved }
func (e ParticipantRemoved) RecipientIDs() []string { return e.Recipients }
