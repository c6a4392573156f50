package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/event"
	"commsync/internal/infrastructure/eventbus"
)

func TestAuthPredicateMatchesRecipient(t *testing.T) {
	pred := AuthPredicate("bob", false)

	assert.True(t, pred(event.MessageAdded{
		ConversationID: "c1",
		Message:        &entity.Message{ID: "m1"},
		Recipients:     []string{"alice", "bob"},
	}))

	assert.False(t, pred(event.MessageAdded{
		ConversationID: "c1",
		Message:        &entity.Message{ID: "m1"},
		Recipients:     []string{"alice", "carol"},
	}))
}

func TestAuthPredicateRemovedUserStopsReceiving(t *testing.T) {
	pred := AuthPredicate("bob", false)

	// The removal notice itself is addressed to the removed user.
	assert.True(t, pred(event.ParticipantRemoved{
		ConversationID: "c1",
		UserID:         "bob",
		Recipients:     []string{"alice", "bob"},
	}))

	// Everything after excludes them from the recipient list.
	assert.False(t, pred(event.MessageAdded{
		ConversationID: "c1",
		Message:        &entity.Message{ID: "m2"},
		Recipients:     []string{"alice"},
	}))
}

func TestAuthPredicateSupportSeesTicketTraffic(t *testing.T) {
	pred := AuthPredicate("agent", true)

	// Ticket events reach every support subscriber even when not listed.
	assert.True(t, pred(event.TicketMessageAdded{
		TicketID:   "t1",
		Message:    &entity.TicketMessage{ID: "m1"},
		Recipients: []string{"alice"},
	}))
	assert.True(t, pred(event.CommunicationItemAdded{
		WorkspaceID: "w1",
		Item:        &entity.CommunicationListItem{ID: "t1", Kind: entity.ItemTicket},
		Recipients:  []string{"alice"},
	}))

	// Conversation traffic still requires membership.
	assert.False(t, pred(event.MessageAdded{
		ConversationID: "c1",
		Message:        &entity.Message{ID: "m1"},
		Recipients:     []string{"alice", "bob"},
	}))
	assert.False(t, pred(event.TypingUser{
		ConversationID: "c1",
		UserID:         "alice",
		Recipients:     []string{"bob"},
	}))
}

func TestAuthPredicateMemberGetsNoTicketShortcut(t *testing.T) {
	pred := AuthPredicate("bob", false)

	assert.False(t, pred(event.TicketMessageAdded{
		TicketID:   "t1",
		Message:    &entity.TicketMessage{ID: "m1"},
		Recipients: []string{"alice"},
	}))
}

func messageFor(userID, msgID string) event.MessageAdded {
	return event.MessageAdded{
		ConversationID: "c1",
		Message:        &entity.Message{ID: msgID},
		Recipients:     []string{userID},
	}
}

// drainUntilClosed reads frames off Send until the forwarder closes it,
// failing the test if that never happens.
func drainUntilClosed(t *testing.T, client *Client) int {
	t.Helper()
	frames := 0
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Send:
			if !ok {
				return frames
			}
			frames++
		case <-deadline:
			t.Fatal("send channel never closed")
		}
	}
}

func TestAttachClosesSendAfterSubscriptionDrains(t *testing.T) {
	bus := eventbus.New()
	g := NewGateway(bus, NewManager())

	client := &Client{UserID: "bob", Send: make(chan []byte, 1)}
	g.Attach(client, false)

	// Traffic still buffered on the subscription when the connection drops.
	bus.Publish(messageFor("bob", "m1"))
	bus.Publish(messageFor("bob", "m2"))
	client.OnClose()

	frames := drainUntilClosed(t, client)
	assert.GreaterOrEqual(t, frames, 1)
}

func TestUnregisterWithTrafficInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	manager := NewManager()
	manager.Start(ctx)
	g := NewGateway(bus, manager)

	client := &Client{UserID: "bob", Send: make(chan []byte, 8)}
	manager.Register <- client
	g.Attach(client, false)

	bus.Publish(messageFor("bob", "m1"))
	manager.Unregister <- client
	bus.Publish(messageFor("bob", "m2"))

	// The forwarder drains and closes Send; nothing panics on the late
	// publish.
	drainUntilClosed(t, client)
}
