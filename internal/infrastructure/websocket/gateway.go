package websocket

import (
	"encoding/json"
	"time"

	"commsync/internal/domain/event"
	"commsync/internal/infrastructure/eventbus"
	"commsync/pkg/logger"
)

// WebSocket frame types
const (
	FrameTypePing  = "ping"
	FrameTypePong  = "pong"
	FrameTypeError = "error"
)

// WSMessage is the frame format on the wire: the event topic as type, the
// event variant as data.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Gateway turns bus topics into per-connection live streams. Authorization
// happens here, server-side: each connection gets one bus subscription whose
// predicate checks the event's recipient list against the connected user, so
// a removed participant stops receiving events for that conversation.
type Gateway struct {
	bus     *eventbus.Bus
	manager *Manager
}

func NewGateway(bus *eventbus.Bus, manager *Manager) *Gateway {
	return &Gateway{
		bus:     bus,
		manager: manager,
	}
}

// pushTopics are all topics a connected client receives.
var pushTopics = []string{
	event.TopicMessageAdded,
	event.TopicTicketMessageAdded,
	event.TopicTypingUser,
	event.TopicItemAdded,
	event.TopicItemUpdated,
	event.TopicParticipantRemoved,
}

// AuthPredicate accepts events addressed to userID. Ticket events are also
// delivered to support-side subscribers regardless of the recipient list.
func AuthPredicate(userID string, isSupport bool) eventbus.Predicate {
	return func(ev event.Event) bool {
		for _, id := range ev.RecipientIDs() {
			if id == userID {
				return true
			}
		}
		if !isSupport {
			return false
		}
		switch ev.(type) {
		case event.TicketMessageAdded, event.CommunicationItemAdded, event.CommunicationItemUpdated:
			return true
		}
		return false
	}
}

// Attach subscribes the client to the bus and starts forwarding events until
// the connection drops. The subscription is cancelled via Client.OnClose.
func (g *Gateway) Attach(client *Client, isSupport bool) {
	sub := g.bus.Subscribe(pushTopics, AuthPredicate(client.UserID, isSupport))
	client.OnClose = sub.Cancel

	// This goroutine closes Send: the pong/error path writes only from the
	// read loop, which exits before Unregister fires, so once Cancel ends
	// the stream and the buffer drains nothing else can send.
	go func() {
		defer close(client.Send)
		for ev := range sub.Events() {
			frame := WSMessage{
				Type:      ev.Topic(),
				Data:      ev,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			raw, err := json.Marshal(frame)
			if err != nil {
				logger.Error("gateway: failed to marshal %s event: %v", ev.Topic(), err)
				continue
			}
			select {
			case client.Send <- raw:
			default:
				logger.Warn("gateway: send buffer full for user %s, dropping %s event", client.UserID, ev.Topic())
			}
		}
	}()
}

// HandleClientMessage processes frames sent by the client. The push channel
// is one-way except for keepalive pings; all mutations go through HTTP.
func (g *Gateway) HandleClientMessage(client *Client, raw []byte) {
	var frame WSMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.sendError(client, "invalid frame")
		return
	}

	switch frame.Type {
	case FrameTypePing:
		g.send(client, WSMessage{
			Type:      FrameTypePong,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	default:
		g.sendError(client, "unknown frame type")
	}
}

func (g *Gateway) send(client *Client, frame WSMessage) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case client.Send <- raw:
	default:
	}
}

func (g *Gateway) sendError(client *Client, msg string) {
	g.send(client, WSMessage{
		Type:      FrameTypeError,
		Data:      map[string]string{"error": msg},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
