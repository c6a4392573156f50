package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"commsync/pkg/logger"
)

// Client represents one WebSocket connection. The gateway's forwarding
// goroutine owns Send: it closes the channel after OnClose cancels the bus
// subscription and the buffered events drain, so the manager never does.
type Client struct {
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	OnClose func() // invoked once when the connection goes away
}

// Manager tracks all active WebSocket connections. A user may hold several
// connections (multiple tabs/devices).
type Manager struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client] = struct{}{}
				m.mutex.Unlock()
				logger.Info("websocket: client registered for user %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				_, ok := m.clients[client]
				if ok {
					delete(m.clients, client)
				}
				m.mutex.Unlock()
				if ok {
					if client.OnClose != nil {
						client.OnClose()
					}
					logger.Info("websocket: client unregistered for user %s", client.UserID)
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}

// ReadPump consumes frames from the connection until it drops. Incoming
// frames are handed to the gateway's client-message handler.
func (c *Client) ReadPump(m *Manager, handle func(c *Client, raw []byte)) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("websocket: read error for user %s: %v", c.UserID, err)
			}
			break
		}
		if handle != nil {
			handle(c, raw)
		}
	}
}

// WritePump flushes the Send channel to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("websocket: write error for user %s: %v", c.UserID, err)
			return
		}
	}
}
