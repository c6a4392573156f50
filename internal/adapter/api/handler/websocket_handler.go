package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"commsync/internal/domain/repository"
	"commsync/internal/infrastructure/firebase"
	ws "commsync/internal/infrastructure/websocket"
	"commsync/pkg/errors"
	"commsync/pkg/logger"
)

// WebSocketHandler upgrades authenticated connections and attaches them to
// the subscription gateway. Authentication happens inside the handler because
// browser WebSocket clients cannot set an Authorization header on the
// upgrade request; the token rides in a query parameter instead.
type WebSocketHandler struct {
	manager      *ws.Manager
	gateway      *ws.Gateway
	firebaseAuth *firebase.AuthClient
	userRepo     repository.UserRepository
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to known origins before exposing publicly
	},
}

func NewWebSocketHandler(
	manager *ws.Manager,
	gateway *ws.Gateway,
	firebaseAuth *firebase.AuthClient,
	userRepo repository.UserRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		manager:      manager,
		gateway:      gateway,
		firebaseAuth: firebaseAuth,
		userRepo:     userRepo,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthenticated("Authentication token is required", nil)
	}

	userID, err := h.firebaseAuth.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthenticated("Invalid or expired token", err)
	}

	user, err := h.userRepo.GetByID(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.manager.Register <- client
	h.gateway.Attach(client, user.IsSupport())

	go client.ReadPump(h.manager, h.gateway.HandleClientMessage)
	go client.WritePump()

	logger.Info("websocket: connection established for user %s", userID)
	return nil
}
