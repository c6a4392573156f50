package router

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/adapter/api/handler"
)

// SetupWebSocketRouter wires the push endpoint. No auth middleware here; the
// handler verifies the token itself because it arrives as a query parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
