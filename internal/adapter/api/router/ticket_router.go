package router

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/adapter/api/handler"
	"commsync/internal/adapter/api/middleware"
)

// SetupTicketRouter wires the support ticket routes. Creator-or-support
// checks live in the use case layer; the workspace-wide queue is gated to
// the admin role at the route.
func SetupTicketRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	ticketHandler := handler.GetTicketHandler()

	group := e.Group("/v1/tickets")
	group.Use(authMiddleware.Authenticate)

	group.POST("", ticketHandler.CreateTicket)
	group.GET("", ticketHandler.ListWorkspaceTickets, adminMiddleware.AdminOnly)
	group.GET("/:id", ticketHandler.GetTicketDetails)
	group.POST("/:id/messages", ticketHandler.SendTicketMessage)

	group.PATCH("/:id/status", ticketHandler.UpdateTicketStatus)
	group.PATCH("/:id/priority", ticketHandler.UpdateTicketPriority)
}
