package router

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/adapter/api/handler"
	"commsync/internal/adapter/api/middleware"
)

// SetupConversationRouter wires all conversation routes (excluding WebSocket).
func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	conversationHandler := handler.GetConversationHandler()

	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("/direct", conversationHandler.CreateDirectConversation)
	group.POST("/group", conversationHandler.CreateGroupConversation)
	group.GET("/:id", conversationHandler.GetConversationDetails)
	group.PUT("/:id/read", conversationHandler.MarkConversationAsRead)

	group.POST("/:id/messages", conversationHandler.SendMessage)
	group.GET("/:id/messages", conversationHandler.GetConversationMessages)
	group.POST("/:id/typing", conversationHandler.Typing)

	group.POST("/:id/leave", conversationHandler.LeaveConversation)
	group.POST("/:id/participants", conversationHandler.AddParticipants)
	group.DELETE("/:id/participants/:userId", conversationHandler.RemoveParticipant)
}
