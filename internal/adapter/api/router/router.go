package router

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	SetupCommunicationRouter(e, authMiddleware)
	SetupConversationRouter(e, authMiddleware)
	SetupTicketRouter(e, authMiddleware, adminMiddleware)
	SetupHealthRouter(e)
}
