package router

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/adapter/api/handler"
	"commsync/internal/adapter/api/middleware"
)

func SetupCommunicationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	communicationHandler := handler.GetCommunicationHandler()

	group := e.Group("/v1/workspaces")
	group.Use(authMiddleware.Authenticate)

	group.GET("/:workspaceId/communications", communicationHandler.GetCommunicationList)
}
