package handler

import (
	"github.com/labstack/echo/v4"

	"commsync/internal/usecase"
	"commsync/pkg/response"
)

type CommunicationHandler struct {
	communicationUseCase *usecase.CommunicationUseCase
}

func NewCommunicationHandler(communicationUseCase *usecase.CommunicationUseCase) *CommunicationHandler {
	return &CommunicationHandler{
		communicationUseCase: communicationUseCase,
	}
}

// GetCommunicationList returns the merged conversation/ticket list for a
// workspace, newest activity first, plus the member roster.
func (h *CommunicationHandler) GetCommunicationList(c echo.Context) error {
	workspaceID := c.Param("workspaceId")
	userID := c.Get("uid").(string)

	list, err := h.communicationUseCase.GetCommunicationList(c.Request().Context(), userID, workspaceID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, list)
}
