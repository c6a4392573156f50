package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"commsync/internal/usecase"
	"commsync/pkg/response"
	"commsync/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

type createDirectConversationRequest struct {
	WorkspaceID    string `json:"workspace_id" validate:"required"`
	RecipientID    string `json:"recipient_id" validate:"required"`
	InitialMessage string `json:"initial_message"`
}

type createGroupConversationRequest struct {
	WorkspaceID    string   `json:"workspace_id" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type addParticipantsRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1"`
}

// CreateDirectConversation starts (or reuses) a 1:1 conversation.
func (h *ConversationHandler) CreateDirectConversation(c echo.Context) error {
	var req createDirectConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conversation, err := h.conversationUseCase.CreateDirectConversation(c.Request().Context(), userID, usecase.CreateDirectConversationInput{
		WorkspaceID:    req.WorkspaceID,
		RecipientID:    req.RecipientID,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// CreateGroupConversation creates a named group conversation.
func (h *ConversationHandler) CreateGroupConversation(c echo.Context) error {
	var req createGroupConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conversation, err := h.conversationUseCase.CreateGroupConversation(c.Request().Context(), userID, usecase.CreateGroupConversationInput{
		WorkspaceID:    req.WorkspaceID,
		Name:           req.Name,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// GetConversationDetails returns a conversation with its message history.
func (h *ConversationHandler) GetConversationDetails(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	detail, err := h.conversationUseCase.GetConversationDetails(c.Request().Context(), userID, conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, detail)
}

// SendMessage posts a message to a conversation.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.conversationUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetConversationMessages returns a page of conversation history.
func (h *ConversationHandler) GetConversationMessages(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	params := utils.GetPaginationParams(c)

	messages, total, err := h.conversationUseCase.GetConversationMessages(c.Request().Context(), userID, conversationID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// Typing publishes an ephemeral typing signal for the conversation.
func (h *ConversationHandler) Typing(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.UserIsTyping(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

// MarkConversationAsRead zeroes the caller's unread counter.
func (h *ConversationHandler) MarkConversationAsRead(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.MarkConversationAsRead(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// LeaveConversation soft-removes the caller from a group conversation.
func (h *ConversationHandler) LeaveConversation(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.LeaveConversation(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// AddParticipants adds members to a group conversation.
func (h *ConversationHandler) AddParticipants(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	var req addParticipantsRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	conversation, err := h.conversationUseCase.AddParticipants(c.Request().Context(), userID, conversationID, req.UserIDs)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

// RemoveParticipant soft-removes another member from a group conversation.
func (h *ConversationHandler) RemoveParticipant(c echo.Context) error {
	conversationID := c.Param("id")
	targetID := c.Param("userId")
	actorID := c.Get("uid").(string)

	if err := h.conversationUseCase.RemoveParticipant(c.Request().Context(), actorID, conversationID, targetID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}
