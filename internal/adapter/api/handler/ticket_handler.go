package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"commsync/internal/domain/entity"
	"commsync/internal/usecase"
	"commsync/pkg/errors"
	"commsync/pkg/response"
)

type TicketHandler struct {
	ticketUseCase *usecase.TicketUseCase
}

func NewTicketHandler(ticketUseCase *usecase.TicketUseCase) *TicketHandler {
	return &TicketHandler{
		ticketUseCase: ticketUseCase,
	}
}

type createTicketRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Message     string `json:"message" validate:"required"`
}

type sendTicketMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type updateTicketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

type updateTicketPriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high"`
}

// CreateTicket opens a support ticket with its initial message.
func (h *TicketHandler) CreateTicket(c echo.Context) error {
	var req createTicketRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	ticket, err := h.ticketUseCase.CreateTicket(c.Request().Context(), userID, usecase.CreateTicketInput{
		WorkspaceID: req.WorkspaceID,
		Subject:     req.Subject,
		Priority:    entity.TicketPriority(req.Priority),
		Message:     req.Message,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, ticket)
}

// SendTicketMessage posts a reply to a ticket thread.
func (h *TicketHandler) SendTicketMessage(c echo.Context) error {
	ticketID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendTicketMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.ticketUseCase.SendTicketMessage(c.Request().Context(), userID, usecase.SendTicketMessageInput{
		TicketID: ticketID,
		Content:  req.Content,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// UpdateTicketStatus moves a ticket through its status lifecycle.
func (h *TicketHandler) UpdateTicketStatus(c echo.Context) error {
	ticketID := c.Param("id")
	userID := c.Get("uid").(string)

	var req updateTicketStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ticket, err := h.ticketUseCase.UpdateTicketStatus(c.Request().Context(), userID, ticketID, entity.TicketStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, ticket)
}

// UpdateTicketPriority changes a ticket's priority.
func (h *TicketHandler) UpdateTicketPriority(c echo.Context) error {
	ticketID := c.Param("id")
	userID := c.Get("uid").(string)

	var req updateTicketPriorityRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ticket, err := h.ticketUseCase.UpdateTicketPriority(c.Request().Context(), userID, ticketID, entity.TicketPriority(req.Priority))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, ticket)
}

// ListWorkspaceTickets returns every ticket in a workspace, regardless of
// creator. The route is admin-only; members reach their own tickets through
// the communication list.
func (h *TicketHandler) ListWorkspaceTickets(c echo.Context) error {
	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		return response.Error(c, errors.Validation("workspace_id is required", nil))
	}

	tickets, err := h.ticketUseCase.ListWorkspaceTickets(c.Request().Context(), workspaceID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, tickets)
}

// GetTicketDetails returns the ticket and a cursor-paginated page of its
// message history.
func (h *TicketHandler) GetTicketDetails(c echo.Context) error {
	ticketID := c.Param("id")
	userID := c.Get("uid").(string)
	cursor := c.QueryParam("cursor")

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	detail, err := h.ticketUseCase.GetTicketDetails(c.Request().Context(), userID, ticketID, cursor, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, detail)
}
