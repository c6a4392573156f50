package usecase

import (
	"context"
	"time"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/event"
	"commsync/internal/domain/repository"
	"commsync/internal/infrastructure/eventbus"
	"commsync/internal/infrastructure/ratelimit"
	"commsync/pkg/errors"
	"commsync/pkg/logger"
)

type TicketUseCase struct {
	ticketRepo  repository.TicketRepository
	userRepo    repository.UserRepository
	bus         *eventbus.Bus
	rateLimiter *ratelimit.RateLimiter
}

func NewTicketUseCase(
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
	bus *eventbus.Bus,
	rateLimiter *ratelimit.RateLimiter,
) *TicketUseCase {
	return &TicketUseCase{
		ticketRepo:  ticketRepo,
		userRepo:    userRepo,
		bus:         bus,
		rateLimiter: rateLimiter,
	}
}

type CreateTicketInput struct {
	WorkspaceID string
	Subject     string
	Priority    entity.TicketPriority
	Message     string
}

type SendTicketMessageInput struct {
	TicketID string
	Content  string
}

type TicketDetail struct {
	*entity.Ticket
	Messages   []*entity.TicketMessage `json:"messages"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

type TicketMessageResponse struct {
	*entity.TicketMessage
	Sender *entity.User `json:"sender,omitempty"`
}

func (uc *TicketUseCase) CreateTicket(ctx context.Context, userID string, input CreateTicketInput) (*entity.Ticket, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "create_ticket")
	if !allowed {
		logger.Warn("CreateTicket rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before creating another ticket")
	}

	if input.Subject == "" {
		return nil, errors.Validation("Ticket subject cannot be empty", nil)
	}
	if input.Message == "" {
		return nil, errors.Validation("Ticket message cannot be empty", nil)
	}
	if input.Priority == "" {
		input.Priority = entity.PriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, errors.Validation("Invalid ticket priority", nil)
	}

	creator, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !creator.InWorkspace(input.WorkspaceID) {
		return nil, errors.Forbidden("User is not a member of this workspace", nil)
	}

	now := time.Now()
	isSupport := creator.IsSupport()

	ticket := &entity.Ticket{
		WorkspaceID:   input.WorkspaceID,
		Subject:       input.Subject,
		Priority:      input.Priority,
		Status:        entity.StatusOpen,
		CreatedBy:     userID,
		LastMessage:   input.Message,
		LastMessageAt: now,
	}
	if !isSupport {
		ticket.AdminUnread = 1
	}

	initial := &entity.TicketMessage{
		SenderID:  userID,
		Content:   input.Message,
		IsSupport: isSupport,
		CreatedAt: now,
	}

	if err := uc.ticketRepo.Create(ctx, ticket, initial); err != nil {
		logger.Error("CreateTicket: failed to create ticket: %v", err)
		return nil, err
	}

	uc.bus.Publish(event.CommunicationItemAdded{
		WorkspaceID: ticket.WorkspaceID,
		Item:        ticketItem(ticket, 0),
		Recipients:  []string{userID},
	})

	return ticket, nil
}

// SendTicketMessage appends a message, updates the ticket metadata in the
// same atomic write, and publishes TicketMessageAdded after the commit.
func (uc *TicketUseCase) SendTicketMessage(ctx context.Context, userID string, input SendTicketMessageInput) (*TicketMessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message")
	if !allowed {
		logger.Warn("SendTicketMessage rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	if input.Content == "" {
		return nil, errors.Validation("Message content cannot be empty", nil)
	}

	ticket, err := uc.ticketRepo.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}

	sender, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if ticket.CreatedBy != userID && !sender.IsSupport() {
		return nil, errors.Forbidden("Only the ticket creator or support staff can post to this ticket", nil)
	}

	isSupport := sender.IsSupport()
	message := &entity.TicketMessage{
		TicketID:  ticket.ID,
		SenderID:  userID,
		Content:   input.Content,
		IsSupport: isSupport,
		CreatedAt: time.Now(),
	}

	ticket.LastMessage = message.Content
	ticket.LastMessageAt = message.CreatedAt
	// Only non-support messages count toward the support-facing unread.
	if isSupport {
		ticket.CreatorUnread++
	} else {
		ticket.AdminUnread++
	}

	if err := uc.ticketRepo.AppendMessage(ctx, ticket, message); err != nil {
		logger.Error("SendTicketMessage: failed to append message to ticket %s: %v", ticket.ID, err)
		return nil, err
	}

	uc.bus.Publish(event.TicketMessageAdded{
		TicketID:   ticket.ID,
		Message:    message,
		IsSupport:  isSupport,
		Item:       ticketItem(ticket, 0),
		Recipients: []string{ticket.CreatedBy},
	})

	return &TicketMessageResponse{
		TicketMessage: message,
		Sender:        sender,
	}, nil
}

func (uc *TicketUseCase) UpdateTicketStatus(ctx context.Context, userID, ticketID string, status entity.TicketStatus) (*entity.Ticket, error) {
	if !status.Valid() {
		return nil, errors.Validation("Invalid ticket status", nil)
	}
	return uc.updateTicket(ctx, userID, ticketID, func(t *entity.Ticket) {
		t.Status = status
	})
}

func (uc *TicketUseCase) UpdateTicketPriority(ctx context.Context, userID, ticketID string, priority entity.TicketPriority) (*entity.Ticket, error) {
	if !priority.Valid() {
		return nil, errors.Validation("Invalid ticket priority", nil)
	}
	return uc.updateTicket(ctx, userID, ticketID, func(t *entity.Ticket) {
		t.Priority = priority
	})
}

func (uc *TicketUseCase) updateTicket(ctx context.Context, userID, ticketID string, apply func(*entity.Ticket)) (*entity.Ticket, error) {
	ticket, err := uc.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	actor, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ticket.CreatedBy != userID && !actor.IsSupport() {
		return nil, errors.Forbidden("Only the ticket creator or support staff can update this ticket", nil)
	}

	apply(ticket)

	if err := uc.ticketRepo.Update(ctx, ticket); err != nil {
		logger.Error("updateTicket: failed to update ticket %s: %v", ticketID, err)
		return nil, err
	}

	// No message was added; push a list-item refresh with unread untouched.
	uc.bus.Publish(event.CommunicationItemUpdated{
		WorkspaceID: ticket.WorkspaceID,
		Item:        ticketItem(ticket, 0),
		Recipients:  []string{ticket.CreatedBy},
	})

	return ticket, nil
}

// GetTicketDetails returns the ticket and one page of its message history.
// Messages are fetched newest-first and reversed to chronological order for
// display. Opening the ticket clears the viewer-side unread counter.
func (uc *TicketUseCase) GetTicketDetails(ctx context.Context, userID, ticketID, cursor string, limit int) (*TicketDetail, error) {
	ticket, err := uc.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	viewer, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ticket.CreatedBy != userID && !viewer.IsSupport() {
		return nil, errors.Forbidden("Only the ticket creator or support staff can view this ticket", nil)
	}

	messages, nextCursor, err := uc.ticketRepo.ListMessages(ctx, ticketID, cursor, limit)
	if err != nil {
		return nil, err
	}

	// Reverse newest-first page to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	// First page open counts as a read for the viewer's side.
	if cursor == "" {
		if err := uc.ticketRepo.ResetUnread(ctx, ticketID, viewer.IsSupport()); err != nil {
			logger.Warn("GetTicketDetails: failed to reset unread for ticket %s: %v", ticketID, err)
		}
	}

	return &TicketDetail{
		Ticket:     ticket,
		Messages:   messages,
		NextCursor: nextCursor,
	}, nil
}

// ListWorkspaceTickets returns every ticket in a workspace for the support
// queue. Role enforcement sits on the route; members reach their own tickets
// through the communication list.
func (uc *TicketUseCase) ListWorkspaceTickets(ctx context.Context, workspaceID string) ([]*entity.Ticket, error) {
	return uc.ticketRepo.ListByWorkspace(ctx, workspaceID)
}
