package repository

import (
	"context"

	"commsync/internal/domain/entity"
)

type TicketRepository interface {
	// Create stores the ticket together with its initial message atomically.
	Create(ctx context.Context, ticket *entity.Ticket, initial *entity.TicketMessage) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*entity.Ticket, error)
	ListByCreator(ctx context.Context, workspaceID, userID string) ([]*entity.Ticket, error)
	Update(ctx context.Context, ticket *entity.Ticket) error

	// AppendMessage stores the message and the touched ticket metadata in one
	// atomic write.
	AppendMessage(ctx context.Context, ticket *entity.Ticket, message *entity.TicketMessage) error

	// ListMessages pages newest-first; cursor is the createdAt position of
	// the last message of the previous page (empty for the first page).
	ListMessages(ctx context.Context, ticketID, cursor string, limit int) ([]*entity.TicketMessage, string, error)
	ResetUnread(ctx context.Context, ticketID string, support bool) error
}
