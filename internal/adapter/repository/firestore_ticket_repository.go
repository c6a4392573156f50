package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/repository"
	"commsync/pkg/errors"
	"commsync/pkg/logger"
)

type firestoreTicketRepository struct {
	client *firestore.Client
}

func NewFirestoreTicketRepository(client *firestore.Client) repository.TicketRepository {
	return &firestoreTicketRepository{
		client: client,
	}
}

func (r *firestoreTicketRepository) Create(ctx context.Context, ticket *entity.Ticket, initial *entity.TicketMessage) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	ticketRef := r.client.Collection("tickets").Doc(ticket.ID)

	if initial == nil {
		if _, err := ticketRef.Set(ctx, ticket); err != nil {
			return errors.Transient("Failed to create ticket", err)
		}
		return nil
	}

	if initial.ID == "" {
		initial.ID = uuid.New().String()
	}
	initial.TicketID = ticket.ID
	if initial.CreatedAt.IsZero() {
		initial.CreatedAt = now
	}
	msgRef := ticketRef.Collection("messages").Doc(initial.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(ticketRef, ticket); err != nil {
			return err
		}
		return tx.Set(msgRef, initial)
	})
	if err != nil {
		return errors.Transient("Failed to create ticket", err)
	}

	return nil
}

func (r *firestoreTicketRepository) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	doc, err := r.client.Collection("tickets").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Ticket", nil)
		}
		return nil, errors.Transient("Failed to get ticket", err)
	}

	var ticket entity.Ticket
	if err := doc.DataTo(&ticket); err != nil {
		return nil, errors.Internal("Failed to parse ticket data", err)
	}

	return &ticket, nil
}

func (r *firestoreTicketRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*entity.Ticket, error) {
	query := r.client.Collection("tickets").
		Where("workspaceId", "==", workspaceID).
		OrderBy("lastMessageAt", firestore.Desc)

	return r.collect(ctx, query, workspaceID)
}

func (r *firestoreTicketRepository) ListByCreator(ctx context.Context, workspaceID, userID string) ([]*entity.Ticket, error) {
	query := r.client.Collection("tickets").
		Where("workspaceId", "==", workspaceID).
		Where("createdBy", "==", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	return r.collect(ctx, query, workspaceID)
}

func (r *firestoreTicketRepository) collect(ctx context.Context, query firestore.Query, workspaceID string) ([]*entity.Ticket, error) {
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching tickets for workspace %s: %v", workspaceID, err)
		return nil, errors.Transient("Failed to fetch tickets", err)
	}

	var tickets []*entity.Ticket
	for _, doc := range docs {
		var ticket entity.Ticket
		if err := doc.DataTo(&ticket); err != nil {
			logger.Error("Error parsing ticket data for workspace %s: %v", workspaceID, err)
			continue
		}
		tickets = append(tickets, &ticket)
	}

	return tickets, nil
}

func (r *firestoreTicketRepository) Update(ctx context.Context, ticket *entity.Ticket) error {
	ticket.UpdatedAt = time.Now()

	_, err := r.client.Collection("tickets").Doc(ticket.ID).Set(ctx, ticket)
	if err != nil {
		return errors.Transient("Failed to update ticket", err)
	}

	return nil
}

// AppendMessage writes the message and the ticket metadata in a single
// transaction, mirroring the conversation repository.
func (r *firestoreTicketRepository) AppendMessage(ctx context.Context, ticket *entity.Ticket, message *entity.TicketMessage) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = time.Now()

	ticketRef := r.client.Collection("tickets").Doc(ticket.ID)
	msgRef := ticketRef.Collection("messages").Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(msgRef, message); err != nil {
			return err
		}
		return tx.Set(ticketRef, ticket)
	})
	if err != nil {
		return errors.Transient("Failed to append ticket message", err)
	}

	return nil
}

// ListMessages pages newest-first. The cursor is the createdAt of the last
// message of the previous page in RFC3339Nano; callers reverse the page to
// chronological order for display.
func (r *firestoreTicketRepository) ListMessages(ctx context.Context, ticketID, cursor string, limit int) ([]*entity.TicketMessage, string, error) {
	if limit <= 0 {
		limit = 50
	}

	query := r.client.Collection("tickets").Doc(ticketID).Collection("messages").
		OrderBy("createdAt", firestore.Desc)

	if cursor != "" {
		after, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, "", errors.Validation("Invalid cursor", err)
		}
		query = query.StartAfter(after)
	}

	iter := query.Limit(limit).Documents(ctx)
	var messages []*entity.TicketMessage

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for ticket %s: %v", ticketID, err)
			return nil, "", errors.Transient("Failed to iterate ticket messages", err)
		}

		var message entity.TicketMessage
		if err := doc.DataTo(&message); err != nil {
			logger.Error("Error parsing ticket message data for ticket %s: %v", ticketID, err)
			return nil, "", errors.Internal("Failed to parse ticket message data", err)
		}

		messages = append(messages, &message)
	}

	nextCursor := ""
	if len(messages) == limit {
		nextCursor = messages[len(messages)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	return messages, nextCursor, nil
}

func (r *firestoreTicketRepository) ResetUnread(ctx context.Context, ticketID string, support bool) error {
	field := "creatorUnread"
	if support {
		field = "adminUnread"
	}

	_, err := r.client.Collection("tickets").Doc(ticketID).Update(ctx, []firestore.Update{
		{Path: field, Value: 0},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Ticket", nil)
		}
		return errors.Transient("Failed to reset ticket unread count", err)
	}

	return nil
}
