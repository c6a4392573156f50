package repository

import (
	"context"

	"commsync/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUserID(ctx context.Context, workspaceID, userID string) ([]*entity.Conversation, error)
	Update(ctx context.Context, conversation *entity.Conversation) error

	// AppendMessage stores the message and the touched conversation metadata
	// (last message, updatedAt, unread counters) in one atomic write.
	AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	ResetUnread(ctx context.Context, conversationID, userID string) error
}
