package repository

import (
	"context"

	"commsync/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*entity.User, error)
}
