package usecase

import (
	"context"
	"sort"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/repository"
	"commsync/pkg/errors"
)

// CommunicationUseCase serves the merged communication list: every
// conversation and ticket a user can see, projected to list items ordered by
// recency, plus the workspace member roster.
type CommunicationUseCase struct {
	conversationRepo repository.ConversationRepository
	ticketRepo       repository.TicketRepository
	userRepo         repository.UserRepository
}

func NewCommunicationUseCase(
	conversationRepo repository.ConversationRepository,
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
) *CommunicationUseCase {
	return &CommunicationUseCase{
		conversationRepo: conversationRepo,
		ticketRepo:       ticketRepo,
		userRepo:         userRepo,
	}
}

type CommunicationList struct {
	Items   []*entity.CommunicationListItem `json:"items"`
	Members []*entity.User                  `json:"members"`
}

func (uc *CommunicationUseCase) GetCommunicationList(ctx context.Context, userID, workspaceID string) (*CommunicationList, error) {
	viewer, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !viewer.InWorkspace(workspaceID) {
		return nil, errors.Forbidden("User is not a member of this workspace", nil)
	}

	members, err := uc.userRepo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Username
	}

	conversations, err := uc.conversationRepo.ListByUserID(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	var tickets []*entity.Ticket
	if viewer.IsSupport() {
		tickets, err = uc.ticketRepo.ListByWorkspace(ctx, workspaceID)
	} else {
		tickets, err = uc.ticketRepo.ListByCreator(ctx, workspaceID, userID)
	}
	if err != nil {
		return nil, err
	}

	items := make([]*entity.CommunicationListItem, 0, len(conversations)+len(tickets))
	for _, c := range conversations {
		item := conversationItem(c, c.UnreadCount[userID])
		item.Title = conversationTitle(c, userID, names)
		items = append(items, item)
	}
	for _, t := range tickets {
		unread := t.CreatorUnread
		if viewer.IsSupport() {
			unread = t.AdminUnread
		}
		items = append(items, ticketItem(t, unread))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastActivityAt.After(items[j].LastActivityAt)
	})

	return &CommunicationList{
		Items:   items,
		Members: members,
	}, nil
}

// conversationItem projects a conversation to a list item. Pushed items
// carry no viewer-specific unread count; pull queries fill it in.
func conversationItem(c *entity.Conversation, unread int) *entity.CommunicationListItem {
	return &entity.CommunicationListItem{
		ID:             c.ID,
		Kind:           entity.ItemConversation,
		WorkspaceID:    c.WorkspaceID,
		Title:          c.Name,
		Preview:        c.LastMessage,
		LastActivityAt: c.LastMessageAt,
		UnreadCount:    unread,
	}
}

func ticketItem(t *entity.Ticket, unread int) *entity.CommunicationListItem {
	return &entity.CommunicationListItem{
		ID:             t.ID,
		Kind:           entity.ItemTicket,
		WorkspaceID:    t.WorkspaceID,
		Title:          t.Subject,
		Preview:        t.LastMessage,
		LastActivityAt: t.LastMessageAt,
		UnreadCount:    unread,
	}
}

// conversationTitle names a direct conversation after the other member.
func conversationTitle(c *entity.Conversation, viewerID string, names map[string]string) string {
	if c.Kind == entity.ConversationGroup {
		return c.Name
	}
	for _, p := range c.Participants {
		if p.UserID != viewerID {
			if name, ok := names[p.UserID]; ok {
				return name
			}
			return p.UserID
		}
	}
	return c.Name
}
