package usecase

import (
	"context"
	"fmt"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/event"
	"commsync/internal/infrastructure/eventbus"
	"commsync/pkg/errors"
)

type fakeConversationRepo struct {
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	nextID        int

	createErr error
	updateErr error
	appendErr error

	resetCalls [][2]string // conversationID, userID
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	conversation.ID = fmt.Sprintf("conv-%d", r.nextID)
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conversation, nil
}

func (r *fakeConversationRepo) ListByUserID(ctx context.Context, workspaceID, userID string) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range r.conversations {
		if c.WorkspaceID == workspaceID && c.IsParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) Update(ctx context.Context, conversation *entity.Conversation) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *fakeConversationRepo) AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.nextID++
	message.ID = fmt.Sprintf("msg-%d", r.nextID)
	r.messages[conversation.ID] = append(r.messages[conversation.ID], message)
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *fakeConversationRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	all := r.messages[conversationID]
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	page := all[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return page, total, nil
}

func (r *fakeConversationRepo) ResetUnread(ctx context.Context, conversationID, userID string) error {
	r.resetCalls = append(r.resetCalls, [2]string{conversationID, userID})
	if c, ok := r.conversations[conversationID]; ok && c.UnreadCount != nil {
		c.UnreadCount[userID] = 0
	}
	return nil
}

type fakeTicketRepo struct {
	tickets  map[string]*entity.Ticket
	messages map[string][]*entity.TicketMessage
	nextID   int

	createErr error
	updateErr error
	appendErr error

	resetCalls []struct {
		TicketID string
		Support  bool
	}
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:  make(map[string]*entity.Ticket),
		messages: make(map[string][]*entity.TicketMessage),
	}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *entity.Ticket, initial *entity.TicketMessage) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	initial.TicketID = ticket.ID
	r.nextID++
	initial.ID = fmt.Sprintf("tmsg-%d", r.nextID)
	r.tickets[ticket.ID] = ticket
	r.messages[ticket.ID] = append(r.messages[ticket.ID], initial)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, errors.NotFound("Ticket", nil)
	}
	return ticket, nil
}

func (r *fakeTicketRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*entity.Ticket, error) {
	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListByCreator(ctx context.Context, workspaceID, userID string) ([]*entity.Ticket, error) {
	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.WorkspaceID == workspaceID && t.CreatedBy == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *entity.Ticket) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *fakeTicketRepo) AppendMessage(ctx context.Context, ticket *entity.Ticket, message *entity.TicketMessage) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.nextID++
	message.ID = fmt.Sprintf("tmsg-%d", r.nextID)
	r.messages[ticket.ID] = append(r.messages[ticket.ID], message)
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *fakeTicketRepo) ListMessages(ctx context.Context, ticketID, cursor string, limit int) ([]*entity.TicketMessage, string, error) {
	all := r.messages[ticketID]
	// Newest-first, mirroring the store's ordering.
	out := make([]*entity.TicketMessage, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, "", nil
}

func (r *fakeTicketRepo) ResetUnread(ctx context.Context, ticketID string, support bool) error {
	r.resetCalls = append(r.resetCalls, struct {
		TicketID string
		Support  bool
	}{ticketID, support})
	if t, ok := r.tickets[ticketID]; ok {
		if support {
			t.AdminUnread = 0
		} else {
			t.CreatorUnread = 0
		}
	}
	return nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

func (r *fakeUserRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.users {
		if u.InWorkspace(workspaceID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func member(id, workspaceID string) *entity.User {
	return &entity.User{ID: id, Username: id, Role: entity.RoleMember, WorkspaceIDs: []string{workspaceID}}
}

func admin(id, workspaceID string) *entity.User {
	return &entity.User{ID: id, Username: id, Role: entity.RoleAdmin, WorkspaceIDs: []string{workspaceID}}
}

// collectEvents subscribes to every topic and returns a drain function.
// Publish is synchronous into the subscriber buffer, so draining after the
// mutation under test sees everything it published.
func collectEvents(bus *eventbus.Bus) func() []event.Event {
	sub := bus.Subscribe([]string{
		event.TopicMessageAdded,
		event.TopicTicketMessageAdded,
		event.TopicTypingUser,
		event.TopicItemAdded,
		event.TopicItemUpdated,
		event.TopicParticipantRemoved,
	}, nil)

	return func() []event.Event {
		var out []event.Event
		for {
			select {
			case ev := <-sub.Events():
				out = append(out, ev)
			default:
				return out
			}
		}
	}
}
