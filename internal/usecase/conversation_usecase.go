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

type ConversationUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	bus              *eventbus.Bus
	rateLimiter      *ratelimit.RateLimiter
}

func NewConversationUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	bus *eventbus.Bus,
	rateLimiter *ratelimit.RateLimiter,
) *ConversationUseCase {
	return &ConversationUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		bus:              bus,
		rateLimiter:      rateLimiter,
	}
}

type CreateDirectConversationInput struct {
	WorkspaceID    string
	RecipientID    string
	InitialMessage string
}

type CreateGroupConversationInput struct {
	WorkspaceID    string
	Name           string
	ParticipantIDs []string
}

type SendMessageInput struct {
	ConversationID string
	Content        string
}

type ConversationDetail struct {
	*entity.Conversation
	Messages []*entity.Message `json:"messages"`
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

func (uc *ConversationUseCase) CreateDirectConversation(ctx context.Context, userID string, input CreateDirectConversationInput) (*entity.Conversation, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "create_conversation")
	if !allowed {
		logger.Warn("CreateDirectConversation rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before creating another conversation")
	}

	if userID == input.RecipientID {
		return nil, errors.Validation("You cannot start a conversation with yourself", nil)
	}

	creator, err := uc.requireWorkspaceMember(ctx, userID, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.requireWorkspaceMember(ctx, input.RecipientID, input.WorkspaceID); err != nil {
		return nil, err
	}
	_ = creator

	// A direct pair has at most one conversation per workspace; reuse it.
	existing, err := uc.findExistingDirect(ctx, input.WorkspaceID, userID, input.RecipientID)
	if err != nil {
		return nil, err
	}

	conversation := existing
	if conversation == nil {
		now := time.Now()
		conversation = &entity.Conversation{
			WorkspaceID: input.WorkspaceID,
			Kind:        entity.ConversationDirect,
			CreatedBy:   userID,
			Participants: []entity.Participant{
				{UserID: userID, JoinedAt: now},
				{UserID: input.RecipientID, JoinedAt: now},
			},
			UnreadCount:   make(map[string]int),
			LastMessageAt: now,
		}

		if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
			logger.Error("CreateDirectConversation: failed to create conversation: %v", err)
			return nil, err
		}

		uc.bus.Publish(event.CommunicationItemAdded{
			WorkspaceID: conversation.WorkspaceID,
			Item:        conversationItem(conversation, 0),
			Recipients:  conversation.ActiveParticipantIDs(),
		})
	}

	if input.InitialMessage != "" {
		if _, err := uc.SendMessage(ctx, userID, SendMessageInput{
			ConversationID: conversation.ID,
			Content:        input.InitialMessage,
		}); err != nil {
			return nil, err
		}
	}

	return conversation, nil
}

func (uc *ConversationUseCase) CreateGroupConversation(ctx context.Context, userID string, input CreateGroupConversationInput) (*entity.Conversation, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "create_conversation")
	if !allowed {
		logger.Warn("CreateGroupConversation rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before creating another conversation")
	}

	if input.Name == "" {
		return nil, errors.Validation("Group conversations require a name", nil)
	}

	if _, err := uc.requireWorkspaceMember(ctx, userID, input.WorkspaceID); err != nil {
		return nil, err
	}

	// Creator is always a member; dedupe the requested ids.
	memberIDs := []string{userID}
	seen := map[string]struct{}{userID: {}}
	for _, id := range input.ParticipantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := uc.requireWorkspaceMember(ctx, id, input.WorkspaceID); err != nil {
			return nil, err
		}
		memberIDs = append(memberIDs, id)
	}

	if len(memberIDs) < 2 {
		return nil, errors.Validation("Group conversations require at least two participants", nil)
	}

	now := time.Now()
	participants := make([]entity.Participant, 0, len(memberIDs))
	for _, id := range memberIDs {
		participants = append(participants, entity.Participant{UserID: id, JoinedAt: now})
	}

	conversation := &entity.Conversation{
		WorkspaceID:   input.WorkspaceID,
		Kind:          entity.ConversationGroup,
		Name:          input.Name,
		CreatedBy:     userID,
		Participants:  participants,
		UnreadCount:   make(map[string]int),
		LastMessageAt: now,
	}

	if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
		logger.Error("CreateGroupConversation: failed to create conversation: %v", err)
		return nil, err
	}

	uc.bus.Publish(event.CommunicationItemAdded{
		WorkspaceID: conversation.WorkspaceID,
		Item:        conversationItem(conversation, 0),
		Recipients:  conversation.ActiveParticipantIDs(),
	})

	return conversation, nil
}

// SendMessage appends a message, updates the conversation metadata in the
// same atomic write, and publishes the MessageAdded event only after the
// commit succeeded.
func (uc *ConversationUseCase) SendMessage(ctx context.Context, userID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	if input.Content == "" {
		return nil, errors.Validation("Message content cannot be empty", nil)
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}

	if !conversation.IsActiveParticipant(userID) {
		logger.Warn("SendMessage: user %s is not an active participant in conversation %s", userID, input.ConversationID)
		return nil, errors.Forbidden("You are not an active participant in this conversation", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ConversationID: input.ConversationID,
		SenderID:       userID,
		Content:        input.Content,
		CreatedAt:      time.Now(),
	}

	conversation.LastMessage = message.Content
	conversation.LastMessageAt = message.CreatedAt
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	for _, participantID := range conversation.ActiveParticipantIDs() {
		if participantID != userID {
			conversation.UnreadCount[participantID]++
		}
	}

	if err := uc.conversationRepo.AppendMessage(ctx, conversation, message); err != nil {
		logger.Error("SendMessage: failed to append message to conversation %s: %v", input.ConversationID, err)
		return nil, err
	}

	uc.bus.Publish(event.MessageAdded{
		ConversationID: conversation.ID,
		Message:        message,
		Item:           conversationItem(conversation, 0),
		Recipients:     conversation.ActiveParticipantIDs(),
	})

	return &MessageResponse{
		Message: message,
		Sender:  sender,
	}, nil
}

// UserIsTyping publishes an ephemeral typing event. Nothing is persisted.
func (uc *ConversationUseCase) UserIsTyping(ctx context.Context, userID, conversationID string) error {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	if !allowed {
		return errors.TooManyRequests("Too many typing events")
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if !conversation.IsActiveParticipant(userID) {
		return errors.Forbidden("You are not an active participant in this conversation", nil)
	}

	recipients := make([]string, 0, len(conversation.Participants))
	for _, id := range conversation.ActiveParticipantIDs() {
		if id != userID {
			recipients = append(recipients, id)
		}
	}

	uc.bus.Publish(event.TypingUser{
		ConversationID: conversationID,
		UserID:         userID,
		Recipients:     recipients,
	})

	return nil
}

func (uc *ConversationUseCase) MarkConversationAsRead(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	// Former members may still open the history; resetting their counter is
	// harmless.
	if !conversation.IsParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}

	return uc.conversationRepo.ResetUnread(ctx, conversationID, userID)
}

// LeaveConversation soft-removes the caller from a group conversation.
// History stays visible; posting rights and pushes stop.
func (uc *ConversationUseCase) LeaveConversation(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conversation.Kind != entity.ConversationGroup {
		return errors.Validation("Direct conversations cannot be left", nil)
	}

	if !conversation.IsActiveParticipant(userID) {
		return errors.Forbidden("You are not an active participant in this conversation", nil)
	}

	uc.markLeft(conversation, userID)

	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		logger.Error("LeaveConversation: failed to update conversation %s: %v", conversationID, err)
		return err
	}

	uc.publishParticipantRemoved(conversation, userID)
	return nil
}

// RemoveParticipant soft-removes a member. Only the conversation creator or
// a workspace admin may remove others. The push is a UI convenience; the
// authorization check on the removed user's next send attempt is the
// enforcement backstop.
func (uc *ConversationUseCase) RemoveParticipant(ctx context.Context, actorID, conversationID, userID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conversation.Kind != entity.ConversationGroup {
		return errors.Validation("Participants cannot be removed from direct conversations", nil)
	}

	if !conversation.IsActiveParticipant(actorID) {
		return errors.Forbidden("You are not an active participant in this conversation", nil)
	}

	actor, err := uc.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if conversation.CreatedBy != actorID && actor.Role != entity.RoleAdmin {
		return errors.Forbidden("Only the conversation creator or an admin can remove participants", nil)
	}

	if !conversation.IsParticipant(userID) {
		return errors.NotFound("Participant", nil)
	}
	if !conversation.IsActiveParticipant(userID) {
		// Membership edits are idempotent; removing a removed member is a
		// no-op and publishes nothing.
		return nil
	}

	uc.markLeft(conversation, userID)

	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		logger.Error("RemoveParticipant: failed to update conversation %s: %v", conversationID, err)
		return err
	}

	uc.publishParticipantRemoved(conversation, userID)
	return nil
}

// AddParticipants adds members to a group conversation. Re-adding a member
// who left clears the hasLeft flag; adding an active member is a no-op.
func (uc *ConversationUseCase) AddParticipants(ctx context.Context, actorID, conversationID string, userIDs []string) (*entity.Conversation, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.Kind != entity.ConversationGroup {
		return nil, errors.Validation("Participants cannot be added to direct conversations", nil)
	}

	if !conversation.IsActiveParticipant(actorID) {
		return nil, errors.Forbidden("You are not an active participant in this conversation", nil)
	}

	now := time.Now()
	var added []string
	for _, id := range userIDs {
		if _, err := uc.requireWorkspaceMember(ctx, id, conversation.WorkspaceID); err != nil {
			return nil, err
		}

		rejoined := false
		for i := range conversation.Participants {
			if conversation.Participants[i].UserID != id {
				continue
			}
			if conversation.Participants[i].HasLeft {
				conversation.Participants[i].HasLeft = false
				conversation.Participants[i].LeftAt = time.Time{}
				added = append(added, id)
			}
			rejoined = true
			break
		}
		if !rejoined {
			conversation.Participants = append(conversation.Participants, entity.Participant{UserID: id, JoinedAt: now})
			added = append(added, id)
		}
	}

	if len(added) == 0 {
		return conversation, nil
	}

	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		logger.Error("AddParticipants: failed to update conversation %s: %v", conversationID, err)
		return nil, err
	}

	// The conversation is new from the added members' point of view.
	uc.bus.Publish(event.CommunicationItemAdded{
		WorkspaceID: conversation.WorkspaceID,
		Item:        conversationItem(conversation, 0),
		Recipients:  added,
	})

	return conversation, nil
}

// GetConversationDetails returns the conversation with its full message
// history in chronological order. Former members keep read access.
func (uc *ConversationUseCase) GetConversationDetails(ctx context.Context, userID, conversationID string) (*ConversationDetail, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if !conversation.IsParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	messages, _, err := uc.conversationRepo.ListMessages(ctx, conversationID, 0, 0)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{
		Conversation: conversation,
		Messages:     messages,
	}, nil
}

// GetConversationMessages returns one offset-paginated page of history.
func (uc *ConversationUseCase) GetConversationMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}

	if !conversation.IsParticipant(userID) {
		return nil, 0, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	return uc.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
}

func (uc *ConversationUseCase) requireWorkspaceMember(ctx context.Context, userID, workspaceID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.InWorkspace(workspaceID) {
		return nil, errors.Forbidden("User is not a member of this workspace", nil)
	}
	return user, nil
}

func (uc *ConversationUseCase) findExistingDirect(ctx context.Context, workspaceID, userID, recipientID string) (*entity.Conversation, error) {
	conversations, err := uc.conversationRepo.ListByUserID(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	for _, c := range conversations {
		if c.Kind == entity.ConversationDirect && c.IsParticipant(recipientID) {
			return c, nil
		}
	}
	return nil, nil
}

func (uc *ConversationUseCase) markLeft(conversation *entity.Conversation, userID string) {
	now := time.Now()
	for i := range conversation.Participants {
		if conversation.Participants[i].UserID == userID {
			conversation.Participants[i].HasLeft = true
			conversation.Participants[i].LeftAt = now
			return
		}
	}
}

func (uc *ConversationUseCase) publishParticipantRemoved(conversation *entity.Conversation, userID string) {
	// The removed user receives this one event so their client can react;
	// every later event excludes them via the recipient list.
	recipients := append(conversation.ActiveParticipantIDs(), userID)
	uc.bus.Publish(event.ParticipantRemoved{
		ConversationID: conversation.ID,
		UserID:         userID,
		Recipients:     recipients,
	})
}
