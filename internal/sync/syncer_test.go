package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/event"
)

type fakeBackend struct {
	mu             stdsync.Mutex
	items          []*entity.CommunicationListItem
	conv           map[string][]Message
	tickets        map[string][]Message
	fetchListCalls int
	markReadCalls  []string
	markReadErr    error
	convErr        error

	// blockConv, when set, holds conversation fetches until it is closed.
	blockConv chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conv:    make(map[string][]Message),
		tickets: make(map[string][]Message),
	}
}

func (b *fakeBackend) FetchList(ctx context.Context, workspaceID string) ([]*entity.CommunicationListItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchListCalls++
	out := make([]*entity.CommunicationListItem, len(b.items))
	for i, item := range b.items {
		clone := *item
		out[i] = &clone
	}
	return out, nil
}

func (b *fakeBackend) FetchConversationMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if b.blockConv != nil {
		<-b.blockConv
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.convErr != nil {
		return nil, b.convErr
	}
	return append([]Message(nil), b.conv[conversationID]...), nil
}

func (b *fakeBackend) FetchTicketMessages(ctx context.Context, ticketID, cursor string, limit int) ([]Message, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.tickets[ticketID]...), "", nil
}

func (b *fakeBackend) MarkConversationAsRead(ctx context.Context, conversationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markReadCalls = append(b.markReadCalls, conversationID)
	return b.markReadErr
}

func listItem(id string, kind entity.ListItemKind, unread int) *entity.CommunicationListItem {
	return &entity.CommunicationListItem{
		ID:          id,
		Kind:        kind,
		WorkspaceID: "w1",
		Title:       "item " + id,
		UnreadCount: unread,
	}
}

func messageEvent(convID, msgID, sender, content string, at time.Time) event.MessageAdded {
	return event.MessageAdded{
		ConversationID: convID,
		Message: &entity.Message{
			ID:             msgID,
			ConversationID: convID,
			SenderID:       sender,
			Content:        content,
			CreatedAt:      at,
		},
		Item: listItem(convID, entity.ItemConversation, 0),
	}
}

func TestDuplicateMessageEventAppliesOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	ev := messageEvent("c1", "m1", "other", "hello", time.Now())
	s.HandleEvent(ev)
	s.HandleEvent(ev)

	item, ok := s.Item("c1")
	require.True(t, ok)
	assert.Equal(t, 1, item.UnreadCount)
	assert.Equal(t, "hello", item.Preview)
}

func TestDuplicateMessageEventSingleDetailEntry(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	ev := messageEvent("c1", "m1", "other", "hello", time.Now())
	s.HandleEvent(ev)
	s.HandleEvent(ev)

	_, state, messages, _ := s.Detail()
	assert.Equal(t, StateLoaded, state)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}

func TestOutOfOrderMessagesRenderChronologically(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	base := time.Now()
	m1 := messageEvent("c1", "m1", "other", "first", base.Add(10*time.Millisecond))
	m2 := messageEvent("c1", "m2", "other", "second", base.Add(20*time.Millisecond))

	s.HandleEvent(m2)
	s.HandleEvent(m1)

	_, _, messages, _ := s.Detail()
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
}

func TestUnreadAccumulatesWhileClosed(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	base := time.Now()
	for i := 0; i < 5; i++ {
		s.HandleEvent(messageEvent("c1", string(rune('a'+i)), "other", "msg", base.Add(time.Duration(i)*time.Millisecond)))
	}

	item, _ := s.Item("c1")
	assert.Equal(t, 5, item.UnreadCount)
}

func TestOwnMessagesDoNotCountUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	s.HandleEvent(messageEvent("c1", "m1", "me", "mine", time.Now()))

	item, _ := s.Item("c1")
	assert.Equal(t, 0, item.UnreadCount)
	assert.Equal(t, "mine", item.Preview)
}

func TestSelectZeroesUnreadAndMarksReadOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 3)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	item, _ := s.Item("c1")
	assert.Equal(t, 0, item.UnreadCount)
	assert.Equal(t, []string{"c1"}, backend.markReadCalls)
}

func TestSelectWithoutUnreadSkipsMarkRead(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	assert.Empty(t, backend.markReadCalls)
}

func TestOpenItemNeverReincrementsUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 2)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	s.HandleEvent(messageEvent("c1", "m9", "other", "while open", time.Now()))

	item, _ := s.Item("c1")
	assert.Equal(t, 0, item.UnreadCount)

	_, _, messages, _ := s.Detail()
	require.Len(t, messages, 1)
	assert.Equal(t, "while open", messages[0].Content)
}

func TestMarkReadFailureForcesListRefresh(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 2)}
	backend.markReadErr = errors.New("store down")

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	before := backend.fetchListCalls
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	assert.Equal(t, before+1, backend.fetchListCalls)
}

func TestMessageDuringDetailLoadMergesAfterPull(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}
	backend.blockConv = make(chan struct{})

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- s.Select(context.Background(), "c1", entity.ItemConversation)
	}()
	require.Eventually(t, func() bool {
		_, state, _, _ := s.Detail()
		return state == StateLoading
	}, time.Second, time.Millisecond)

	// Pushed while the pull is in flight, so the fetched page lacks it.
	ev := messageEvent("c1", "m1", "other", "mid-load", time.Now())
	s.HandleEvent(ev)

	close(backend.blockConv)
	require.NoError(t, <-done)

	_, state, messages, _ := s.Detail()
	assert.Equal(t, StateLoaded, state)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)

	// Redelivery after the merge is still a duplicate.
	s.HandleEvent(ev)
	_, _, messages, _ = s.Detail()
	assert.Len(t, messages, 1)
}

func TestMessageDuringDetailLoadAlreadyInPage(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}
	backend.conv["c1"] = []Message{{ID: "m1", SenderID: "other", Content: "committed", SentAt: time.Now()}}
	backend.blockConv = make(chan struct{})

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- s.Select(context.Background(), "c1", entity.ItemConversation)
	}()
	require.Eventually(t, func() bool {
		_, state, _, _ := s.Detail()
		return state == StateLoading
	}, time.Second, time.Millisecond)

	// The pull snapshot already contains this message; the merge must not
	// double it.
	s.HandleEvent(messageEvent("c1", "m1", "other", "committed", time.Now()))

	close(backend.blockConv)
	require.NoError(t, <-done)

	_, _, messages, _ := s.Detail()
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}

func TestDetailLoadFailureRestoresUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 3)}
	backend.convErr = errors.New("store down")

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	before := backend.fetchListCalls
	require.Error(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	// The optimistic zero is rolled back by a forced list pull.
	assert.Equal(t, before+1, backend.fetchListCalls)
	item, ok := s.Item("c1")
	require.True(t, ok)
	assert.Equal(t, 3, item.UnreadCount)
	assert.Empty(t, backend.markReadCalls)
}

func TestItemAddedGuardsAgainstOptimisticInsert(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, "w1", "me", false)

	local := listItem("c1", entity.ItemConversation, 0)
	local.Preview = "local"
	s.InsertLocalItem(local)

	pushed := listItem("c1", entity.ItemConversation, 0)
	pushed.Preview = "pushed"
	s.HandleEvent(event.CommunicationItemAdded{WorkspaceID: "w1", Item: pushed})

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "local", items[0].Preview)
}

func TestItemUpdatedPreservesUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("t1", entity.ItemTicket, 4)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	updated := listItem("t1", entity.ItemTicket, 0)
	updated.Title = "new subject"
	s.HandleEvent(event.CommunicationItemUpdated{WorkspaceID: "w1", Item: updated})

	item, _ := s.Item("t1")
	assert.Equal(t, 4, item.UnreadCount)
	assert.Equal(t, "new subject", item.Title)
}

func TestUnknownItemCreatedFromEventPreview(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, "w1", "me", false)

	s.HandleEvent(messageEvent("c9", "m1", "other", "surprise", time.Now()))

	item, ok := s.Item("c9")
	require.True(t, ok)
	assert.Equal(t, "surprise", item.Preview)
	assert.Equal(t, 1, item.UnreadCount)
}

func TestParticipantRemovedStopsPosting(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	_, _, _, canPost := s.Detail()
	require.True(t, canPost)

	s.HandleEvent(event.ParticipantRemoved{ConversationID: "c1", UserID: "me"})

	_, _, _, canPost = s.Detail()
	assert.False(t, canPost)
}

func TestTicketUnreadCountsOtherSideOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("t1", entity.ItemTicket, 0)}

	ticketEvent := func(id, sender string, isSupport bool) event.TicketMessageAdded {
		return event.TicketMessageAdded{
			TicketID:  "t1",
			IsSupport: isSupport,
			Message: &entity.TicketMessage{
				ID:        id,
				TicketID:  "t1",
				SenderID:  sender,
				Content:   "msg",
				IsSupport: isSupport,
				CreatedAt: time.Now(),
			},
			Item: listItem("t1", entity.ItemTicket, 0),
		}
	}

	// A member's client counts support replies only.
	member := New(backend, "w1", "member", false)
	require.NoError(t, member.RefreshList(context.Background()))
	member.HandleEvent(ticketEvent("m1", "agent", true))
	member.HandleEvent(ticketEvent("m2", "other-member", false))

	item, _ := member.Item("t1")
	assert.Equal(t, 1, item.UnreadCount)

	// A support client counts member messages only.
	agent := New(backend, "w1", "agent2", true)
	require.NoError(t, agent.RefreshList(context.Background()))
	agent.HandleEvent(ticketEvent("m3", "member", false))
	agent.HandleEvent(ticketEvent("m4", "agent", true))

	item, _ = agent.Item("t1")
	assert.Equal(t, 1, item.UnreadCount)
}

func TestTypingEventOnlyForOpenConversation(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{
		listItem("c1", entity.ItemConversation, 0),
		listItem("c2", entity.ItemConversation, 0),
	}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	s.HandleEvent(event.TypingUser{ConversationID: "c1", UserID: "alice"})
	s.HandleEvent(event.TypingUser{ConversationID: "c2", UserID: "bob"})
	s.HandleEvent(event.TypingUser{ConversationID: "c1", UserID: "me"})

	assert.Equal(t, []string{"alice"}, s.TypingUsers())
}

func TestSwitchingConversationClearsTyping(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{
		listItem("c1", entity.ItemConversation, 0),
		listItem("c2", entity.ItemConversation, 0),
	}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	s.HandleEvent(event.TypingUser{ConversationID: "c1", UserID: "alice"})
	require.NotEmpty(t, s.TypingUsers())

	require.NoError(t, s.Select(context.Background(), "c2", entity.ItemConversation))
	assert.Empty(t, s.TypingUsers())
}

func TestItemsOrderedByRecency(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{
		listItem("c1", entity.ItemConversation, 0),
		listItem("c2", entity.ItemConversation, 0),
	}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))

	base := time.Now()
	s.HandleEvent(messageEvent("c1", "m1", "other", "older", base))
	s.HandleEvent(messageEvent("c2", "m2", "other", "newer", base.Add(time.Second)))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "c2", items[0].ID)
	assert.Equal(t, "c1", items[1].ID)
}

func TestResyncReloadsListAndOpenItem(t *testing.T) {
	backend := newFakeBackend()
	backend.items = []*entity.CommunicationListItem{listItem("c1", entity.ItemConversation, 0)}

	s := New(backend, "w1", "me", false)
	require.NoError(t, s.RefreshList(context.Background()))
	require.NoError(t, s.Select(context.Background(), "c1", entity.ItemConversation))

	// Messages written while the subscription was down are only visible via
	// the pull path.
	backend.mu.Lock()
	backend.conv["c1"] = []Message{{ID: "m1", SenderID: "other", Content: "missed", SentAt: time.Now()}}
	backend.mu.Unlock()

	require.NoError(t, s.Resync(context.Background()))

	_, state, messages, _ := s.Detail()
	assert.Equal(t, StateLoaded, state)
	require.Len(t, messages, 1)
	assert.Equal(t, "missed", messages[0].Content)
}
