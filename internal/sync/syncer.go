// Package sync maintains the client-side read-models for the communication
// view: the list model (every conversation and ticket the user can see, with
// preview, recency and unread count) and the detail model (the full message
// history of the one open item). Both are reconciled against push events,
// which may arrive duplicated, reordered or not at all, and against
// authoritative pull reads that overwrite them.
package sync

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	"commsync/internal/domain/entity"
	"commsync/internal/domain/event"
	"commsync/internal/infrastructure/eventbus"
	"commsync/pkg/logger"
)

// ItemState is the lifecycle of the open item. A stray push never moves a
// LOADED item back to LOADING; only selection or an explicit refresh does.
type ItemState int

const (
	StateIdle ItemState = iota
	StateLoading
	StateLoaded
)

// Message is the detail-model view of a conversation or ticket message.
type Message struct {
	ID        string
	SenderID  string
	Content   string
	IsSupport bool
	SentAt    time.Time
}

// Backend is the pull side: authoritative reads and the mark-read mutation.
type Backend interface {
	FetchList(ctx context.Context, workspaceID string) ([]*entity.CommunicationListItem, error)
	FetchConversationMessages(ctx context.Context, conversationID string) ([]Message, error)
	FetchTicketMessages(ctx context.Context, ticketID, cursor string, limit int) ([]Message, string, error)
	MarkConversationAsRead(ctx context.Context, conversationID string) error
}

const detailPageSize = 50

type Syncer struct {
	backend     Backend
	workspaceID string
	userID      string
	support     bool

	mu   stdsync.Mutex
	list map[string]*entity.CommunicationListItem
	left map[string]struct{} // items the user was removed from

	state    ItemState
	openID   string
	openKind entity.ListItemKind
	messages []Message
	canPost  bool

	// pending buffers open-item messages pushed while the detail pull is in
	// flight. The pull snapshot may predate them, so they merge after it
	// lands instead of being dropped by the loaded-state guard.
	pending []Message

	// applied holds every message id already reconciled, so duplicate
	// deliveries change nothing: not the detail model, not the unread count.
	applied map[string]struct{}

	typing *TypingTracker

	subs []*eventbus.Subscription
	wg   stdsync.WaitGroup
}

type Option func(*Syncer)

// WithTypingExpiry overrides the receiver-side typing timeout.
func WithTypingExpiry(d time.Duration) Option {
	return func(s *Syncer) {
		s.typing = NewTypingTracker(d)
	}
}

func New(backend Backend, workspaceID, userID string, support bool, opts ...Option) *Syncer {
	s := &Syncer{
		backend:     backend,
		workspaceID: workspaceID,
		userID:      userID,
		support:     support,
		list:        make(map[string]*entity.CommunicationListItem),
		left:        make(map[string]struct{}),
		applied:     make(map[string]struct{}),
		typing:      NewTypingTracker(DefaultTypingExpiry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach consumes a bus subscription until it is cancelled. All attached
// subscriptions are torn down together by Close.
func (s *Syncer) Attach(sub *eventbus.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range sub.Events() {
			s.HandleEvent(ev)
		}
	}()
}

// Close cancels every live subscription and pending typing timer.
func (s *Syncer) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.wg.Wait()
	s.typing.Clear()
}

// RefreshList pulls the authoritative communication list and overwrites the
// list model.
func (s *Syncer) RefreshList(ctx context.Context) error {
	items, err := s.backend.FetchList(ctx, s.workspaceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = make(map[string]*entity.CommunicationListItem, len(items))
	for _, item := range items {
		clone := *item
		if clone.ID == s.openID {
			// The open item stays read regardless of what the pull says.
			clone.UnreadCount = 0
		}
		s.list[clone.ID] = &clone
	}
	return nil
}

// Select opens an item: the unread count is zeroed optimistically before the
// mark-read mutation returns, the detail model is loaded from the store, and
// for conversations with pending unread a mark-read mutation fires exactly
// once. A mark-read failure forces a list refresh instead of hand-rolled
// inverse edits.
func (s *Syncer) Select(ctx context.Context, id string, kind entity.ListItemKind) error {
	s.mu.Lock()
	hadUnread := 0
	if item, ok := s.list[id]; ok {
		hadUnread = item.UnreadCount
		item.UnreadCount = 0
	}
	s.state = StateLoading
	s.openID = id
	s.openKind = kind
	s.messages = nil
	s.pending = nil
	s.canPost = true
	if _, removed := s.left[id]; removed {
		s.canPost = false
	}
	s.typing.Clear()
	s.mu.Unlock()

	var messages []Message
	var err error
	switch kind {
	case entity.ItemTicket:
		messages, _, err = s.backend.FetchTicketMessages(ctx, id, "", detailPageSize)
	default:
		messages, err = s.backend.FetchConversationMessages(ctx, id)
	}
	if err != nil {
		s.mu.Lock()
		if s.openID == id {
			s.state = StateIdle
			s.openID = ""
			s.pending = nil
		}
		s.mu.Unlock()
		if hadUnread > 0 {
			// The optimistic zero above is now wrong; only a pull can
			// restore the true count.
			if rerr := s.RefreshList(ctx); rerr != nil {
				logger.Warn("sync: list refresh after failed detail load for %s: %v", id, rerr)
			}
		}
		return err
	}

	s.mu.Lock()
	if s.openID != id {
		// Selection changed while loading; drop the stale result.
		s.mu.Unlock()
		return nil
	}
	s.messages = messages
	fetched := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		s.applied[m.ID] = struct{}{}
		fetched[m.ID] = struct{}{}
	}
	s.state = StateLoaded
	// Messages pushed during the load may postdate the pull snapshot; merge
	// the ones the page did not already contain.
	for _, m := range s.pending {
		if _, ok := fetched[m.ID]; !ok {
			s.insertOrderedLocked(m)
		}
	}
	s.pending = nil
	s.mu.Unlock()

	if kind == entity.ItemConversation && hadUnread > 0 {
		if err := s.backend.MarkConversationAsRead(ctx, id); err != nil {
			logger.Warn("sync: mark-as-read failed for %s, forcing list refresh: %v", id, err)
			return s.RefreshList(ctx)
		}
	}
	return nil
}

// Deselect closes the open item: detail updates stop applying and every
// pending typing timer is cancelled. List updates continue regardless.
func (s *Syncer) Deselect() {
	s.mu.Lock()
	s.state = StateIdle
	s.openID = ""
	s.openKind = ""
	s.messages = nil
	s.pending = nil
	s.canPost = false
	s.mu.Unlock()

	s.typing.Clear()
}

// Resync runs after a dropped subscription is re-established: events missed
// while disconnected are not replayed, so both models are pulled fresh.
func (s *Syncer) Resync(ctx context.Context) error {
	if err := s.RefreshList(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	id, kind, open := s.openID, s.openKind, s.state != StateIdle
	s.mu.Unlock()

	if !open {
		return nil
	}
	return s.Select(ctx, id, kind)
}

// InsertLocalItem is the creator's optimistic insert after a create mutation
// returns. It uses the same presence guard as the push path, so whichever of
// the two arrives second is a no-op.
func (s *Syncer) InsertLocalItem(item *entity.CommunicationListItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertItemLocked(item)
}

// HandleEvent reconciles one push event into the read-models. Correctness
// must hold under any interleaving: duplicates are dropped by message id,
// late messages are inserted by timestamp, unknown items are created from
// the embedded preview.
func (s *Syncer) HandleEvent(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case event.MessageAdded:
		if e.Message == nil {
			return
		}
		s.applyMessageLocked(e.ConversationID, e.Item, Message{
			ID:       e.Message.ID,
			SenderID: e.Message.SenderID,
			Content:  e.Message.Content,
			SentAt:   e.Message.CreatedAt,
		}, e.Message.SenderID != s.userID)

	case event.TicketMessageAdded:
		if e.Message == nil {
			return
		}
		// Unread is one-sided: support counts member messages, members
		// count support replies.
		counts := e.Message.SenderID != s.userID && e.IsSupport != s.support
		s.applyMessageLocked(e.TicketID, e.Item, Message{
			ID:        e.Message.ID,
			SenderID:  e.Message.SenderID,
			Content:   e.Message.Content,
			IsSupport: e.IsSupport,
			SentAt:    e.Message.CreatedAt,
		}, counts)

	case event.TypingUser:
		if s.openID == e.ConversationID && e.UserID != s.userID {
			s.typing.Refresh(e.UserID)
		}

	case event.CommunicationItemAdded:
		s.insertItemLocked(e.Item)

	case event.CommunicationItemUpdated:
		s.updateItemLocked(e.Item)

	case event.ParticipantRemoved:
		if e.UserID != s.userID {
			return
		}
		s.left[e.ConversationID] = struct{}{}
		if s.openID == e.ConversationID {
			// History stays readable; posting stops.
			s.canPost = false
			s.typing.Clear()
		}
	}
}

func (s *Syncer) applyMessageLocked(itemID string, preview *entity.CommunicationListItem, msg Message, countsUnread bool) {
	if _, dup := s.applied[msg.ID]; dup {
		return
	}
	s.applied[msg.ID] = struct{}{}

	item, ok := s.list[itemID]
	if !ok {
		if preview == nil {
			return
		}
		clone := *preview
		clone.UnreadCount = 0
		s.list[clone.ID] = &clone
		item = &clone
	}

	item.Preview = msg.Content
	if msg.SentAt.After(item.LastActivityAt) {
		item.LastActivityAt = msg.SentAt
	}

	if itemID == s.openID {
		// The open item never accumulates unread; the message lands in the
		// detail model instead.
		switch s.state {
		case StateLoaded:
			s.insertOrderedLocked(msg)
		case StateLoading:
			// The in-flight pull may not include this message; hold it for
			// the merge that runs when the page lands.
			s.pending = append(s.pending, msg)
		}
		return
	}

	if countsUnread {
		item.UnreadCount++
	}
}

// insertOrderedLocked places msg by timestamp so a late event still lands in
// correct relative position instead of being blindly appended.
func (s *Syncer) insertOrderedLocked(msg Message) {
	i := len(s.messages)
	for i > 0 && s.messages[i-1].SentAt.After(msg.SentAt) {
		i--
	}
	s.messages = append(s.messages, Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
}

func (s *Syncer) insertItemLocked(item *entity.CommunicationListItem) {
	if item == nil {
		return
	}
	if _, exists := s.list[item.ID]; exists {
		// Guards against the creator's optimistic insert racing the push.
		return
	}
	clone := *item
	s.list[clone.ID] = &clone
}

func (s *Syncer) updateItemLocked(item *entity.CommunicationListItem) {
	if item == nil {
		return
	}
	existing, ok := s.list[item.ID]
	if !ok {
		clone := *item
		clone.UnreadCount = 0
		s.list[clone.ID] = &clone
		return
	}
	// Unread is owned by the message-event path; metadata edits leave it
	// untouched.
	existing.Title = item.Title
	existing.Preview = item.Preview
	if item.LastActivityAt.After(existing.LastActivityAt) {
		existing.LastActivityAt = item.LastActivityAt
	}
}

// Items returns the list model ordered by recency, newest first.
func (s *Syncer) Items() []*entity.CommunicationListItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.CommunicationListItem, 0, len(s.list))
	for _, item := range s.list {
		clone := *item
		items = append(items, &clone)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastActivityAt.After(items[j].LastActivityAt)
	})
	return items
}

// Item returns a copy of one list row.
func (s *Syncer) Item(id string) (entity.CommunicationListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.list[id]
	if !ok {
		return entity.CommunicationListItem{}, false
	}
	return *item, true
}

// Detail returns the open item id, its load state, the chronological message
// sequence and whether the user may still post to it.
func (s *Syncer) Detail() (string, ItemState, []Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return s.openID, s.state, messages, s.canPost
}

// TypingUsers lists who is currently typing in the open conversation.
func (s *Syncer) TypingUsers() []string {
	return s.typing.Users()
}
