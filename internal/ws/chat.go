package ws

import (
	"context"
	"log/slog"
	"time"

	"aulanet/internal/group"
	"aulanet/internal/models"
)

// MessageStore persists the durable copy of relayed chat messages.
type MessageStore interface {
	AppendMessage(message models.Message) (models.Message, error)
}

// ChatSession relays messages between the two participants of a
// conversation. The relay is fire-and-forget: envelopes are forwarded
// verbatim to every group member, and the durable history write runs
// off the broadcast path.
type ChatSession struct {
	conn   *Connection
	groups *group.Registry
	store  MessageStore
	key    string
	now    func() time.Time
}

func NewChatSession(conn *Connection, groups *group.Registry, store MessageStore, user1ID, user2ID string) *ChatSession {
	return &ChatSession{
		conn:   conn,
		groups: groups,
		store:  store,
		key:    group.ConversationKey(user1ID, user2ID),
		now:    time.Now,
	}
}

// Run joins the conversation group and relays until the client
// disconnects. Membership is released on every exit path.
func (s *ChatSession) Run(ctx context.Context) error {
	s.groups.Join(s.key, s.conn)
	defer s.groups.Leave(s.key, s.conn)

	return s.conn.Run(ctx, s.handle)
}

func (s *ChatSession) handle(msg models.ClientEnvelope) {
	switch msg.Type {
	case models.MessageTypeChat, models.MessageTypeRecent:
	default:
		// Unknown types are dropped.
		return
	}
	if msg.Message == "" {
		return
	}

	s.groups.Broadcast(s.key, models.ServerEnvelope{
		Type:    msg.Type,
		Message: msg.Message,
	})

	if msg.Type != models.MessageTypeChat {
		return
	}
	if _, err := s.store.AppendMessage(models.Message{
		Timestamp:    s.now().Unix(),
		Conversation: s.key,
		UserID:       s.conn.UserID(),
		Content:      msg.Message,
	}); err != nil {
		// The live broadcast already happened; history just loses this
		// entry.
		slog.Error("failed to persist chat message",
			"conversation", s.key, "user_id", s.conn.UserID(), "error", err)
	}
}
