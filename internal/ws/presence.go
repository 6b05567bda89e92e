package ws

import (
	"context"
	"log/slog"

	"aulanet/internal/group"
	"aulanet/internal/models"
)

// PresenceRegister is the shared online-status register mutated by
// presence sessions.
type PresenceRegister interface {
	Connect(userID string) error
	Disconnect(userID string) error
	OnlinePeers(user models.User, classroomID string) ([]string, error)
}

// PresenceSession announces a user's connect and disconnect to the
// classroom's presence group and keeps the durable status register in
// step with the connection lifecycle.
type PresenceSession struct {
	conn        *Connection
	groups      *group.Registry
	register    PresenceRegister
	user        models.User
	classroomID string
	key         string
}

func NewPresenceSession(conn *Connection, groups *group.Registry, register PresenceRegister, user models.User, classroomID string) *PresenceSession {
	return &PresenceSession{
		conn:        conn,
		groups:      groups,
		register:    register,
		user:        user,
		classroomID: classroomID,
		key:         group.ClassroomKey(classroomID),
	}
}

// Run walks the presence lifecycle: join the classroom group, announce
// the connect, record it durably, send the requester the role-filtered
// snapshot of online peers, then pump until the transport closes.
// Teardown runs on every exit path, abnormal termination included.
func (s *PresenceSession) Run(ctx context.Context) error {
	s.groups.Join(s.key, s.conn)
	defer s.teardown()

	s.groups.Broadcast(s.key, models.ServerEnvelope{
		Type:   models.MessageTypeUserConnected,
		UserID: s.user.ID,
	})

	// The announcement is more time-critical than the durable record:
	// a failed write is logged and the session carries on.
	if err := s.register.Connect(s.user.ID); err != nil {
		slog.Error("failed to record online status", "user_id", s.user.ID, "error", err)
	}

	online, err := s.register.OnlinePeers(s.user, s.classroomID)
	if err != nil {
		slog.Error("failed to load online peers",
			"user_id", s.user.ID, "classroom_id", s.classroomID, "error", err)
	}
	s.conn.Deliver(models.ServerEnvelope{
		Type:        models.MessageTypeOnlineUsers,
		UsersOnline: online,
	})

	// Clients send nothing on the presence channel; the pump only
	// watches for the transport closing.
	return s.conn.Run(ctx, nil)
}

func (s *PresenceSession) teardown() {
	s.groups.Leave(s.key, s.conn)
	s.groups.Broadcast(s.key, models.ServerEnvelope{
		Type:   models.MessageTypeUserDisconnected,
		UserID: s.user.ID,
	})
	if err := s.register.Disconnect(s.user.ID); err != nil {
		slog.Error("failed to record offline status", "user_id", s.user.ID, "error", err)
	}
}
