package presence

import (
	"errors"
	"log/slog"
	"time"

	"aulanet/internal/models"
)

// StatusStore is the durable per-user online-status row. Every
// mutation is a single atomic read-modify-write keyed by user ID.
type StatusStore interface {
	SetOnline(userID string, online bool, ts time.Time) error
	IsOnline(userID string) (bool, error)
	ResetOnline() error
}

// Roster answers who belongs to a classroom.
type Roster interface {
	GuardianIDs(classroomID string) ([]string, error)
	TeacherIDs(classroomID string) ([]string, error)
}

// Register tracks which users are online. It is mutated exactly once
// per connect and once per disconnect of a presence connection.
type Register struct {
	store  StatusStore
	roster Roster
	now    func() time.Time
}

func NewRegister(store StatusStore, roster Roster) *Register {
	return &Register{
		store:  store,
		roster: roster,
		now:    time.Now,
	}
}

// Connect marks the user online and stamps the connection time.
func (r *Register) Connect(userID string) error {
	return r.store.SetOnline(userID, true, r.now())
}

// Disconnect marks the user offline. The last connection timestamp is
// left at the connect time.
func (r *Register) Disconnect(userID string) error {
	return r.store.SetOnline(userID, false, r.now())
}

// ResetAll marks every user offline. Run at startup so rows left
// online by an unclean shutdown do not leak into snapshots.
func (r *Register) ResetAll() error {
	return r.store.ResetOnline()
}

// OnlinePeers returns the online users of the classroom visible to the
// requester: guardians of enrolled students for a teacher, assigned
// teachers for a guardian, nothing for any other role. The result is
// deduplicated by user ID.
func (r *Register) OnlinePeers(user models.User, classroomID string) ([]string, error) {
	var (
		candidates []string
		err        error
	)
	switch user.Role {
	case models.RoleTeacher:
		candidates, err = r.roster.GuardianIDs(classroomID)
	case models.RoleGuardian:
		candidates, err = r.roster.TeacherIDs(classroomID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var online []string
	seen := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true

		isOnline, err := r.store.IsOnline(id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				slog.Error("failed to read online status", "user_id", id, "error", err)
			}
			continue
		}
		if isOnline {
			online = append(online, id)
		}
	}
	return online, nil
}
