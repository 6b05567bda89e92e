package group

import (
	"fmt"
	"sort"
	"sync"

	"aulanet/internal/models"
)

// Member is a connected client that can receive broadcasts. Deliver
// must not block; a slow member drops messages instead of stalling the
// rest of its group.
type Member interface {
	Key() string
	Deliver(msg models.ServerEnvelope)
}

// Registry maps group keys to member sets. A group is created on first
// join and removed when its last member leaves. Broadcasting to a group
// that does not exist is a no-op.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
}

func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]map[string]Member),
	}
}

// Join adds the member to the named group. Joining a group the member
// is already in has no effect.
func (r *Registry) Join(groupKey string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupKey]
	if !ok {
		g = make(map[string]Member)
		r.groups[groupKey] = g
	}
	g[m.Key()] = m
}

// Leave removes the member from the named group, dropping the group
// entirely once it is empty.
func (r *Registry) Leave(groupKey string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupKey]
	if !ok {
		return
	}
	delete(g, m.Key())
	if len(g) == 0 {
		delete(r.groups, groupKey)
	}
}

// Broadcast delivers msg to every current member of the group. The
// member set is snapshotted under the lock; deliveries run outside it,
// each through the member's own Deliver path.
func (r *Registry) Broadcast(groupKey string, msg models.ServerEnvelope) {
	r.mu.RLock()
	g := r.groups[groupKey]
	members := make([]Member, 0, len(g))
	for _, m := range g {
		members = append(members, m)
	}
	r.mu.RUnlock()

	for _, m := range members {
		m.Deliver(msg)
	}
}

// Size returns the current number of members in the group.
func (r *Registry) Size(groupKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[groupKey])
}

// ConversationKey returns the group key for the conversation between
// two users. The pair is unordered: both argument orders yield the same
// key.
func ConversationKey(u1, u2 string) string {
	ids := []string{u1, u2}
	sort.Strings(ids)
	return fmt.Sprintf("chat_%s_%s", ids[0], ids[1])
}

// ClassroomKey returns the presence group key for a classroom.
func ClassroomKey(classroomID string) string {
	return fmt.Sprintf("online_classroom_%s", classroomID)
}
