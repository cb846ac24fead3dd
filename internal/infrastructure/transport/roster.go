package transport

import (
	"sync"

	"liveflow/internal/core/domain"
)

// GroupRoster is the transport's membership-group primitive. Viewer counts
// are always derived from group sizes here; no independent counter exists
// that could drift from actual join/leave events.
type GroupRoster struct {
	mu     sync.RWMutex
	groups map[string]map[domain.ConnectionID]struct{}
}

func NewGroupRoster() *GroupRoster {
	return &GroupRoster{
		groups: make(map[string]map[domain.ConnectionID]struct{}),
	}
}

func (r *GroupRoster) JoinGroup(group string, id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		r.groups[group] = members
	}
	members[id] = struct{}{}
}

func (r *GroupRoster) LeaveGroup(group string, id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

func (r *GroupRoster) DropGroup(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, group)
}

func (r *GroupRoster) GroupSize(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

func (r *GroupRoster) GroupMembers(group string) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]domain.ConnectionID, 0, len(r.groups[group]))
	for id := range r.groups[group] {
		members = append(members, id)
	}
	return members
}
