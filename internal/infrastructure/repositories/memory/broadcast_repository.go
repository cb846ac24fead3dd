package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"liveflow/internal/core/domain"
	"liveflow/internal/core/ports"
)

type MemoryBroadcastRepository struct {
	sessions map[domain.SessionID]*domain.BroadcastSession
	byHost   map[domain.ConnectionID]domain.SessionID
	mu       sync.RWMutex
}

func NewMemoryBroadcastRepository() ports.BroadcastRepository {
	return &MemoryBroadcastRepository{
		sessions: make(map[domain.SessionID]*domain.BroadcastSession),
		byHost:   make(map[domain.ConnectionID]domain.SessionID),
	}
}

func (r *MemoryBroadcastRepository) Create(ctx context.Context, session *domain.BroadcastSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("broadcast session already exists: %s", session.ID)
	}

	copied := *session
	r.sessions[session.ID] = &copied
	r.byHost[session.HostConnectionID] = session.ID
	return nil
}

func (r *MemoryBroadcastRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.BroadcastSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemoryBroadcastRepository) GetByHost(ctx context.Context, host domain.ConnectionID) (*domain.BroadcastSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byHost[host]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemoryBroadcastRepository) Update(ctx context.Context, session *domain.BroadcastSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemoryBroadcastRepository) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	delete(r.byHost, session.HostConnectionID)
	return nil
}

func (r *MemoryBroadcastRepository) ListActive(ctx context.Context) ([]*domain.BroadcastSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*domain.BroadcastSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		copied := *session
		sessions = append(sessions, &copied)
	}

	// Oldest first, so the published list is stable across republishes.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}
