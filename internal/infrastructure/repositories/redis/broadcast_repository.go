package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"liveflow/internal/core/domain"
	"liveflow/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcastRepository stores the active broadcast directory in Redis.
// Keys carry no TTL: a session lives exactly as long as its host's explicit
// stop or disconnect, both of which delete it.
type RedisBroadcastRepository struct {
	client *redis.Client
	prefix string
}

type storedSession struct {
	*domain.BroadcastSession
	HostConnectionID domain.ConnectionID `json:"host_connection_id"`
}

func NewRedisBroadcastRepository(client *redis.Client) ports.BroadcastRepository {
	return &RedisBroadcastRepository{
		client: client,
		prefix: "liveflow:broadcast:",
	}
}

func (r *RedisBroadcastRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisBroadcastRepository) hostKey(host domain.ConnectionID) string {
	return r.prefix + "host:" + string(host)
}

func (r *RedisBroadcastRepository) activeSetKey() string {
	return r.prefix + "active"
}

func (r *RedisBroadcastRepository) set(ctx context.Context, session *domain.BroadcastSession) error {
	data, err := json.Marshal(storedSession{
		BroadcastSession: session,
		HostConnectionID: session.HostConnectionID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set broadcast session in Redis: %w", err)
	}
	return nil
}

func (r *RedisBroadcastRepository) Create(ctx context.Context, session *domain.BroadcastSession) error {
	if err := r.set(ctx, session); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.hostKey(session.HostConnectionID), string(session.ID), 0).Err(); err != nil {
		return fmt.Errorf("failed to index broadcast host: %w", err)
	}
	if err := r.client.SAdd(ctx, r.activeSetKey(), string(session.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add broadcast to active set: %w", err)
	}
	return nil
}

func (r *RedisBroadcastRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.BroadcastSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast session from Redis: %w", err)
	}

	return unmarshalSession([]byte(data))
}

func (r *RedisBroadcastRepository) GetByHost(ctx context.Context, host domain.ConnectionID) (*domain.BroadcastSession, error) {
	id, err := r.client.Get(ctx, r.hostKey(host)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broadcast host from Redis: %w", err)
	}
	return r.GetByID(ctx, domain.SessionID(id))
}

func (r *RedisBroadcastRepository) Update(ctx context.Context, session *domain.BroadcastSession) error {
	if _, err := r.GetByID(ctx, session.ID); err != nil {
		return err
	}
	return r.set(ctx, session)
}

func (r *RedisBroadcastRepository) Delete(ctx context.Context, id domain.SessionID) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.client.SRem(ctx, r.activeSetKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove broadcast from active set: %w", err)
	}
	if err := r.client.Del(ctx, r.hostKey(session.HostConnectionID)).Err(); err != nil {
		return fmt.Errorf("failed to remove broadcast host index: %w", err)
	}
	if err := r.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete broadcast session from Redis: %w", err)
	}
	return nil
}

func (r *RedisBroadcastRepository) ListActive(ctx context.Context) ([]*domain.BroadcastSession, error) {
	ids, err := r.client.SMembers(ctx, r.activeSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active broadcasts: %w", err)
	}

	sessions := make([]*domain.BroadcastSession, 0, len(ids))
	for _, id := range ids {
		session, err := r.GetByID(ctx, domain.SessionID(id))
		if err == domain.ErrSessionNotFound {
			// Stale set member; drop it and move on.
			r.client.SRem(ctx, r.activeSetKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func unmarshalSession(data []byte) (*domain.BroadcastSession, error) {
	var stored storedSession
	stored.BroadcastSession = &domain.BroadcastSession{}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal broadcast session: %w", err)
	}
	stored.BroadcastSession.HostConnectionID = stored.HostConnectionID
	return stored.BroadcastSession, nil
}
