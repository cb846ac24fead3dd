package ports

import (
	"context"

	"liveflow/internal/core/domain"
)

type BroadcastRepository interface {
	Create(ctx context.Context, session *domain.BroadcastSession) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.BroadcastSession, error)
	GetByHost(ctx context.Context, host domain.ConnectionID) (*domain.BroadcastSession, error)
	Update(ctx context.Context, session *domain.BroadcastSession) error
	Delete(ctx context.Context, id domain.SessionID) error
	ListActive(ctx context.Context) ([]*domain.BroadcastSession, error)
}
