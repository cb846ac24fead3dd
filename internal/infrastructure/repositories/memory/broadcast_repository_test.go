package memory

import (
	"context"
	"testing"
	"time"

	"liveflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id, host string, startedAt time.Time) *domain.BroadcastSession {
	return &domain.BroadcastSession{
		ID:               domain.SessionID(id),
		HostConnectionID: domain.ConnectionID(host),
		HostName:         "Anônimo 042",
		Title:            "test stream",
		Tag:              domain.TagMulher,
		StartedAt:        startedAt,
	}
}

func TestBroadcastRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	session := newSession("s1", "h1", time.Now())
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.Title, got.Title)
	assert.Equal(t, session.HostConnectionID, got.HostConnectionID)

	byHost, err := repo.GetByHost(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, byHost.ID)
}

func TestBroadcastRepository_CreateDuplicateFails(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", time.Now())))
	assert.Error(t, repo.Create(ctx, newSession("s1", "h2", time.Now())))
}

func TestBroadcastRepository_GetMissing(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = repo.GetByHost(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBroadcastRepository_UpdateViewerCount(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	session := newSession("s1", "h1", time.Now())
	require.NoError(t, repo.Create(ctx, session))

	session.ViewerCount = 7
	require.NoError(t, repo.Update(ctx, session))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.ViewerCount)
}

func TestBroadcastRepository_UpdateMissing(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	err := repo.Update(context.Background(), newSession("ghost", "h", time.Now()))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBroadcastRepository_DeleteClearsHostIndex(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", time.Now())))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = repo.GetByHost(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "s1"), domain.ErrSessionNotFound)
}

func TestBroadcastRepository_ListActiveOldestFirst(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("new", "h2", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newSession("old", "h1", base)))

	streams, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, domain.SessionID("old"), streams[0].ID)
	assert.Equal(t, domain.SessionID("new"), streams[1].ID)
}

func TestBroadcastRepository_ReadsAreCopies(t *testing.T) {
	repo := NewMemoryBroadcastRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", time.Now())))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	got.ViewerCount = 99

	again, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.ViewerCount)
}
