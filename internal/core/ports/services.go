package ports

import (
	"context"

	"liveflow/internal/core/domain"
)

// Coordinator is the single serialization point for all client events.
// Every method runs as one indivisible unit with respect to other
// connections' events; none of them block waiting on another connection.
type Coordinator interface {
	Connect(ctx context.Context, id domain.ConnectionID)
	Disconnect(ctx context.Context, id domain.ConnectionID)

	JoinQueue(ctx context.Context, id domain.ConnectionID, negotiationID domain.NegotiationID, identity domain.IdentityTag, preference domain.PreferenceFilter) error
	LeaveMatch(ctx context.Context, id domain.ConnectionID)
	RelayPairMessage(ctx context.Context, id domain.ConnectionID, text string)

	StartBroadcast(ctx context.Context, id domain.ConnectionID, negotiationID domain.NegotiationID, title string, tag domain.IdentityTag) error
	JoinBroadcast(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID)
	LeaveBroadcast(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID)
	RelayBroadcastMessage(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID, text string)
	StopBroadcast(ctx context.Context, id domain.ConnectionID)
}

// Directory is the read-only view served by the HTTP surface.
type Directory interface {
	ListActive(ctx context.Context) ([]*domain.BroadcastSession, error)
	OnlineCount() int
}

// Moderator returns whether a chat message is safe to relay. Implementations
// must fail open: a classifier error yields (true, err).
type Moderator interface {
	Check(ctx context.Context, text string) (bool, error)
}

// MetricsRecorder receives coordination-state changes for export.
type MetricsRecorder interface {
	RecordConnected()
	RecordDisconnected()
	SetQueueDepth(depth int)
	RecordMatch()
	RecordStreamStarted()
	RecordStreamEnded(id domain.SessionID)
	SetViewerCount(id domain.SessionID, count int)
	RecordMessageRelayed(kind string)
}
