package ports

import (
	"liveflow/internal/core/domain"
)

// Notifier is the outbound side of the transport. Sends are fire-and-forget:
// a failed delivery surfaces later as that connection's own disconnect, never
// as an error to the calling event.
type Notifier interface {
	Send(id domain.ConnectionID, event domain.Event)
	Broadcast(event domain.Event)
	SendGroup(group string, event domain.Event, except domain.ConnectionID)
}

// Roster is the transport's native membership-group primitive. Viewer counts
// are always derived from group sizes, never tracked independently.
type Roster interface {
	JoinGroup(group string, id domain.ConnectionID)
	LeaveGroup(group string, id domain.ConnectionID)
	DropGroup(group string)
	GroupSize(group string) int
	GroupMembers(group string) []domain.ConnectionID
}
