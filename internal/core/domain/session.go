package domain

import (
	"fmt"
	"time"
)

// PairSession is an ephemeral 1:1 room. A connection belongs to at most one
// pair session at a time.
type PairSession struct {
	RoomID       RoomID
	Participants [2]ConnectionID
	CreatedAt    time.Time
}

// PairRoomID derives the room ID for a pair deterministically from the two
// participant connection IDs, independent of argument order.
func PairRoomID(a, b ConnectionID) RoomID {
	if b < a {
		a, b = b, a
	}
	return RoomID(fmt.Sprintf("room_%s_%s", a, b))
}

func (s *PairSession) Other(id ConnectionID) (ConnectionID, bool) {
	switch id {
	case s.Participants[0]:
		return s.Participants[1], true
	case s.Participants[1]:
		return s.Participants[0], true
	}
	return "", false
}

// BroadcastSession is a 1:N hosted session. Its ID is the host's negotiation
// ID so viewers can address the host directly through the external
// negotiation library. ViewerCount is derived from the transport roster's
// group size; it is never incremented independently of membership changes.
type BroadcastSession struct {
	ID               SessionID    `json:"id"`
	HostConnectionID ConnectionID `json:"-"`
	HostName         string       `json:"streamer_name"`
	Title            string       `json:"title"`
	Tag              IdentityTag  `json:"tag"`
	StartedAt        time.Time    `json:"started_at"`
	ViewerCount      int          `json:"viewer_count"`
}

// GroupName is the transport-level membership group for this session.
func (s *BroadcastSession) GroupName() string {
	return LiveGroupName(s.ID)
}

func LiveGroupName(id SessionID) string {
	return "live_" + string(id)
}
