package domain

import (
	"time"
)

type ConnectionID string
type NegotiationID string
type SessionID string
type RoomID string

// IdentityTag is a self-declared category used only for matching and display.
type IdentityTag string

const (
	TagHomem  IdentityTag = "homem"
	TagMulher IdentityTag = "mulher"
	TagTrans  IdentityTag = "trans"
)

func (t IdentityTag) Valid() bool {
	switch t {
	case TagHomem, TagMulher, TagTrans:
		return true
	}
	return false
}

// PreferenceFilter is the set of identity tags a connection is willing to
// match. An empty filter accepts any tag.
type PreferenceFilter []IdentityTag

func (f PreferenceFilter) Accepts(tag IdentityTag) bool {
	if len(f) == 0 {
		return true
	}
	for _, t := range f {
		if t == tag {
			return true
		}
	}
	return false
}

func (f PreferenceFilter) Valid() bool {
	for _, t := range f {
		if !t.Valid() {
			return false
		}
	}
	return true
}

// LiveRole is the connection's role on the broadcast axis. The random-chat
// axis (queued/paired) is tracked separately; the two are orthogonal.
type LiveRole string

const (
	RoleNone    LiveRole = ""
	RoleHosting LiveRole = "hosting"
	RoleViewing LiveRole = "viewing"
)

// Connection is the registry record for one live transport session. It is
// created on connect, mutated only by the coordinator, and destroyed on
// disconnect after the cascade cleanup has run.
type Connection struct {
	ID            ConnectionID
	NegotiationID NegotiationID
	DisplayName   string
	Identity      IdentityTag
	Preference    PreferenceFilter

	// Random-chat axis. PairRoomID is set while paired, empty otherwise.
	PairRoomID RoomID

	// Broadcast axis. LiveSessionID is set while hosting or viewing.
	LiveSessionID SessionID
	LiveRole      LiveRole

	// Most recent partner, used by the repeat-avoidance policy.
	// Overwritten each time the connection is paired.
	LastPartnerID ConnectionID

	ConnectedAt time.Time
}

// PublicProfile is the part of a connection shared with a matched partner.
type PublicProfile struct {
	NegotiationID NegotiationID `json:"negotiation_id"`
	DisplayName   string        `json:"display_name"`
	Identity      IdentityTag   `json:"identity"`
}

func (c *Connection) Profile() PublicProfile {
	return PublicProfile{
		NegotiationID: c.NegotiationID,
		DisplayName:   c.DisplayName,
		Identity:      c.Identity,
	}
}
