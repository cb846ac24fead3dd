package domain

// Inbound event types. The payload shape for each is validated by the
// transport before it reaches the coordinator.
const (
	EventJoinQueue         = "join_queue"
	EventLeaveMatch        = "leave_match"
	EventSendRandomMessage = "send_random_message"
	EventStartStream       = "start_stream"
	EventJoinLiveRoom      = "join_live_room"
	EventLeaveLiveRoom     = "leave_live_room"
	EventSendLiveMessage   = "send_live_message"
	EventStopStream        = "stop_stream"
)

// Outbound event types.
const (
	EventMatchFound           = "match_found"
	EventPartnerDisconnected  = "partner_disconnected"
	EventReceiveRandomMessage = "receive_random_message"
	EventActiveStreams        = "active_streams"
	EventStreamEnded          = "stream_ended"
	EventReceiveLiveMessage   = "receive_live_message"
	EventOnlineStats          = "online_stats"
	EventError                = "error"
)

// Event is an outbound notification. The transport serializes it as
// {"type": ..., "payload": ...}.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type MatchFoundPayload struct {
	NegotiationID NegotiationID `json:"negotiation_id"`
	Partner       PublicProfile `json:"partner"`
}

type ChatMessagePayload struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type StreamEndedPayload struct {
	SessionID SessionID `json:"session_id"`
}

type OnlineStatsPayload struct {
	Count int `json:"count"`
}

type ActiveStreamsPayload struct {
	Streams []*BroadcastSession `json:"streams"`
}

func NewMatchFound(partner *Connection) Event {
	return Event{
		Type: EventMatchFound,
		Payload: MatchFoundPayload{
			NegotiationID: partner.NegotiationID,
			Partner:       partner.Profile(),
		},
	}
}

func NewStreamEnded(id SessionID) Event {
	return Event{Type: EventStreamEnded, Payload: StreamEndedPayload{SessionID: id}}
}

func NewOnlineStats(count int) Event {
	return Event{Type: EventOnlineStats, Payload: OnlineStatsPayload{Count: count}}
}

func NewActiveStreams(streams []*BroadcastSession) Event {
	if streams == nil {
		streams = []*BroadcastSession{}
	}
	return Event{Type: EventActiveStreams, Payload: ActiveStreamsPayload{Streams: streams}}
}

func NewError(message string) Event {
	return Event{Type: EventError, Payload: map[string]string{"message": message}}
}
