package transport

import (
	"encoding/json"
	"fmt"

	"liveflow/internal/core/domain"
	"liveflow/pkg/validation"
)

// ClientMessage is the inbound event envelope. The payload is kept raw until
// the event type is known, then decoded and shape-checked before any state
// is touched; a malformed payload never reaches the coordinator.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinQueuePayload struct {
	NegotiationID string   `json:"negotiation_id"`
	Identity      string   `json:"identity"`
	LookingFor    []string `json:"looking_for"`
}

type StartStreamPayload struct {
	NegotiationID string `json:"negotiation_id"`
	Title         string `json:"title"`
	Tag           string `json:"tag"`
}

type SessionPayload struct {
	SessionID string `json:"session_id"`
}

type RandomMessagePayload struct {
	Text string `json:"text"`
}

type LiveMessagePayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func decodeJoinQueue(raw json.RawMessage) (*JoinQueuePayload, error) {
	var p JoinQueuePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid join_queue payload: %w", err)
	}
	if err := validation.ValidateNegotiationID(p.NegotiationID); err != nil {
		return nil, err
	}
	if !domain.IdentityTag(p.Identity).Valid() {
		return nil, domain.ErrInvalidIdentity
	}
	for _, tag := range p.LookingFor {
		if !domain.IdentityTag(tag).Valid() {
			return nil, fmt.Errorf("invalid preference tag %q", tag)
		}
	}
	return &p, nil
}

func (p *JoinQueuePayload) preference() domain.PreferenceFilter {
	filter := make(domain.PreferenceFilter, 0, len(p.LookingFor))
	for _, tag := range p.LookingFor {
		filter = append(filter, domain.IdentityTag(tag))
	}
	return filter
}

func decodeStartStream(raw json.RawMessage) (*StartStreamPayload, error) {
	var p StartStreamPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid start_stream payload: %w", err)
	}
	if err := validation.ValidateNegotiationID(p.NegotiationID); err != nil {
		return nil, err
	}
	if err := validation.ValidateStreamTitle(p.Title); err != nil {
		return nil, err
	}
	if !domain.IdentityTag(p.Tag).Valid() {
		return nil, domain.ErrInvalidIdentity
	}
	return &p, nil
}

func decodeSession(raw json.RawMessage) (*SessionPayload, error) {
	var p SessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid session payload: %w", err)
	}
	if err := validation.ValidateSessionID(p.SessionID); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeRandomMessage(raw json.RawMessage) (*RandomMessagePayload, error) {
	var p RandomMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid message payload: %w", err)
	}
	if err := validation.ValidateChatText(p.Text); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeLiveMessage(raw json.RawMessage) (*LiveMessagePayload, error) {
	var p LiveMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid message payload: %w", err)
	}
	if err := validation.ValidateSessionID(p.SessionID); err != nil {
		return nil, err
	}
	if err := validation.ValidateChatText(p.Text); err != nil {
		return nil, err
	}
	return &p, nil
}
