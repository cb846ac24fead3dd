package services

import (
	"context"
	"sync"
	"time"

	"liveflow/internal/core/domain"
	"liveflow/internal/core/ports"
	"liveflow/pkg/utils"

	"go.uber.org/zap"
)

// CoordinatorService is the single serialization point for presence,
// matchmaking and broadcast state. One mutex guards the registry, the
// waiting queue, the pair sessions and all directory mutations, so every
// inbound event runs as an indivisible unit with respect to other
// connections' events. No operation blocks waiting on another connection.
type CoordinatorService struct {
	mu sync.Mutex

	registry map[domain.ConnectionID]*domain.Connection
	queue    *matchQueue
	pairs    map[domain.RoomID]*domain.PairSession

	broadcasts ports.BroadcastRepository
	notifier   ports.Notifier
	roster     ports.Roster
	moderator  ports.Moderator
	metrics    ports.MetricsRecorder
	policy     MatchPolicy

	logger *zap.SugaredLogger
}

func NewCoordinatorService(
	broadcasts ports.BroadcastRepository,
	notifier ports.Notifier,
	roster ports.Roster,
	moderator ports.Moderator,
	metrics ports.MetricsRecorder,
	policy MatchPolicy,
	logger *zap.SugaredLogger,
) *CoordinatorService {
	return &CoordinatorService{
		registry:   make(map[domain.ConnectionID]*domain.Connection),
		queue:      newMatchQueue(),
		pairs:      make(map[domain.RoomID]*domain.PairSession),
		broadcasts: broadcasts,
		notifier:   notifier,
		roster:     roster,
		moderator:  moderator,
		metrics:    metrics,
		policy:     policy,
		logger:     logger,
	}
}

// Connect registers a new transport session and publishes the updated
// aggregate state. The identity tag and preference filter arrive later with
// the first join_queue or start_stream event.
func (s *CoordinatorService) Connect(ctx context.Context, id domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry[id] = &domain.Connection{
		ID:          id,
		DisplayName: utils.AnonymousName(),
		ConnectedAt: time.Now(),
	}
	s.metrics.RecordConnected()

	s.logger.Infow("connection registered", "connection_id", id, "online", len(s.registry))

	s.publishStatsLocked()
	s.notifier.Send(id, domain.NewActiveStreams(s.listActiveLocked(ctx)))
}

// Disconnect runs the full cleanup cascade for a vanished connection as one
// atomic unit: dequeue, dissolve the pair session, stop a hosted broadcast,
// leave a viewed broadcast, then re-publish the aggregate state.
func (s *CoordinatorService) Disconnect(ctx context.Context, id domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return
	}

	if s.queue.remove(id) {
		s.metrics.SetQueueDepth(s.queue.len())
	}

	s.dissolvePairLocked(conn, true)

	switch conn.LiveRole {
	case domain.RoleHosting:
		s.stopBroadcastLocked(ctx, conn)
	case domain.RoleViewing:
		s.leaveBroadcastLocked(ctx, conn, conn.LiveSessionID)
	}

	delete(s.registry, id)
	s.metrics.RecordDisconnected()

	s.logger.Infow("connection removed", "connection_id", id, "online", len(s.registry))

	s.publishStatsLocked()
	s.publishStreamsLocked(ctx)
}

// JoinQueue attempts an immediate match and otherwise appends the connection
// to the waiting list. Re-joining while already queued replaces the prior
// entry; joining while paired is rejected.
func (s *CoordinatorService) JoinQueue(ctx context.Context, id domain.ConnectionID, negotiationID domain.NegotiationID, identity domain.IdentityTag, preference domain.PreferenceFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return domain.ErrConnectionNotFound
	}
	if conn.PairRoomID != "" {
		return domain.ErrAlreadyPaired
	}

	conn.NegotiationID = negotiationID
	conn.Identity = identity
	conn.Preference = preference

	s.queue.remove(id)

	partner := s.queue.match(conn, s.policy)
	if partner == nil {
		s.queue.push(conn)
		s.metrics.SetQueueDepth(s.queue.len())
		s.logger.Debugw("queued for match", "connection_id", id, "identity", identity, "waiting", s.queue.len())
		return nil
	}

	s.createPairLocked(conn, partner)
	s.metrics.SetQueueDepth(s.queue.len())
	return nil
}

func (s *CoordinatorService) createPairLocked(a, b *domain.Connection) {
	roomID := domain.PairRoomID(a.ID, b.ID)
	session := &domain.PairSession{
		RoomID:       roomID,
		Participants: [2]domain.ConnectionID{a.ID, b.ID},
		CreatedAt:    time.Now(),
	}
	s.pairs[roomID] = session

	a.PairRoomID = roomID
	b.PairRoomID = roomID
	a.LastPartnerID = b.ID
	b.LastPartnerID = a.ID

	// The match notification carries the partner's negotiation identifier;
	// it is the signal that triggers external media negotiation.
	s.notifier.Send(a.ID, domain.NewMatchFound(b))
	s.notifier.Send(b.ID, domain.NewMatchFound(a))

	s.metrics.RecordMatch()
	s.logger.Infow("pair matched",
		"room_id", roomID,
		"a", a.ID, "a_identity", a.Identity,
		"b", b.ID, "b_identity", b.Identity,
	)
}

// LeaveMatch removes the connection from the queue or dissolves its pair
// session, notifying the partner. Calling it with neither is a no-op.
func (s *CoordinatorService) LeaveMatch(ctx context.Context, id domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return
	}

	if s.queue.remove(id) {
		s.metrics.SetQueueDepth(s.queue.len())
	}
	s.dissolvePairLocked(conn, true)
}

// dissolvePairLocked destroys the connection's pair session if it has one.
// The other participant is notified when notifyPartner is set and is left
// with no residual session either way.
func (s *CoordinatorService) dissolvePairLocked(conn *domain.Connection, notifyPartner bool) {
	if conn.PairRoomID == "" {
		return
	}

	session, ok := s.pairs[conn.PairRoomID]
	if !ok {
		conn.PairRoomID = ""
		return
	}
	delete(s.pairs, session.RoomID)

	otherID, _ := session.Other(conn.ID)
	conn.PairRoomID = ""

	if other, ok := s.registry[otherID]; ok {
		other.PairRoomID = ""
		if notifyPartner {
			s.notifier.Send(otherID, domain.Event{Type: domain.EventPartnerDisconnected})
		}
	}

	s.logger.Infow("pair dissolved", "room_id", session.RoomID, "by", conn.ID)
}

// RelayPairMessage forwards a chat message to the other participant of the
// sender's pair session. It drops silently when the sender has no session,
// so the UI stays responsive toward a partner who already left.
func (s *CoordinatorService) RelayPairMessage(ctx context.Context, id domain.ConnectionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok || conn.PairRoomID == "" {
		return
	}
	session, ok := s.pairs[conn.PairRoomID]
	if !ok {
		return
	}
	otherID, ok := session.Other(id)
	if !ok {
		return
	}

	if !s.moderateLocked(ctx, id, text) {
		return
	}

	s.notifier.Send(otherID, domain.Event{
		Type:    domain.EventReceiveRandomMessage,
		Payload: map[string]string{"text": text},
	})
	s.metrics.RecordMessageRelayed("random")
}

// StartBroadcast publishes a new broadcast session for the host, replacing
// any prior session it was hosting.
func (s *CoordinatorService) StartBroadcast(ctx context.Context, id domain.ConnectionID, negotiationID domain.NegotiationID, title string, tag domain.IdentityTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return domain.ErrConnectionNotFound
	}

	// At most one broadcast per host: stop the previous one first so its
	// viewers are told instead of being stranded in a dead group. A viewer
	// that starts a broadcast stops viewing.
	switch conn.LiveRole {
	case domain.RoleHosting:
		s.stopBroadcastLocked(ctx, conn)
	case domain.RoleViewing:
		s.leaveBroadcastLocked(ctx, conn, conn.LiveSessionID)
	}

	conn.NegotiationID = negotiationID

	session := &domain.BroadcastSession{
		ID:               domain.SessionID(negotiationID),
		HostConnectionID: id,
		HostName:         conn.DisplayName,
		Title:            title,
		Tag:              tag,
		StartedAt:        time.Now(),
	}
	if err := s.broadcasts.Create(ctx, session); err != nil {
		s.logger.Errorw("failed to publish broadcast", "session_id", session.ID, "error", err)
		return err
	}

	conn.LiveSessionID = session.ID
	conn.LiveRole = domain.RoleHosting

	s.metrics.RecordStreamStarted()
	s.logger.Infow("broadcast started", "session_id", session.ID, "host", id, "title", title)

	s.publishStreamsLocked(ctx)
	return nil
}

// JoinBroadcast adds the connection to the session's membership group and
// republishes the active list with the recomputed viewer count. Joining a
// nonexistent session is a no-op.
func (s *CoordinatorService) JoinBroadcast(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return
	}

	session, err := s.broadcasts.GetByID(ctx, sessionID)
	if err != nil {
		s.logger.Debugw("join for unknown broadcast", "session_id", sessionID, "connection_id", id)
		return
	}
	if session.HostConnectionID == id {
		return
	}

	// At most one of hosting/viewing at a time: switching to another
	// broadcast leaves the previous one first.
	switch conn.LiveRole {
	case domain.RoleHosting:
		s.stopBroadcastLocked(ctx, conn)
	case domain.RoleViewing:
		if conn.LiveSessionID == sessionID {
			return
		}
		s.leaveBroadcastLocked(ctx, conn, conn.LiveSessionID)
	}

	s.roster.JoinGroup(session.GroupName(), id)
	conn.LiveSessionID = sessionID
	conn.LiveRole = domain.RoleViewing

	s.refreshViewerCountLocked(ctx, session)
	s.publishStreamsLocked(ctx)
}

// LeaveBroadcast is symmetric to JoinBroadcast; leaving a session that no
// longer exists only clears local bookkeeping.
func (s *CoordinatorService) LeaveBroadcast(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return
	}
	s.leaveBroadcastLocked(ctx, conn, sessionID)
	s.publishStreamsLocked(ctx)
}

func (s *CoordinatorService) leaveBroadcastLocked(ctx context.Context, conn *domain.Connection, sessionID domain.SessionID) {
	if sessionID == "" {
		return
	}

	s.roster.LeaveGroup(domain.LiveGroupName(sessionID), conn.ID)
	if conn.LiveRole == domain.RoleViewing && conn.LiveSessionID == sessionID {
		conn.LiveSessionID = ""
		conn.LiveRole = domain.RoleNone
	}

	session, err := s.broadcasts.GetByID(ctx, sessionID)
	if err != nil {
		// Host already stopped; nothing left to recompute.
		return
	}
	s.refreshViewerCountLocked(ctx, session)
}

// RelayBroadcastMessage fans a chat message out to every current member of
// the session's group, sender excluded. The host receives it as well even
// though it is not a group member.
func (s *CoordinatorService) RelayBroadcastMessage(ctx context.Context, id domain.ConnectionID, sessionID domain.SessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok {
		return
	}
	session, err := s.broadcasts.GetByID(ctx, sessionID)
	if err != nil {
		return
	}

	if !s.moderateLocked(ctx, id, text) {
		return
	}

	event := domain.Event{
		Type: domain.EventReceiveLiveMessage,
		Payload: domain.ChatMessagePayload{
			ID:        utils.MessageID(),
			User:      conn.DisplayName,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		},
	}

	s.notifier.SendGroup(session.GroupName(), event, id)
	if session.HostConnectionID != id {
		s.notifier.Send(session.HostConnectionID, event)
	}
	s.metrics.RecordMessageRelayed("live")
}

// StopBroadcast ends the session hosted by the connection, notifying every
// current viewer exactly once. A stop with no hosted session is a no-op.
func (s *CoordinatorService) StopBroadcast(ctx context.Context, id domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.registry[id]
	if !ok || conn.LiveRole != domain.RoleHosting {
		return
	}
	s.stopBroadcastLocked(ctx, conn)
	s.publishStreamsLocked(ctx)
}

func (s *CoordinatorService) stopBroadcastLocked(ctx context.Context, host *domain.Connection) {
	sessionID := host.LiveSessionID
	if sessionID == "" {
		return
	}
	group := domain.LiveGroupName(sessionID)

	s.notifier.SendGroup(group, domain.NewStreamEnded(sessionID), "")

	for _, viewerID := range s.roster.GroupMembers(group) {
		if viewer, ok := s.registry[viewerID]; ok && viewer.LiveSessionID == sessionID {
			viewer.LiveSessionID = ""
			viewer.LiveRole = domain.RoleNone
		}
	}
	s.roster.DropGroup(group)

	if err := s.broadcasts.Delete(ctx, sessionID); err != nil {
		s.logger.Warnw("failed to unlist broadcast", "session_id", sessionID, "error", err)
	}

	host.LiveSessionID = ""
	host.LiveRole = domain.RoleNone

	s.metrics.RecordStreamEnded(sessionID)
	s.logger.Infow("broadcast stopped", "session_id", sessionID, "host", host.ID)
}

// ListActive implements the read-only directory view.
func (s *CoordinatorService) ListActive(ctx context.Context) ([]*domain.BroadcastSession, error) {
	return s.broadcasts.ListActive(ctx)
}

// OnlineCount reports the number of registered connections.
func (s *CoordinatorService) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registry)
}

// refreshViewerCountLocked recomputes the viewer count from the roster's
// actual group size and stores it, never by increment.
func (s *CoordinatorService) refreshViewerCountLocked(ctx context.Context, session *domain.BroadcastSession) {
	session.ViewerCount = s.roster.GroupSize(session.GroupName())
	if err := s.broadcasts.Update(ctx, session); err != nil {
		s.logger.Warnw("failed to store viewer count", "session_id", session.ID, "error", err)
	}
	s.metrics.SetViewerCount(session.ID, session.ViewerCount)
}

// moderateLocked consults the optional text classifier. It fails open: a
// classifier error degrades to unmoderated relay rather than dropping the
// message.
func (s *CoordinatorService) moderateLocked(ctx context.Context, id domain.ConnectionID, text string) bool {
	if s.moderator == nil {
		return true
	}
	safe, err := s.moderator.Check(ctx, text)
	if err != nil {
		s.logger.Warnw("moderation unavailable, relaying unmoderated", "connection_id", id, "error", err)
		return true
	}
	if !safe {
		s.logger.Infow("message blocked by moderation", "connection_id", id)
	}
	return safe
}

func (s *CoordinatorService) publishStatsLocked() {
	s.notifier.Broadcast(domain.NewOnlineStats(len(s.registry)))
}

func (s *CoordinatorService) publishStreamsLocked(ctx context.Context) {
	s.notifier.Broadcast(domain.NewActiveStreams(s.listActiveLocked(ctx)))
}

func (s *CoordinatorService) listActiveLocked(ctx context.Context) []*domain.BroadcastSession {
	streams, err := s.broadcasts.ListActive(ctx)
	if err != nil {
		s.logger.Warnw("failed to list active broadcasts", "error", err)
		return nil
	}
	return streams
}
