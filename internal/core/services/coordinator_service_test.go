package services

import (
	"context"
	"testing"

	"liveflow/internal/core/domain"
	"liveflow/internal/infrastructure/repositories/memory"
	"liveflow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	to    domain.ConnectionID
	event domain.Event
}

type groupSend struct {
	group  string
	event  domain.Event
	except domain.ConnectionID
}

type fakeNotifier struct {
	sent       []sentEvent
	broadcasts []domain.Event
	groupSends []groupSend
}

func (f *fakeNotifier) Send(id domain.ConnectionID, event domain.Event) {
	f.sent = append(f.sent, sentEvent{to: id, event: event})
}

func (f *fakeNotifier) Broadcast(event domain.Event) {
	f.broadcasts = append(f.broadcasts, event)
}

func (f *fakeNotifier) SendGroup(group string, event domain.Event, except domain.ConnectionID) {
	f.groupSends = append(f.groupSends, groupSend{group: group, event: event, except: except})
}

func (f *fakeNotifier) sentTo(id domain.ConnectionID, eventType string) []domain.Event {
	var events []domain.Event
	for _, s := range f.sent {
		if s.to == id && s.event.Type == eventType {
			events = append(events, s.event)
		}
	}
	return events
}

func (f *fakeNotifier) reset() {
	f.sent = nil
	f.broadcasts = nil
	f.groupSends = nil
}

type fakeRoster struct {
	groups map[string]map[domain.ConnectionID]struct{}
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{groups: make(map[string]map[domain.ConnectionID]struct{})}
}

func (f *fakeRoster) JoinGroup(group string, id domain.ConnectionID) {
	if f.groups[group] == nil {
		f.groups[group] = make(map[domain.ConnectionID]struct{})
	}
	f.groups[group][id] = struct{}{}
}

func (f *fakeRoster) LeaveGroup(group string, id domain.ConnectionID) {
	delete(f.groups[group], id)
}

func (f *fakeRoster) DropGroup(group string) {
	delete(f.groups, group)
}

func (f *fakeRoster) GroupSize(group string) int {
	return len(f.groups[group])
}

func (f *fakeRoster) GroupMembers(group string) []domain.ConnectionID {
	members := make([]domain.ConnectionID, 0, len(f.groups[group]))
	for id := range f.groups[group] {
		members = append(members, id)
	}
	return members
}

type fakeMetrics struct {
	connected   int
	queueDepth  int
	matches     int
	streamsUp   int
	streamsDown int
	relayed     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{relayed: make(map[string]int)}
}

func (f *fakeMetrics) RecordConnected()                              { f.connected++ }
func (f *fakeMetrics) RecordDisconnected()                           { f.connected-- }
func (f *fakeMetrics) SetQueueDepth(depth int)                       { f.queueDepth = depth }
func (f *fakeMetrics) RecordMatch()                                  { f.matches++ }
func (f *fakeMetrics) RecordStreamStarted()                          { f.streamsUp++ }
func (f *fakeMetrics) RecordStreamEnded(id domain.SessionID)         { f.streamsDown++ }
func (f *fakeMetrics) SetViewerCount(id domain.SessionID, count int) {}
func (f *fakeMetrics) RecordMessageRelayed(kind string)              { f.relayed[kind]++ }

type blockAllModerator struct{}

func (blockAllModerator) Check(ctx context.Context, text string) (bool, error) {
	return false, nil
}

type coordinatorFixture struct {
	svc      *CoordinatorService
	notifier *fakeNotifier
	roster   *fakeRoster
	metrics  *fakeMetrics
}

func newFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	notifier := &fakeNotifier{}
	roster := newFakeRoster()
	metrics := newFakeMetrics()

	svc := NewCoordinatorService(
		memory.NewMemoryBroadcastRepository(),
		notifier,
		roster,
		nil,
		metrics,
		MatchPolicy{},
		logger.NewNop(),
	)
	return &coordinatorFixture{svc: svc, notifier: notifier, roster: roster, metrics: metrics}
}

func (fx *coordinatorFixture) connect(ctx context.Context, ids ...domain.ConnectionID) {
	for _, id := range ids {
		fx.svc.Connect(ctx, id)
	}
}

func TestCoordinator_ConnectPublishesState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.connect(ctx, "a")

	require.Len(t, fx.notifier.broadcasts, 1)
	assert.Equal(t, domain.EventOnlineStats, fx.notifier.broadcasts[0].Type)
	assert.Equal(t, domain.OnlineStatsPayload{Count: 1}, fx.notifier.broadcasts[0].Payload)

	// The newcomer receives the current stream directory.
	lists := fx.notifier.sentTo("a", domain.EventActiveStreams)
	require.Len(t, lists, 1)
	assert.Equal(t, 1, fx.metrics.connected)
	assert.Equal(t, 1, fx.svc.OnlineCount())
}

func TestCoordinator_MutualEmptyFiltersMatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "neg-a", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "neg-b", domain.TagMulher, nil))

	matchesA := fx.notifier.sentTo("a", domain.EventMatchFound)
	matchesB := fx.notifier.sentTo("b", domain.EventMatchFound)
	require.Len(t, matchesA, 1)
	require.Len(t, matchesB, 1)

	// Each side is told the partner's negotiation identifier.
	payloadA := matchesA[0].Payload.(domain.MatchFoundPayload)
	assert.Equal(t, domain.NegotiationID("neg-b"), payloadA.NegotiationID)

	assert.Equal(t, 1, fx.metrics.matches)
	assert.Equal(t, 0, fx.metrics.queueDepth)
}

func TestCoordinator_DisjointFiltersNeverMatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, domain.PreferenceFilter{domain.TagTrans}))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))

	assert.Empty(t, fx.notifier.sentTo("a", domain.EventMatchFound))
	assert.Empty(t, fx.notifier.sentTo("b", domain.EventMatchFound))
	assert.Equal(t, 2, fx.metrics.queueDepth)
}

func TestCoordinator_PreferenceScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b", "c")

	// a (homem) wants mulher; b (homem) wants anyone; they must not match.
	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, domain.PreferenceFilter{domain.TagMulher}))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagHomem, nil))
	assert.Empty(t, fx.notifier.sentTo("a", domain.EventMatchFound))

	// c (mulher, anyone) arrives and matches a: first eligible in arrival order.
	require.NoError(t, fx.svc.JoinQueue(ctx, "c", "nc", domain.TagMulher, nil))
	require.Len(t, fx.notifier.sentTo("a", domain.EventMatchFound), 1)
	require.Len(t, fx.notifier.sentTo("c", domain.EventMatchFound), 1)
	assert.Empty(t, fx.notifier.sentTo("b", domain.EventMatchFound))
}

func TestCoordinator_JoinQueueWhilePairedRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))

	err := fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaired)
}

func TestCoordinator_ReenqueueReplacesEntry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, domain.PreferenceFilter{domain.TagTrans}))
	assert.Equal(t, 1, fx.metrics.queueDepth)

	// Same connection re-enqueues with new parameters; depth stays 1.
	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	assert.Equal(t, 1, fx.metrics.queueDepth)
}

func TestCoordinator_LeaveMatchNotifiesPartnerOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
	fx.notifier.reset()

	fx.svc.LeaveMatch(ctx, "a")

	require.Len(t, fx.notifier.sentTo("b", domain.EventPartnerDisconnected), 1)
	assert.Empty(t, fx.notifier.sentTo("a", domain.EventPartnerDisconnected))

	// Dissolving again is a no-op: the partner is not notified twice.
	fx.svc.LeaveMatch(ctx, "a")
	fx.svc.LeaveMatch(ctx, "b")
	require.Len(t, fx.notifier.sentTo("b", domain.EventPartnerDisconnected), 1)
	assert.Empty(t, fx.notifier.sentTo("a", domain.EventPartnerDisconnected))
}

func TestCoordinator_BothCanRequeueAfterDissolve(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
	fx.svc.LeaveMatch(ctx, "a")
	fx.notifier.reset()

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))

	// Repeat avoidance is off in the default fixture policy, so they pair again.
	require.Len(t, fx.notifier.sentTo("a", domain.EventMatchFound), 1)
	require.Len(t, fx.notifier.sentTo("b", domain.EventMatchFound), 1)
}

func TestCoordinator_RelayPairMessage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
	fx.notifier.reset()

	fx.svc.RelayPairMessage(ctx, "a", "oi")

	msgs := fx.notifier.sentTo("b", domain.EventReceiveRandomMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]string{"text": "oi"}, msgs[0].Payload)
	assert.Empty(t, fx.notifier.sentTo("a", domain.EventReceiveRandomMessage))
	assert.Equal(t, 1, fx.metrics.relayed["random"])
}

func TestCoordinator_RelayWithoutPairDropsSilently(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a")

	fx.svc.RelayPairMessage(ctx, "a", "nobody hears this")

	assert.Empty(t, fx.notifier.sentTo("a", domain.EventError))
	assert.Equal(t, 0, fx.metrics.relayed["random"])
}

func TestCoordinator_ModeratorBlocksRelay(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewCoordinatorService(
		memory.NewMemoryBroadcastRepository(),
		notifier,
		newFakeRoster(),
		blockAllModerator{},
		newFakeMetrics(),
		MatchPolicy{},
		logger.NewNop(),
	)
	ctx := context.Background()
	svc.Connect(ctx, "a")
	svc.Connect(ctx, "b")

	require.NoError(t, svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
	notifier.reset()

	svc.RelayPairMessage(ctx, "a", "blocked")
	assert.Empty(t, notifier.sentTo("b", domain.EventReceiveRandomMessage))
}

func TestCoordinator_DisconnectCascadesForPairedPeer(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a", "b")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, nil))
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
	fx.notifier.reset()

	fx.svc.Disconnect(ctx, "a")

	require.Len(t, fx.notifier.sentTo("b", domain.EventPartnerDisconnected), 1)
	assert.Equal(t, 1, fx.svc.OnlineCount())

	// The survivor can queue again immediately.
	require.NoError(t, fx.svc.JoinQueue(ctx, "b", "nb", domain.TagMulher, nil))
}

func TestCoordinator_DisconnectWhileQueuedShrinksQueue(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "a")

	require.NoError(t, fx.svc.JoinQueue(ctx, "a", "na", domain.TagHomem, domain.PreferenceFilter{domain.TagTrans}))
	assert.Equal(t, 1, fx.metrics.queueDepth)

	fx.svc.Disconnect(ctx, "a")
	assert.Equal(t, 0, fx.metrics.queueDepth)
	assert.Equal(t, 0, fx.svc.OnlineCount())
}

func TestCoordinator_StartBroadcastPublishes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host")
	fx.notifier.reset()

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "neg-host", "late night", domain.TagMulher))

	streams, err := fx.svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, domain.SessionID("neg-host"), streams[0].ID)
	assert.Equal(t, 0, streams[0].ViewerCount)

	// Everyone is told about the new directory state.
	require.NotEmpty(t, fx.notifier.broadcasts)
	assert.Equal(t, domain.EventActiveStreams, fx.notifier.broadcasts[len(fx.notifier.broadcasts)-1].Type)
	assert.Equal(t, 1, fx.metrics.streamsUp)
}

func TestCoordinator_RestartReplacesOwnBroadcast(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "first", "one", domain.TagMulher))
	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "second", "two", domain.TagMulher))

	streams, err := fx.svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, domain.SessionID("second"), streams[0].ID)
	assert.Equal(t, 1, fx.metrics.streamsDown)
}

func TestCoordinator_ViewerCountTracksMembership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1", "v2")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))

	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.svc.JoinBroadcast(ctx, "v2", "s")

	streams, _ := fx.svc.ListActive(ctx)
	require.Len(t, streams, 1)
	assert.Equal(t, 2, streams[0].ViewerCount)

	// Joining twice does not inflate the count.
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	streams, _ = fx.svc.ListActive(ctx)
	assert.Equal(t, 2, streams[0].ViewerCount)

	fx.svc.LeaveBroadcast(ctx, "v1", "s")
	streams, _ = fx.svc.ListActive(ctx)
	assert.Equal(t, 1, streams[0].ViewerCount)
}

func TestCoordinator_HostCannotViewOwnBroadcast(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "host", "s")

	streams, _ := fx.svc.ListActive(ctx)
	require.Len(t, streams, 1)
	assert.Equal(t, 0, streams[0].ViewerCount)
}

func TestCoordinator_JoinUnknownBroadcastIsNoop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "v")
	fx.notifier.reset()

	fx.svc.JoinBroadcast(ctx, "v", "ghost")

	assert.Empty(t, fx.notifier.sentTo("v", domain.EventError))
	assert.Equal(t, 0, fx.roster.GroupSize(domain.LiveGroupName("ghost")))
}

func TestCoordinator_SwitchingBroadcastsLeavesPrevious(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "h1", "h2", "v")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "h1", "s1", "one", domain.TagMulher))
	require.NoError(t, fx.svc.StartBroadcast(ctx, "h2", "s2", "two", domain.TagTrans))

	fx.svc.JoinBroadcast(ctx, "v", "s1")
	fx.svc.JoinBroadcast(ctx, "v", "s2")

	assert.Equal(t, 0, fx.roster.GroupSize(domain.LiveGroupName("s1")))
	assert.Equal(t, 1, fx.roster.GroupSize(domain.LiveGroupName("s2")))
}

func TestCoordinator_RelayBroadcastMessageReachesRoomNotSender(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1", "v2")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.svc.JoinBroadcast(ctx, "v2", "s")
	fx.notifier.reset()

	fx.svc.RelayBroadcastMessage(ctx, "v1", "s", "hello room")

	require.Len(t, fx.notifier.groupSends, 1)
	assert.Equal(t, domain.LiveGroupName("s"), fx.notifier.groupSends[0].group)
	assert.Equal(t, domain.ConnectionID("v1"), fx.notifier.groupSends[0].except)

	// The host is not a group member and gets a direct copy.
	hostCopies := fx.notifier.sentTo("host", domain.EventReceiveLiveMessage)
	require.Len(t, hostCopies, 1)
	payload := hostCopies[0].Payload.(domain.ChatMessagePayload)
	assert.Equal(t, "hello room", payload.Text)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, 1, fx.metrics.relayed["live"])
}

func TestCoordinator_HostMessageNotEchoedBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.notifier.reset()

	fx.svc.RelayBroadcastMessage(ctx, "host", "s", "welcome")

	require.Len(t, fx.notifier.groupSends, 1)
	assert.Empty(t, fx.notifier.sentTo("host", domain.EventReceiveLiveMessage))
}

func TestCoordinator_StopBroadcastNotifiesViewersOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1", "v2")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.svc.JoinBroadcast(ctx, "v2", "s")
	fx.notifier.reset()

	fx.svc.StopBroadcast(ctx, "host")

	var ends []groupSend
	for _, g := range fx.notifier.groupSends {
		if g.event.Type == domain.EventStreamEnded {
			ends = append(ends, g)
		}
	}
	require.Len(t, ends, 1)
	assert.Equal(t, domain.ConnectionID(""), ends[0].except)

	streams, _ := fx.svc.ListActive(ctx)
	assert.Empty(t, streams)
	assert.Equal(t, 0, fx.roster.GroupSize(domain.LiveGroupName("s")))

	// Repeated stop is a no-op.
	fx.svc.StopBroadcast(ctx, "host")
	assert.Equal(t, 1, fx.metrics.streamsDown)

	// Viewers are free to queue or view elsewhere.
	require.NoError(t, fx.svc.JoinQueue(ctx, "v1", "nv1", domain.TagHomem, nil))
}

func TestCoordinator_HostDisconnectEndsBroadcast(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.notifier.reset()

	fx.svc.Disconnect(ctx, "host")

	var endCount int
	for _, g := range fx.notifier.groupSends {
		if g.event.Type == domain.EventStreamEnded {
			endCount++
		}
	}
	assert.Equal(t, 1, endCount)

	streams, _ := fx.svc.ListActive(ctx)
	assert.Empty(t, streams)
	assert.Equal(t, 1, fx.svc.OnlineCount())
}

func TestCoordinator_ViewerDisconnectShrinksCount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "host", "v1", "v2")

	require.NoError(t, fx.svc.StartBroadcast(ctx, "host", "s", "title", domain.TagMulher))
	fx.svc.JoinBroadcast(ctx, "v1", "s")
	fx.svc.JoinBroadcast(ctx, "v2", "s")

	fx.svc.Disconnect(ctx, "v1")

	streams, _ := fx.svc.ListActive(ctx)
	require.Len(t, streams, 1)
	assert.Equal(t, 1, streams[0].ViewerCount)
}

func TestCoordinator_LeaveUnknownBroadcastIsNoop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.connect(ctx, "v")

	fx.svc.LeaveBroadcast(ctx, "v", "ghost")
	assert.Empty(t, fx.notifier.sentTo("v", domain.EventError))
}
