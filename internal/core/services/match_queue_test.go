package services

import (
	"testing"

	"liveflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waiting(id string, identity domain.IdentityTag, prefs ...domain.IdentityTag) *domain.Connection {
	return &domain.Connection{
		ID:         domain.ConnectionID(id),
		Identity:   identity,
		Preference: domain.PreferenceFilter(prefs),
	}
}

func TestMatchQueue_PushIsIdempotentPerConnection(t *testing.T) {
	q := newMatchQueue()

	a := waiting("a", domain.TagHomem)
	q.push(a)
	q.push(a)

	assert.Equal(t, 1, q.len())
	assert.True(t, q.contains("a"))
}

func TestMatchQueue_EmptyFiltersMatchAnyone(t *testing.T) {
	q := newMatchQueue()
	q.push(waiting("a", domain.TagHomem))

	partner := q.match(waiting("b", domain.TagTrans), MatchPolicy{})
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("a"), partner.ID)
	assert.Equal(t, 0, q.len())
}

func TestMatchQueue_MutualAcceptanceRequired(t *testing.T) {
	q := newMatchQueue()

	// a wants mulher only; b is homem, so a rejects b regardless of b's filter.
	q.push(waiting("a", domain.TagHomem, domain.TagMulher))

	partner := q.match(waiting("b", domain.TagHomem), MatchPolicy{})
	assert.Nil(t, partner)
	assert.Equal(t, 1, q.len())
}

func TestMatchQueue_OneSidedRejectionBlocksBothWays(t *testing.T) {
	q := newMatchQueue()

	// b accepts anyone, but the requester only wants trans.
	q.push(waiting("b", domain.TagMulher))

	partner := q.match(waiting("a", domain.TagHomem, domain.TagTrans), MatchPolicy{})
	assert.Nil(t, partner)
}

func TestMatchQueue_FirstEligibleWins(t *testing.T) {
	q := newMatchQueue()
	q.push(waiting("first", domain.TagMulher))
	q.push(waiting("second", domain.TagMulher))

	partner := q.match(waiting("r", domain.TagHomem, domain.TagMulher), MatchPolicy{})
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("first"), partner.ID)
	assert.True(t, q.contains("second"))
}

func TestMatchQueue_SkipsIncompatibleHead(t *testing.T) {
	q := newMatchQueue()
	q.push(waiting("head", domain.TagHomem))
	q.push(waiting("tail", domain.TagMulher))

	partner := q.match(waiting("r", domain.TagHomem, domain.TagMulher), MatchPolicy{})
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("tail"), partner.ID)
	assert.True(t, q.contains("head"))
}

func TestMatchQueue_AvoidsLastPartner(t *testing.T) {
	q := newMatchQueue()

	repeat := waiting("repeat", domain.TagMulher)
	fresh := waiting("fresh", domain.TagMulher)
	q.push(repeat)
	q.push(fresh)

	requester := waiting("r", domain.TagHomem)
	requester.LastPartnerID = "repeat"

	partner := q.match(requester, MatchPolicy{AvoidLastPartner: true})
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("fresh"), partner.ID)
	assert.True(t, q.contains("repeat"))
}

func TestMatchQueue_RepeatAvoidanceIsSymmetric(t *testing.T) {
	q := newMatchQueue()

	// The waiting side remembers the requester; the requester forgot.
	repeat := waiting("repeat", domain.TagMulher)
	repeat.LastPartnerID = "r"
	fresh := waiting("fresh", domain.TagMulher)
	q.push(repeat)
	q.push(fresh)

	partner := q.match(waiting("r", domain.TagHomem), MatchPolicy{AvoidLastPartner: true})
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("fresh"), partner.ID)
}

func TestMatchQueue_WaivesAvoidanceWhenAlone(t *testing.T) {
	q := newMatchQueue()

	repeat := waiting("repeat", domain.TagMulher)
	q.push(repeat)

	requester := waiting("r", domain.TagHomem)
	requester.LastPartnerID = "repeat"

	policy := MatchPolicy{AvoidLastPartner: true, WaiveWhenAlone: true}
	partner := q.match(requester, policy)
	require.NotNil(t, partner)
	assert.Equal(t, domain.ConnectionID("repeat"), partner.ID)
	assert.Equal(t, 0, q.len())
}

func TestMatchQueue_NoWaiverLeavesBothWaiting(t *testing.T) {
	q := newMatchQueue()

	repeat := waiting("repeat", domain.TagMulher)
	q.push(repeat)

	requester := waiting("r", domain.TagHomem)
	requester.LastPartnerID = "repeat"

	policy := MatchPolicy{AvoidLastPartner: true, WaiveWhenAlone: false}
	assert.Nil(t, q.match(requester, policy))
	assert.True(t, q.contains("repeat"))
}

func TestMatchQueue_RemoveReportsPresence(t *testing.T) {
	q := newMatchQueue()
	q.push(waiting("a", domain.TagHomem))

	assert.True(t, q.remove("a"))
	assert.False(t, q.remove("a"))
	assert.Equal(t, 0, q.len())
}
