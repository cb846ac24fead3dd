package services

import (
	"liveflow/internal/core/domain"
)

// MatchPolicy tunes candidate eligibility beyond the compatibility rule.
// Repeat-partner avoidance is a soft policy: it must never block matching
// indefinitely, so it can be waived when the avoided candidate is the only
// otherwise-eligible one.
type MatchPolicy struct {
	AvoidLastPartner bool
	WaiveWhenAlone   bool
}

// matchQueue holds connections waiting for a 1:1 partner in arrival order.
// It is owned by the coordinator and only mutated under its lock.
type matchQueue struct {
	waiting []*domain.Connection
}

func newMatchQueue() *matchQueue {
	return &matchQueue{}
}

func (q *matchQueue) len() int {
	return len(q.waiting)
}

func (q *matchQueue) contains(id domain.ConnectionID) bool {
	for _, c := range q.waiting {
		if c.ID == id {
			return true
		}
	}
	return false
}

// push appends a connection to the waiting list. Any prior entry for the
// same connection is removed first, so a connection appears at most once.
func (q *matchQueue) push(c *domain.Connection) {
	q.remove(c.ID)
	q.waiting = append(q.waiting, c)
}

func (q *matchQueue) remove(id domain.ConnectionID) bool {
	for i, c := range q.waiting {
		if c.ID == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// match scans the waiting list in arrival order and removes and returns the
// first eligible candidate for the requester, or nil when none qualifies.
// First eligible wins; ties are broken by insertion order only.
func (q *matchQueue) match(requester *domain.Connection, policy MatchPolicy) *domain.Connection {
	repeatIdx := -1

	for i, candidate := range q.waiting {
		if !compatible(requester, candidate) {
			continue
		}

		if policy.AvoidLastPartner && isRepeatPair(requester, candidate) {
			if repeatIdx < 0 {
				repeatIdx = i
			}
			continue
		}

		q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
		return candidate
	}

	// The repeat partner was the only compatible candidate. Waive the
	// avoidance once rather than leave both waiting forever.
	if repeatIdx >= 0 && policy.WaiveWhenAlone {
		candidate := q.waiting[repeatIdx]
		q.waiting = append(q.waiting[:repeatIdx], q.waiting[repeatIdx+1:]...)
		return candidate
	}

	return nil
}

// compatible applies the matching rule: distinct connections whose
// preference filters each accept the other's identity tag.
func compatible(a, b *domain.Connection) bool {
	if a.ID == b.ID {
		return false
	}
	return a.Preference.Accepts(b.Identity) && b.Preference.Accepts(a.Identity)
}

func isRepeatPair(a, b *domain.Connection) bool {
	return (a.LastPartnerID != "" && a.LastPartnerID == b.ID) ||
		(b.LastPartnerID != "" && b.LastPartnerID == a.ID)
}
