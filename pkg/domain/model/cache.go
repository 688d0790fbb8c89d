package model

import (
	"slices"
	"sort"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// CacheEntry is the persisted envelope of every cache document
type CacheEntry[T any] struct {
	Data     T         `json:"data"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ExpiredAt reports whether the entry is outside the validity window at now.
// An entry exactly validity old is expired.
func (e *CacheEntry[T]) ExpiredAt(now time.Time, validity time.Duration) bool {
	return now.Sub(e.LoadedAt) >= validity
}

// NotificationHistory records which day-deltas a user was already reminded at
type NotificationHistory map[types.UserID][]int

// Notified reports whether id was already reminded at day
func (h NotificationHistory) Notified(id types.UserID, day int) bool {
	return slices.Contains(h[id], day)
}

// Record appends day to id's history. It returns false when the pair was
// already present.
func (h NotificationHistory) Record(id types.UserID, day int) bool {
	if h.Notified(id, day) {
		return false
	}
	h[id] = append(h[id], day)
	return true
}

// Clone returns a deep copy
func (h NotificationHistory) Clone() NotificationHistory {
	c := make(NotificationHistory, len(h))
	for id, days := range h {
		c[id] = slices.Clone(days)
	}
	return c
}

// DisabledLedger is the set of users already auto-disabled for an expired
// password. It is persisted as a sorted list.
type DisabledLedger []types.UserID

// Has reports whether id is in the ledger
func (l DisabledLedger) Has(id types.UserID) bool {
	return slices.Contains(l, id)
}

// Add inserts id and keeps the ledger sorted. It returns false when id was
// already present.
func (l *DisabledLedger) Add(id types.UserID) bool {
	if l.Has(id) {
		return false
	}
	*l = append(*l, id)
	sort.Slice(*l, func(i, j int) bool { return (*l)[i] < (*l)[j] })
	return true
}

// Clone returns a copy
func (l DisabledLedger) Clone() DisabledLedger {
	if l == nil {
		return DisabledLedger{}
	}
	return slices.Clone(l)
}
