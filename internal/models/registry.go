package models

import (
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative store of user records and aggregate counters.
// Users and stats share one lock so the counters never drift from the records.
type Registry struct {
	mu       sync.RWMutex
	users    map[int64]*UserRecord
	stats    Stats
	revision uint64
}

func NewRegistry(startedAt time.Time) *Registry {
	return &Registry{
		users: make(map[int64]*UserRecord),
		stats: Stats{StartedAt: startedAt, LastReset: startedAt},
	}
}

// Touch records one inbound message from id, creating the record on first sight.
func (r *Registry) Touch(id int64, displayName string, now time.Time) UserRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[id]
	if !ok {
		rec = &UserRecord{ID: id, FirstSeen: now}
		r.users[id] = rec
		r.stats.TotalUsers++
	}
	rec.DisplayName = displayName
	rec.LastSeen = now
	rec.MessageCount++

	r.rollDay(now)
	r.stats.TotalMessages++
	r.stats.MessagesToday++
	r.revision++

	return *rec
}

// RollDay resets the daily counter when now falls on a later calendar day
// than the last reset.
func (r *Registry) RollDay(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rollDay(now) {
		r.revision++
	}
}

func (r *Registry) rollDay(now time.Time) bool {
	if r.stats.LastReset.IsZero() {
		r.stats.LastReset = now
		return true
	}
	ly, lm, ld := r.stats.LastReset.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	if (ny == ly && nm == lm && nd == ld) || !now.After(r.stats.LastReset) {
		return false
	}
	r.stats.MessagesToday = 0
	r.stats.LastReset = now
	return true
}

// Block marks id as blocked. Blocking an already blocked user is a no-op.
func (r *Registry) Block(id int64) error {
	return r.setBlocked(id, true)
}

// Unblock clears the blocked flag. Unblocking an active user is a no-op.
func (r *Registry) Unblock(id int64) error {
	return r.setBlocked(id, false)
}

func (r *Registry) setBlocked(id int64, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Blocked == blocked {
		return nil
	}
	rec.Blocked = blocked
	if blocked {
		r.stats.BlockedUsers++
	} else {
		r.stats.BlockedUsers--
	}
	r.revision++
	return nil
}

// MarkWelcomed flags id as greeted. It reports true only for the call that
// set the flag, so the greeting goes out once.
func (r *Registry) MarkWelcomed(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Welcomed {
		return false, nil
	}
	rec.Welcomed = true
	r.revision++
	return true, nil
}

func (r *Registry) IsWelcomed(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.users[id]
	return ok && rec.Welcomed
}

// IsBlocked is false for unknown ids.
func (r *Registry) IsBlocked(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.users[id]
	return ok && rec.Blocked
}

func (r *Registry) Get(id int64) (UserRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.users[id]
	if !ok {
		return UserRecord{}, false
	}
	return *rec, true
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// ActiveSince counts users whose last message is after t.
func (r *Registry) ActiveSince(t time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.users {
		if rec.LastSeen.After(t) {
			n++
		}
	}
	return n
}

// Recipients returns the ids of all users that are not blocked, sorted.
func (r *Registry) Recipients() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.users))
	for id, rec := range r.users {
		if !rec.Blocked {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Revision increases on every mutation.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// SnapshotView copies all records and the stats under a single read lock.
// Records are ordered by id.
func (r *Registry) SnapshotView() ([]UserRecord, Stats) {
	users, stats, _ := r.snapshotView()
	return users, stats
}

// SnapshotViewAt is SnapshotView plus the revision the copy was taken at.
func (r *Registry) SnapshotViewAt() ([]UserRecord, Stats, uint64) {
	return r.snapshotView()
}

func (r *Registry) snapshotView() ([]UserRecord, Stats, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]UserRecord, 0, len(r.users))
	for _, rec := range r.users {
		users = append(users, *rec)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, r.stats, r.revision
}

// Load replaces the whole content of the registry. Derived counters are
// recomputed from users; the returned bool reports whether stats disagreed.
// The daily counter is rolled against now.
func (r *Registry) Load(users []UserRecord, stats Stats, now time.Time) bool {
	folded := FoldStats(users, stats)
	drift := folded != stats

	m := make(map[int64]*UserRecord, len(users))
	for i := range users {
		rec := users[i]
		m[rec.ID] = &rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = m
	r.stats = folded
	r.rollDay(now)
	r.revision++
	return drift
}
