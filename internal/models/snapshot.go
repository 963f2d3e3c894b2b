package models

import (
	"fmt"
	"time"
)

const SnapshotVersion = 1

// Snapshot is the durable image of the registry, its stats and the delivery mode.
type Snapshot struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Users   []UserRecord   `json:"users"`
	Stats   Stats          `json:"stats"`
	Mode    ModeState      `json:"mode"`
	History []HistoryEntry `json:"message_history,omitempty"`

	// Revision identifies the state the copy was taken at; not persisted.
	Revision uint64 `json:"-"`
}

// Check rejects structurally broken snapshots: bad ids, duplicates or an invalid mode.
func (s *Snapshot) Check() error {
	seen := make(map[int64]struct{}, len(s.Users))
	for _, u := range s.Users {
		if u.ID <= 0 {
			return fmt.Errorf("%w: user id %d", ErrInvalidArgument, u.ID)
		}
		if u.MessageCount < 0 {
			return fmt.Errorf("%w: negative message count for user %d", ErrInvalidArgument, u.ID)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("%w: duplicate user id %d", ErrInvalidArgument, u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return s.Mode.Validate()
}

// Consistent reports whether the stored counters match a fold over the users.
func (s *Snapshot) Consistent() bool {
	return FoldStats(s.Users, s.Stats) == s.Stats
}
