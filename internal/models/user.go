package models

import "time"

type UserRecord struct {
	ID           int64     `json:"id"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MessageCount int64     `json:"message_count"`
	Blocked      bool      `json:"blocked"`
	DisplayName  string    `json:"display_name"`
	Welcomed     bool      `json:"welcomed"`
}

// Stats is kept in step with the user map; every field except the daily
// counters can be recomputed from the records.
type Stats struct {
	TotalMessages int64     `json:"total_messages"`
	TotalUsers    int64     `json:"total_users"`
	BlockedUsers  int64     `json:"blocked_users"`
	StartedAt     time.Time `json:"started_at"`
	MessagesToday int64     `json:"messages_today"`
	LastReset     time.Time `json:"last_reset"`
}

// FoldStats recomputes the derived counters from records. Time fields and
// the daily counter are taken from base.
func FoldStats(users []UserRecord, base Stats) Stats {
	out := base
	out.TotalUsers = int64(len(users))
	out.TotalMessages = 0
	out.BlockedUsers = 0
	for _, u := range users {
		out.TotalMessages += u.MessageCount
		if u.Blocked {
			out.BlockedUsers++
		}
	}
	return out
}
