package persistence

import (
	"anonbot/internal/models"
	"anonbot/internal/providers"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// isoLocal matches timestamps without zone, as the older bot wrote them.
const isoLocal = "2006-01-02T15:04:05.999999999"

type legacyUser struct {
	FirstSeen    string `json:"first_seen"`
	LastActivity string `json:"last_activity"`
	MessageCount int64  `json:"message_count"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username"`
	Welcomed     bool   `json:"welcomed"`
}

type legacyHistoryEntry struct {
	UserID      int64   `json:"user_id"`
	MessageType string  `json:"message_type"`
	Text        *string `json:"text"`
	Timestamp   string  `json:"timestamp"`
}

type legacyStats struct {
	MessagesToday int64  `json:"messages_today"`
	LastReset     string `json:"last_reset"`
	BotStarted    string `json:"bot_started"`
}

type legacySettings struct {
	Mode          string `json:"mode"`
	TargetGroupID *int64 `json:"target_group_id"`
}

type legacySnapshot struct {
	Users          map[string]legacyUser      `json:"users"`
	BlockedUsers   []int64                    `json:"blocked_users"`
	Stats          legacyStats                `json:"stats"`
	BotSettings    legacySettings             `json:"bot_settings"`
	MessageHistory []legacyHistoryEntry       `json:"message_history"`
	MessageMapping map[string]json.RawMessage `json:"message_mapping"`
}

func parseLegacyTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(isoLocal, s, time.Local)
}

func legacyDisplayName(u legacyUser) string {
	if u.Username != "" {
		return "@" + strings.TrimPrefix(u.Username, "@")
	}
	return u.FirstName
}

func migrateLegacy(data []byte, logger providers.Logger) (*models.Snapshot, error) {
	var old legacySnapshot
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("decode legacy snapshot: %w", err)
	}
	if old.Users == nil {
		return nil, fmt.Errorf("decode legacy snapshot: no users object")
	}

	blocked := make(map[int64]bool, len(old.BlockedUsers))
	for _, id := range old.BlockedUsers {
		blocked[id] = true
	}

	users := make([]models.UserRecord, 0, len(old.Users)+len(old.BlockedUsers))
	for key, u := range old.Users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("legacy user key %q: %w", key, err)
		}
		first, err := parseLegacyTime(u.FirstSeen)
		if err != nil {
			return nil, fmt.Errorf("legacy user %d first_seen: %w", id, err)
		}
		last, err := parseLegacyTime(u.LastActivity)
		if err != nil {
			return nil, fmt.Errorf("legacy user %d last_activity: %w", id, err)
		}
		users = append(users, models.UserRecord{
			ID:           id,
			FirstSeen:    first,
			LastSeen:     last,
			MessageCount: u.MessageCount,
			Blocked:      blocked[id],
			DisplayName:  legacyDisplayName(u),
			Welcomed:     u.Welcomed,
		})
		delete(blocked, id)
	}
	// blocked ids that never wrote a message still need a record
	for id := range blocked {
		users = append(users, models.UserRecord{ID: id, Blocked: true})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	started, err := parseLegacyTime(old.Stats.BotStarted)
	if err != nil {
		return nil, fmt.Errorf("legacy stats bot_started: %w", err)
	}
	lastReset, err := parseLegacyTime(old.Stats.LastReset)
	if err != nil {
		return nil, fmt.Errorf("legacy stats last_reset: %w", err)
	}

	mode := models.ModeState{Mode: models.ModePrivate}
	if strings.EqualFold(old.BotSettings.Mode, string(models.ModeGroup)) {
		if t := old.BotSettings.TargetGroupID; t != nil && *t > 0 {
			target := *t
			mode = models.ModeState{Mode: models.ModeGroup, TargetGroupID: &target}
		} else {
			logger.Warnf(providers.TypeApp, "Legacy group mode has no usable target, falling back to private")
		}
	}

	// reply routes now live in the cache keyed by the forwarded copy
	if n := len(old.MessageMapping); n > 0 {
		logger.Warnf(providers.TypeApp, "Dropping %d legacy reply mappings, replies to messages forwarded before the upgrade cannot be routed", n)
	}

	snap := &models.Snapshot{
		Version: models.SnapshotVersion,
		History: migrateLegacyHistory(old.MessageHistory, logger),
		Users:   users,
		Stats: models.Stats{
			StartedAt:     started,
			MessagesToday: old.Stats.MessagesToday,
			LastReset:     lastReset,
		},
		Mode: mode,
	}
	snap.Stats = models.FoldStats(snap.Users, snap.Stats)
	return snap, nil
}

func migrateLegacyHistory(entries []legacyHistoryEntry, logger providers.Logger) []models.HistoryEntry {
	if len(entries) > models.MaxHistory {
		entries = entries[len(entries)-models.MaxHistory:]
	}
	out := make([]models.HistoryEntry, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		ts, err := parseLegacyTime(e.Timestamp)
		if err != nil || e.UserID <= 0 {
			skipped++
			continue
		}
		entry := models.HistoryEntry{UserID: e.UserID, MessageType: e.MessageType, Timestamp: ts}
		if entry.MessageType == "" {
			entry.MessageType = "text"
		}
		if e.Text != nil {
			entry.Text = *e.Text
		}
		out = append(out, entry)
	}
	if skipped > 0 {
		logger.Warnf(providers.TypeApp, "Skipped %d unreadable legacy history entries", skipped)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
