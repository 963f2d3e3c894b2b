package models

import (
	"sync"
	"time"
)

const (
	// MaxHistory bounds the message log kept in memory and in snapshots.
	MaxHistory = 1000
	// HistoryTextLimit is the number of runes kept from each message text.
	HistoryTextLimit = 100
)

type HistoryEntry struct {
	UserID      int64     `json:"user_id"`
	MessageType string    `json:"message_type"`
	Text        string    `json:"text,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// History is a fixed-size ring of the most recent admitted messages.
type History struct {
	mu       sync.RWMutex
	buf      []HistoryEntry
	next     int
	full     bool
	revision uint64
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxHistory
	}
	return &History{buf: make([]HistoryEntry, limit)}
}

func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// Add appends e, dropping the oldest entry once the ring is full.
func (h *History) Add(e HistoryEntry) {
	e.Text = truncateRunes(e.Text, HistoryTextLimit)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.put(e)
	h.revision++
}

func (h *History) put(e HistoryEntry) {
	h.buf[h.next] = e
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

func (h *History) ordered() []HistoryEntry {
	if !h.full && h.next == 0 {
		return nil
	}
	if !h.full {
		out := make([]HistoryEntry, h.next)
		copy(out, h.buf[:h.next])
		return out
	}
	out := make([]HistoryEntry, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// Recent returns up to n entries, oldest first. n <= 0 returns everything.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	all := h.ordered()
	if n > 0 && n < len(all) {
		return all[len(all)-n:]
	}
	return all
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// View copies the entries together with the revision they were taken at.
func (h *History) View() ([]HistoryEntry, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ordered(), h.revision
}

func (h *History) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

// Load replaces the content with the newest entries that fit.
func (h *History) Load(entries []HistoryEntry) {
	if len(entries) > len(h.buf) {
		entries = entries[len(entries)-len(h.buf):]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buf)
	h.next, h.full = 0, false
	for _, e := range entries {
		e.Text = truncateRunes(e.Text, HistoryTextLimit)
		h.put(e)
	}
	h.revision++
}
