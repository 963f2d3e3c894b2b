package services

import (
	"anonbot/internal/models"
	"anonbot/internal/providers"
	"anonbot/internal/structures"
	"fmt"
	"sync"
	"time"
)

// rate windows idle for this many window lengths are dropped by SweepRateWindows
const windowIdleFactor = 10

type Verdict int

const (
	VerdictAdmitted Verdict = iota
	VerdictRateLimited
	VerdictBlocked
	VerdictInvalid
)

func (v Verdict) Admitted() bool {
	return v == VerdictAdmitted
}

func (v Verdict) String() string {
	switch v {
	case VerdictAdmitted:
		return "admitted"
	case VerdictRateLimited:
		return "rate_limited"
	case VerdictBlocked:
		return "blocked"
	default:
		return "invalid"
	}
}

type SaveRequester interface {
	RequestSave()
}

type FeedbackServiceInterface interface {
	OnMessage(userID int64, displayName string, now time.Time) Verdict
	AdminBlock(userID int64) error
	AdminUnblock(userID int64) error
	AdminSetMode(mode models.Mode, target *int64) error
	AdminGetStats() models.Stats
	RequestSave()
	SetSaveRequester(r SaveRequester)
	Welcome(userID int64) (bool, error)
	RecordMessage(userID int64, messageType, text string, now time.Time)
	History(limit int) []models.HistoryEntry

	Mode() models.ModeState
	User(id int64) (models.UserRecord, bool)
	IsBlocked(id int64) bool
	IsAdmin(id int64) bool
	DeliveryTargets() []int64
	Recipients() []int64
	ActiveUsers(since time.Time) int
	SweepRateWindows(now time.Time) int

	GetSnapshot() *models.Snapshot
	PutSnapshot(s *models.Snapshot) (bool, error)
	Revision() uint64
}

// FeedbackService owns the process state: registry, rate limiter and mode.
// Each of the three has its own lock.
type FeedbackService struct {
	conf     *structures.Config
	clock    providers.Clock
	registry *models.Registry
	limiter  *models.RateLimiter
	modes    *models.ModeController
	history  *models.History

	saverMu sync.RWMutex
	saver   SaveRequester
}

func NewFeedbackService(conf *structures.Config, clock providers.Clock) (FeedbackServiceInterface, error) {
	limiter, err := models.NewRateLimiter(conf.RateLimit.Messages, conf.RateLimit.Window())
	if err != nil {
		return nil, err
	}

	initial := models.ModeState{Mode: models.ModePrivate}
	if conf.Bot.Mode == structures.ModeGroup {
		target := conf.Bot.TargetGroupID
		initial = models.ModeState{Mode: models.ModeGroup, TargetGroupID: &target}
	}
	modes, err := models.NewModeController(initial)
	if err != nil {
		return nil, fmt.Errorf("initial mode: %w", err)
	}

	return &FeedbackService{
		conf:     conf,
		clock:    clock,
		registry: models.NewRegistry(clock.Now()),
		limiter:  limiter,
		modes:    modes,
		history:  models.NewHistory(models.MaxHistory),
	}, nil
}

// OnMessage admits or rejects one inbound user message. Only admitted
// messages touch the registry.
func (fs *FeedbackService) OnMessage(userID int64, displayName string, now time.Time) Verdict {
	if userID <= 0 {
		return VerdictInvalid
	}
	if !fs.limiter.Admit(userID, now) {
		return VerdictRateLimited
	}
	if fs.registry.IsBlocked(userID) {
		return VerdictBlocked
	}
	fs.registry.Touch(userID, displayName, now)
	return VerdictAdmitted
}

func (fs *FeedbackService) AdminBlock(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", models.ErrInvalidArgument)
	}
	if fs.conf.IsAdmin(userID) {
		return fmt.Errorf("%w: cannot block an administrator", models.ErrInvalidArgument)
	}
	if err := fs.registry.Block(userID); err != nil {
		return fmt.Errorf("block user %d: %w", userID, err)
	}
	fs.RequestSave()
	return nil
}

func (fs *FeedbackService) AdminUnblock(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", models.ErrInvalidArgument)
	}
	if err := fs.registry.Unblock(userID); err != nil {
		return fmt.Errorf("unblock user %d: %w", userID, err)
	}
	fs.RequestSave()
	return nil
}

func (fs *FeedbackService) AdminSetMode(mode models.Mode, target *int64) error {
	if err := fs.modes.SetMode(mode, target); err != nil {
		return err
	}
	fs.RequestSave()
	return nil
}

// AdminGetStats rolls the daily counter first so an idle day reads as zero.
func (fs *FeedbackService) AdminGetStats() models.Stats {
	fs.registry.RollDay(fs.clock.Now())
	return fs.registry.Stats()
}

// Welcome reports true exactly once per user, for the first-contact greeting.
func (fs *FeedbackService) Welcome(userID int64) (bool, error) {
	first, err := fs.registry.MarkWelcomed(userID)
	if err != nil {
		return false, fmt.Errorf("welcome user %d: %w", userID, err)
	}
	return first, nil
}

func (fs *FeedbackService) RecordMessage(userID int64, messageType, text string, now time.Time) {
	if messageType == "" {
		messageType = "text"
	}
	fs.history.Add(models.HistoryEntry{
		UserID:      userID,
		MessageType: messageType,
		Text:        text,
		Timestamp:   now,
	})
}

func (fs *FeedbackService) History(limit int) []models.HistoryEntry {
	return fs.history.Recent(limit)
}

// RequestSave forwards to the attached scheduler and never blocks.
func (fs *FeedbackService) RequestSave() {
	fs.saverMu.RLock()
	saver := fs.saver
	fs.saverMu.RUnlock()
	if saver != nil {
		saver.RequestSave()
	}
}

func (fs *FeedbackService) SetSaveRequester(r SaveRequester) {
	fs.saverMu.Lock()
	defer fs.saverMu.Unlock()
	fs.saver = r
}

func (fs *FeedbackService) Mode() models.ModeState {
	return fs.modes.Current()
}

func (fs *FeedbackService) User(id int64) (models.UserRecord, bool) {
	return fs.registry.Get(id)
}

func (fs *FeedbackService) IsBlocked(id int64) bool {
	return fs.registry.IsBlocked(id)
}

func (fs *FeedbackService) IsAdmin(id int64) bool {
	return fs.conf.IsAdmin(id)
}

// DeliveryTargets lists the chats an admitted message is forwarded to.
func (fs *FeedbackService) DeliveryTargets() []int64 {
	return fs.modes.Targets(fs.conf.Bot.OwnerID, fs.conf.Bot.AdminIDs)
}

func (fs *FeedbackService) Recipients() []int64 {
	return fs.registry.Recipients()
}

func (fs *FeedbackService) ActiveUsers(since time.Time) int {
	return fs.registry.ActiveSince(since)
}

func (fs *FeedbackService) SweepRateWindows(now time.Time) int {
	_, window := fs.limiter.Limit()
	return fs.limiter.Sweep(now, windowIdleFactor*window)
}

// GetSnapshot copies history before the registry, so the combined revision
// never claims a change the copy does not contain.
func (fs *FeedbackService) GetSnapshot() *models.Snapshot {
	history, historyRev := fs.history.View()
	users, stats, rev := fs.registry.SnapshotViewAt()
	return &models.Snapshot{
		Version:  models.SnapshotVersion,
		SavedAt:  fs.clock.Now(),
		Users:    users,
		Stats:    stats,
		Mode:     fs.modes.Current(),
		History:  history,
		Revision: rev + historyRev,
	}
}

// PutSnapshot replaces the in-memory state. The bool reports whether the
// stored counters had to be recomputed from the records.
func (fs *FeedbackService) PutSnapshot(s *models.Snapshot) (bool, error) {
	if err := s.Check(); err != nil {
		return false, err
	}
	if err := fs.modes.Restore(s.Mode); err != nil {
		return false, err
	}
	fs.history.Load(s.History)
	return fs.registry.Load(s.Users, s.Stats, fs.clock.Now()), nil
}

// Revision changes whenever the registry or the history does.
func (fs *FeedbackService) Revision() uint64 {
	return fs.history.Revision() + fs.registry.Revision()
}
