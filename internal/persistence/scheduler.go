package persistence

import (
	"anonbot/internal/persistence/interfaces"
	"anonbot/internal/providers"
	"anonbot/internal/services"
	"anonbot/internal/structures"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roylee0704/gron"
	"go.uber.org/atomic"
)

type State int32

const (
	StateLoading State = iota
	StateIdle
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	service     services.FeedbackServiceInterface
	fileManager *FileManager
	metrics     providers.MetricsProviderInterface
	clock       providers.Clock
	cron        *gron.Cron
	opsMu       sync.Mutex

	state         atomic.Int32
	savedRevision atomic.Uint64
	lastFailed    atomic.Bool

	pending  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (s *Scheduler) Init() {
	s.wg.Add(1)
	go s.worker()

	s.cron = gron.New()
	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval()), s.tick)
	s.cron.Start()
}

// tick requests a save when something changed since the last good write and
// drops rate windows nobody used for a while.
func (s *Scheduler) tick() {
	if removed := s.service.SweepRateWindows(s.clock.Now()); removed > 0 {
		s.logger.Debugf(providers.TypeApp, "Dropped %d idle rate windows", removed)
	}
	if s.service.Revision() != s.savedRevision.Load() || s.lastFailed.Load() {
		s.RequestSave()
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.pending:
			_ = s.save()
		case <-s.done:
			return
		}
	}
}

// RequestSave never blocks. Requests made while one is already pending
// collapse into it.
func (s *Scheduler) RequestSave() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Scheduler) Restore() error {
	s.state.Store(int32(StateLoading))
	defer s.state.Store(int32(StateIdle))

	err := s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
	s.savedRevision.Store(s.service.Revision())
	if err != nil {
		if Recoverable(err) {
			s.logger.Errorf(providers.TypeApp, "Starting with empty state: %s", err)
		}
		return err
	}
	return nil
}

// Recoverable reports whether a Restore error leaves a usable empty state.
func Recoverable(err error) bool {
	return errors.Is(err, ErrStartupCorruption) || errors.Is(err, ErrPersistence)
}

// Persist saves synchronously. It is called on shutdown after Stop.
func (s *Scheduler) Persist() error {
	s.logger.Infof(providers.TypeApp, "Persisting state to file...")
	return s.save()
}

func (s *Scheduler) State() string {
	return State(s.state.Load()).String()
}

func (s *Scheduler) save() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.state.Store(int32(StateSaving))
	defer s.state.Store(int32(StateIdle))

	ctx := context.Background()
	if timeout := s.config.Persistence.WriteTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	rev, err := s.fileManager.SaveToFile(ctx, s.config.Persistence.FilePath)
	s.metrics.ObservePersistenceDuration(time.Since(started))
	if err != nil {
		s.lastFailed.Store(true)
		s.metrics.IncPersistenceFailures()
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.lastFailed.Store(false)
	s.savedRevision.Store(rev)
	s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.FeedbackServiceInterface, fileManager *FileManager, metrics providers.MetricsProviderInterface, clock providers.Clock) interfaces.SchedulerInterface {
	s := &Scheduler{
		config:      config,
		logger:      logger,
		service:     service,
		fileManager: fileManager,
		metrics:     metrics,
		clock:       clock,
		pending:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	service.SetSaveRequester(s)
	return s
}
