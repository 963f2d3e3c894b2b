package persistence

import (
	"anonbot/internal/models"
	"anonbot/internal/services"
	"anonbot/internal/testutil"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type schedulerFixture struct {
	scheduler *Scheduler
	service   services.FeedbackServiceInterface
	metrics   *testutil.MockMetrics
	logger    *testutil.MockLogger
}

func newSchedulerFixture(t *testing.T, path string, comp *testutil.MockCompressor) *schedulerFixture {
	t.Helper()
	if comp == nil {
		comp = &testutil.MockCompressor{}
	}
	svc := newTestService(t)
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	clock := testutil.NewMockClock(t0)
	fm := NewFileManager(NewSnapshotCodec(comp, logger), svc, logger, clock)
	s := NewScheduler(testConfig(path), logger, svc, fm, metrics, clock).(*Scheduler)
	return &schedulerFixture{scheduler: s, service: svc, metrics: metrics, logger: logger}
}

func readSnapshot(t *testing.T, path string) models.Snapshot {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap
}

func TestScheduler_InitialState(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "s.json"), nil)
	assert.Equal(t, "loading", f.scheduler.State())
}

func TestScheduler_Restore_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restore.json")
	body := `{"version":1,"users":[{"id":42,"message_count":7}],"stats":{"total_messages":7,"total_users":1},"mode":{"mode":"private"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	f := newSchedulerFixture(t, path, nil)
	require.NoError(t, f.scheduler.Restore())

	rec, ok := f.service.User(42)
	require.True(t, ok)
	assert.Equal(t, int64(7), rec.MessageCount)
	assert.Equal(t, "idle", f.scheduler.State())
	assert.Equal(t, f.service.Revision(), f.scheduler.savedRevision.Load())
}

func TestScheduler_Restore_FileNotExist(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "none.json"), nil)
	assert.NoError(t, f.scheduler.Restore())
	assert.Equal(t, "idle", f.scheduler.State())
}

func TestScheduler_Restore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	f := newSchedulerFixture(t, path, nil)
	err := f.scheduler.Restore()
	assert.ErrorIs(t, err, ErrStartupCorruption)
	assert.Equal(t, "idle", f.scheduler.State())
	assert.Equal(t, 1, f.logger.Count("error", "empty state"))

	// the service keeps working on an empty registry
	assert.True(t, f.service.OnMessage(1, "a", t0).Admitted())
}

func TestScheduler_Persist_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.json")
	f := newSchedulerFixture(t, path, nil)
	f.service.OnMessage(1, "a", t0)
	f.service.OnMessage(2, "b", t0)

	require.NoError(t, f.scheduler.Persist())

	snap := readSnapshot(t, path)
	assert.Len(t, snap.Users, 2)
	assert.Equal(t, int64(2), snap.Stats.TotalMessages)
	assert.Equal(t, 1, f.metrics.PersistenceRuns)
	assert.Equal(t, 0, f.metrics.Failures())
	assert.Equal(t, f.service.Revision(), f.scheduler.savedRevision.Load())
}

func TestScheduler_Persist_WriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.json")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))
	comp := &testutil.MockCompressor{
		CompressFn: func(b []byte) ([]byte, error) {
			return nil, errors.New("compress error")
		},
	}
	f := newSchedulerFixture(t, path, comp)
	f.service.OnMessage(1, "a", t0)

	err := f.scheduler.Persist()
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 1, f.metrics.Failures())
	assert.Equal(t, "idle", f.scheduler.State())
	assert.True(t, f.scheduler.lastFailed.Load())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))
}

func TestScheduler_RequestSaveCoalesces(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "c.json"), nil)
	for i := 0; i < 10; i++ {
		f.scheduler.RequestSave()
	}
	assert.Len(t, f.scheduler.pending, 1)
}

func TestScheduler_ConcurrentRequestsWhileSaving(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burst.json")
	writes := atomic.NewInt32(0)
	comp := &testutil.MockCompressor{CompressFn: func(b []byte) ([]byte, error) {
		writes.Inc()
		time.Sleep(50 * time.Millisecond)
		return b, nil
	}}
	f := newSchedulerFixture(t, path, comp)
	f.service.OnMessage(1, "a", t0)
	f.scheduler.Init()
	defer f.scheduler.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.scheduler.RequestSave()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return writes.Load() >= 1 && len(f.scheduler.pending) == 0 && f.scheduler.State() == "idle"
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	assert.LessOrEqual(t, writes.Load(), int32(2))
	assert.Equal(t, 1, len(readSnapshot(t, path).Users))
}

func TestScheduler_Restore_UnreadablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot_data.json")
	require.NoError(t, os.Mkdir(path, 0755))

	f := newSchedulerFixture(t, path, nil)
	err := f.scheduler.Restore()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, Recoverable(err))
	assert.Equal(t, "idle", f.scheduler.State())
	assert.Equal(t, 1, f.logger.Count("error", "empty state"))

	moved, globErr := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, globErr)
	require.Len(t, moved, 1)
	info, statErr := os.Stat(moved[0])
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())

	// empty state keeps working and the next save lands on the freed path
	assert.True(t, f.service.OnMessage(7, "x", t0).Admitted())
	require.NoError(t, f.scheduler.Persist())
	assert.Len(t, readSnapshot(t, path).Users, 1)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(fmt.Errorf("%w: x", ErrStartupCorruption)))
	assert.True(t, Recoverable(fmt.Errorf("%w: x", ErrPersistence)))
	assert.False(t, Recoverable(errors.New("other")))
	assert.False(t, Recoverable(nil))
}

func TestScheduler_ServiceRequestsReachScheduler(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "r.json"), nil)
	f.service.OnMessage(5, "x", t0)
	require.NoError(t, f.service.AdminBlock(5))
	assert.Len(t, f.scheduler.pending, 1)
}

func TestScheduler_WorkerSavesRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.json")
	f := newSchedulerFixture(t, path, nil)
	f.scheduler.Init()
	defer f.scheduler.Stop()

	f.service.OnMessage(9, "w", t0)
	f.scheduler.RequestSave()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.scheduler.savedRevision.Load() == f.service.Revision()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_TickSkipsUnchangedState(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "tick.json"), nil)
	require.NoError(t, f.scheduler.Restore())

	f.scheduler.tick()
	assert.Len(t, f.scheduler.pending, 0)

	f.service.OnMessage(3, "t", t0)
	f.scheduler.tick()
	assert.Len(t, f.scheduler.pending, 1)
}

func TestScheduler_TickRetriesAfterFailure(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "retry.json"), nil)
	require.NoError(t, f.scheduler.Restore())
	f.scheduler.lastFailed.Store(true)

	f.scheduler.tick()
	assert.Len(t, f.scheduler.pending, 1)
}

func TestScheduler_StopWithoutInit(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "stop.json"), nil)
	f.scheduler.Stop()
	f.scheduler.Stop()
}

func TestScheduler_InitAndStop(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "lifecycle.json"), nil)
	f.scheduler.Init()
	time.Sleep(50 * time.Millisecond)
	f.scheduler.Stop()
}

func TestScheduler_PersistAfterRestoreKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.json")
	first := newSchedulerFixture(t, path, nil)
	first.service.OnMessage(1, "a", t0)
	first.service.OnMessage(1, "a", t0.Add(time.Second))
	require.NoError(t, first.scheduler.Persist())

	second := newSchedulerFixture(t, path, nil)
	require.NoError(t, second.scheduler.Restore())
	second.service.OnMessage(2, "b", t0)
	require.NoError(t, second.scheduler.Persist())

	snap := readSnapshot(t, path)
	assert.Len(t, snap.Users, 2)
	assert.Equal(t, int64(3), snap.Stats.TotalMessages)
	assert.True(t, snap.Consistent())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "saving", StateSaving.String())
	assert.Equal(t, "unknown", State(42).String())
}
